// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// DeploymentConfig is the published configuration of a messenger
// deployment, fetched from the deployment CDN. The client treats it as
// a read-only snapshot taken at construction.
type DeploymentConfig struct {
	ID        string    `json:"id,omitempty"`
	Version   string    `json:"version,omitempty"`
	Status    string    `json:"status,omitempty"`
	Messenger Messenger `json:"messenger"`
}

// Messenger holds the messenger app settings of a deployment.
type Messenger struct {
	Enabled bool `json:"enabled"`
	Apps    Apps `json:"apps"`
}

// Apps groups per-app settings.
type Apps struct {
	Conversations Conversations `json:"conversations"`
}

// Conversations holds the conversation feature toggles consulted by
// the client.
type Conversations struct {
	ShowUserTypingIndicator bool              `json:"showUserTypingIndicator"`
	AutoStart               Setting           `json:"autoStart"`
	ConversationDisconnect  DisconnectSetting `json:"conversationDisconnect"`
	ConversationClear       Setting           `json:"conversationClear"`
}

// Setting is an on/off feature toggle.
type Setting struct {
	Enabled bool `json:"enabled"`
}

// DisconnectSetting is the disconnect feature toggle with its display
// type.
type DisconnectSetting struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type,omitempty"`
}

// AutostartEnabled reports whether the deployment auto-starts new
// conversations.
func (c *DeploymentConfig) AutostartEnabled() bool {
	return c != nil && c.Messenger.Apps.Conversations.AutoStart.Enabled
}

// TypingIndicatorEnabled reports whether user typing indicators are
// shown.
func (c *DeploymentConfig) TypingIndicatorEnabled() bool {
	return c != nil && c.Messenger.Apps.Conversations.ShowUserTypingIndicator
}

// ClearConversationEnabled reports whether guests may clear the
// conversation.
func (c *DeploymentConfig) ClearConversationEnabled() bool {
	return c != nil && c.Messenger.Apps.Conversations.ConversationClear.Enabled
}
