// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Protocol action tags for outbound requests.
const (
	ActionConfigureSession              = "configureSession"
	ActionConfigureAuthenticatedSession = "configureAuthenticatedSession"
	ActionOnMessage                     = "onMessage"
	ActionEcho                          = "echo"
	ActionOnAttachment                  = "onAttachment"
	ActionDeleteAttachment              = "deleteAttachment"
	ActionGetAttachment                 = "getAttachment"
	ActionGetJwt                        = "getJwt"
	ActionCloseSession                  = "closeSession"
	ActionClearConversation             = "clearConversation"
)

// HealthCheckID is the fixed customMessageId carried by health-check
// echo requests. The server echoes it back, which is how the client
// tells a health-check response apart from a visible message.
const HealthCheckID = "SGVhbHRoQ2hlY2tNZXNzYWdlSWQ="

// JourneyContext identifies the customer and session for journey
// tracking. Sent with every configure-session request.
type JourneyContext struct {
	Customer        JourneyCustomer        `json:"customer"`
	CustomerSession JourneyCustomerSession `json:"customerSession"`
}

// JourneyCustomer identifies the customer by the session token.
type JourneyCustomer struct {
	ID     string `json:"id"`
	IDType string `json:"idType"`
}

// JourneyCustomerSession identifies the client platform.
type JourneyCustomerSession struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ConfigureSessionRequest configures an anonymous session on a freshly
// opened socket.
type ConfigureSessionRequest struct {
	Token          string         `json:"token"`
	DeploymentID   string         `json:"deploymentId"`
	StartNew       bool           `json:"startNew,omitempty"`
	JourneyContext JourneyContext `json:"journeyContext"`
	Action         string         `json:"action"`
}

// NewConfigureSessionRequest builds an anonymous configure-session
// request with the standard journey context.
func NewConfigureSessionRequest(token, deploymentID string, startNew bool) ConfigureSessionRequest {
	return ConfigureSessionRequest{
		Token:          token,
		DeploymentID:   deploymentID,
		StartNew:       startNew,
		JourneyContext: defaultJourneyContext(token),
		Action:         ActionConfigureSession,
	}
}

// ConfigureAuthenticatedSessionRequest configures an authenticated
// session. Identical to the anonymous payload plus the JWT in Data.
type ConfigureAuthenticatedSessionRequest struct {
	Token          string                   `json:"token"`
	DeploymentID   string                   `json:"deploymentId"`
	StartNew       bool                     `json:"startNew,omitempty"`
	JourneyContext JourneyContext           `json:"journeyContext"`
	Data           AuthenticatedSessionData `json:"data"`
	Action         string                   `json:"action"`
}

// AuthenticatedSessionData carries the auth JWT.
type AuthenticatedSessionData struct {
	Code string `json:"code"`
}

// NewConfigureAuthenticatedSessionRequest builds an authenticated
// configure-session request carrying the given JWT.
func NewConfigureAuthenticatedSessionRequest(token, deploymentID string, startNew bool, jwt string) ConfigureAuthenticatedSessionRequest {
	return ConfigureAuthenticatedSessionRequest{
		Token:          token,
		DeploymentID:   deploymentID,
		StartNew:       startNew,
		JourneyContext: defaultJourneyContext(token),
		Data:           AuthenticatedSessionData{Code: jwt},
		Action:         ActionConfigureAuthenticatedSession,
	}
}

func defaultJourneyContext(token string) JourneyContext {
	return JourneyContext{
		Customer:        JourneyCustomer{ID: token, IDType: "cookie"},
		CustomerSession: JourneyCustomerSession{ID: "", Type: "web"},
	}
}

// Channel carries per-message custom attributes.
type Channel struct {
	Metadata ChannelMetadata `json:"metadata"`
}

// ChannelMetadata holds the custom attribute map.
type ChannelMetadata struct {
	CustomAttributes map[string]string `json:"customAttributes"`
}

// NewChannel wraps a non-empty attribute map in a Channel. Returns nil
// for an empty map; an empty channel is never put on the wire.
func NewChannel(attributes map[string]string) *Channel {
	if len(attributes) == 0 {
		return nil
	}
	return &Channel{Metadata: ChannelMetadata{CustomAttributes: attributes}}
}

// ButtonResponse is a quick-reply selection made by the user.
type ButtonResponse struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
	Type    string `json:"type"`
}

// MessageContent is one content element of an outbound text message.
type MessageContent struct {
	ContentType    string          `json:"contentType"`
	ButtonResponse *ButtonResponse `json:"buttonResponse,omitempty"`
	Attachment     *AttachmentRef  `json:"attachment,omitempty"`
}

// AttachmentRef references an uploaded attachment by ID so the server
// can bind it to the message.
type AttachmentRef struct {
	ID string `json:"id"`
}

// TextMessage is the message body of an onMessage or echo request.
type TextMessage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Content  []MessageContent  `json:"content,omitempty"`
	Channel  *Channel          `json:"channel,omitempty"`
	Type     string            `json:"type"`
}

// OnMessageRequest sends a text message or quick-reply response.
type OnMessageRequest struct {
	Token   string      `json:"token"`
	Message TextMessage `json:"message"`
	Time    string      `json:"time,omitempty"`
	Action  string      `json:"action"`
}

// NewOnMessageRequest builds an onMessage request for plain text. The
// messageID travels as metadata customMessageId so the server echo can
// be matched to the pending message. content carries references to
// uploaded attachments, if any.
func NewOnMessageRequest(token, text, messageID string, channel *Channel, content []MessageContent) OnMessageRequest {
	return OnMessageRequest{
		Token: token,
		Message: TextMessage{
			Text:     text,
			Metadata: map[string]string{"customMessageId": messageID},
			Content:  content,
			Channel:  channel,
			Type:     "Text",
		},
		Action: ActionOnMessage,
	}
}

// NewQuickReplyRequest builds an onMessage request carrying a
// quick-reply button response.
func NewQuickReplyRequest(token, messageID string, response ButtonResponse, channel *Channel) OnMessageRequest {
	return OnMessageRequest{
		Token: token,
		Message: TextMessage{
			Text:     response.Text,
			Metadata: map[string]string{"customMessageId": messageID},
			Content: []MessageContent{
				{ContentType: "ButtonResponse", ButtonResponse: &response},
			},
			Channel: channel,
			Type:    "Text",
		},
		Action: ActionOnMessage,
	}
}

// NewEchoRequest builds the health-check echo request.
func NewEchoRequest(token string) OnMessageRequest {
	return OnMessageRequest{
		Token: token,
		Message: TextMessage{
			Text:     "ping",
			Metadata: map[string]string{"customMessageId": HealthCheckID},
			Type:     "Text",
		},
		Action: ActionEcho,
	}
}

// OutboundEvent is one event element of an outbound event message.
type OutboundEvent struct {
	EventType string           `json:"eventType"`
	Typing    *TypingPayload   `json:"typing,omitempty"`
	Presence  *PresencePayload `json:"presence,omitempty"`
}

// TypingPayload signals the user typing state.
type TypingPayload struct {
	Type string `json:"type"`
}

// PresencePayload signals a presence change (Join starts a new
// conversation).
type PresencePayload struct {
	Type string `json:"type"`
}

// EventMessage is the message body of an outbound event request.
type EventMessage struct {
	Events  []OutboundEvent `json:"events"`
	Channel *Channel        `json:"channel,omitempty"`
	Type    string          `json:"type"`
}

// OnEventRequest sends typing indicators and autostart events.
type OnEventRequest struct {
	Token   string       `json:"token"`
	Message EventMessage `json:"message"`
	Action  string       `json:"action"`
}

// NewUserTypingRequest builds the typing-indicator event request.
func NewUserTypingRequest(token string) OnEventRequest {
	return OnEventRequest{
		Token: token,
		Message: EventMessage{
			Events: []OutboundEvent{
				{EventType: "Typing", Typing: &TypingPayload{Type: "On"}},
			},
			Type: "Event",
		},
		Action: ActionOnMessage,
	}
}

// NewAutoStartRequest builds the autostart presence event request.
func NewAutoStartRequest(token string, channel *Channel) OnEventRequest {
	return OnEventRequest{
		Token: token,
		Message: EventMessage{
			Events: []OutboundEvent{
				{EventType: "Presence", Presence: &PresencePayload{Type: "Join"}},
			},
			Channel: channel,
			Type:    "Event",
		},
		Action: ActionOnMessage,
	}
}

// OnAttachmentRequest asks the server for a pre-signed upload URL.
type OnAttachmentRequest struct {
	Token        string `json:"token"`
	AttachmentID string `json:"attachmentId"`
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	FileSize     int    `json:"fileSize,omitempty"`
	ErrorsAsJSON bool   `json:"errorsAsJson"`
	Action       string `json:"action"`
}

// NewOnAttachmentRequest builds a request-attachment-URL payload.
func NewOnAttachmentRequest(token, attachmentID, fileName, fileType string, fileSize int) OnAttachmentRequest {
	return OnAttachmentRequest{
		Token:        token,
		AttachmentID: attachmentID,
		FileName:     fileName,
		FileType:     fileType,
		FileSize:     fileSize,
		ErrorsAsJSON: true,
		Action:       ActionOnAttachment,
	}
}

// DeleteAttachmentRequest removes a previously prepared attachment.
type DeleteAttachmentRequest struct {
	Token        string `json:"token"`
	AttachmentID string `json:"attachmentId"`
	Action       string `json:"action"`
}

// NewDeleteAttachmentRequest builds a delete-attachment payload.
func NewDeleteAttachmentRequest(token, attachmentID string) DeleteAttachmentRequest {
	return DeleteAttachmentRequest{
		Token:        token,
		AttachmentID: attachmentID,
		Action:       ActionDeleteAttachment,
	}
}

// GetAttachmentRequest asks the server for a download URL for an
// already-uploaded attachment.
type GetAttachmentRequest struct {
	Token        string `json:"token"`
	AttachmentID string `json:"attachmentId"`
	Action       string `json:"action"`
}

// NewGetAttachmentRequest builds a download-URL request payload.
func NewGetAttachmentRequest(token, attachmentID string) GetAttachmentRequest {
	return GetAttachmentRequest{
		Token:        token,
		AttachmentID: attachmentID,
		Action:       ActionGetAttachment,
	}
}

// GetJwtRequest asks the gateway for the short-lived JWT that
// authorizes HTTP history fetches on anonymous sessions. The server
// answers with a JwtResponse frame.
type GetJwtRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

// NewGetJwtRequest builds a getJwt payload.
func NewGetJwtRequest(token string) GetJwtRequest {
	return GetJwtRequest{Token: token, Action: ActionGetJwt}
}

// CloseSessionRequest closes connections that share the session token.
// With CloseAllConnections set, every device on the session receives a
// ConnectionClosedEvent. This is the first step of starting a new chat.
type CloseSessionRequest struct {
	Token               string `json:"token"`
	CloseAllConnections bool   `json:"closeAllConnections"`
	Action              string `json:"action"`
}

// NewCloseSessionRequest builds a session-wide close request.
func NewCloseSessionRequest(token string, closeAllConnections bool) CloseSessionRequest {
	return CloseSessionRequest{
		Token:               token,
		CloseAllConnections: closeAllConnections,
		Action:              ActionCloseSession,
	}
}

// ClearConversationRequest wipes the conversation server-side.
type ClearConversationRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

// NewClearConversationRequest builds a clear-conversation payload.
func NewClearConversationRequest(token string) ClearConversationRequest {
	return ClearConversationRequest{Token: token, Action: ActionClearConversation}
}
