// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"log/slog"
	"sync"
	"time"
)

// Event is an out-of-band domain event delivered through the event
// listener. Concrete types:
//
//	ErrorEvent
//	HealthCheckedEvent
//	AuthorizedEvent
//	LoggedOutEvent
//	AgentTypingEvent
//	SignedInEvent
//	ConnectionClosedEvent
//	ConversationAutostartEvent
//	ConversationDisconnectEvent
//	ConversationClearedEvent
type Event interface {
	isEvent()
}

// ErrorEvent reports a non-fatal failure: a rejected operation, a
// failed history fetch, a failed logout. Fatal failures surface as an
// Error session state instead.
type ErrorEvent struct {
	Code             ErrorCode
	Message          string
	CorrectiveAction CorrectiveAction
}

// HealthCheckedEvent confirms the server echoed a health check.
type HealthCheckedEvent struct{}

// AuthorizedEvent confirms that the authorization code was exchanged
// for a JWT.
type AuthorizedEvent struct{}

// LoggedOutEvent confirms that the authenticated session was logged
// out. Delivered when the server broadcasts the logout, which may have
// been requested from another device on the session.
type LoggedOutEvent struct{}

// AgentTypingEvent signals that an agent or bot is composing a reply.
type AgentTypingEvent struct {
	// Duration is how long the indicator should be displayed.
	Duration time.Duration
}

// SignedInEvent signals that the guest signed in on some device of the
// session.
type SignedInEvent struct {
	FirstName string
	LastName  string
}

// ConnectionClosedEvent signals that the server closed this connection
// because another connection on the same session asked for a
// session-wide close.
type ConnectionClosedEvent struct{}

// ConversationAutostartEvent confirms the automatic conversation start
// on a new session.
type ConversationAutostartEvent struct{}

// ConversationDisconnectEvent signals that the agent disconnected the
// conversation.
type ConversationDisconnectEvent struct{}

// ConversationClearedEvent signals that the conversation history was
// cleared server-side.
type ConversationClearedEvent struct{}

func (ErrorEvent) isEvent()                  {}
func (HealthCheckedEvent) isEvent()          {}
func (AuthorizedEvent) isEvent()             {}
func (LoggedOutEvent) isEvent()              {}
func (AgentTypingEvent) isEvent()            {}
func (SignedInEvent) isEvent()               {}
func (ConnectionClosedEvent) isEvent()       {}
func (ConversationAutostartEvent) isEvent()  {}
func (ConversationDisconnectEvent) isEvent() {}
func (ConversationClearedEvent) isEvent()    {}

// EventHandler fans domain events out to the registered listener.
// Dispatch is synchronous on the caller's goroutine; events raised
// before a listener is registered are logged and dropped.
type EventHandler struct {
	logger *slog.Logger

	mu       sync.Mutex
	listener func(Event)
}

// NewEventHandler creates an event handler.
func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// SetListener registers the event listener. A nil listener drops
// events.
func (h *EventHandler) SetListener(listener func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = listener
}

// OnEvent delivers one event to the listener.
func (h *EventHandler) OnEvent(event Event) {
	h.mu.Lock()
	listener := h.listener
	h.mu.Unlock()
	h.logger.Debug("domain event", "event", eventName(event))
	if listener != nil {
		listener(event)
	}
}

func eventName(event Event) string {
	switch event.(type) {
	case ErrorEvent:
		return "error"
	case HealthCheckedEvent:
		return "health_checked"
	case AuthorizedEvent:
		return "authorized"
	case LoggedOutEvent:
		return "logged_out"
	case AgentTypingEvent:
		return "agent_typing"
	case SignedInEvent:
		return "signed_in"
	case ConnectionClosedEvent:
		return "connection_closed"
	case ConversationAutostartEvent:
		return "conversation_autostart"
	case ConversationDisconnectEvent:
		return "conversation_disconnect"
	case ConversationClearedEvent:
		return "conversation_cleared"
	default:
		return "unknown"
	}
}
