// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"log/slog"
	"sync"
)

// StateKind enumerates the session states.
type StateKind int

const (
	// StateIdle is the initial state before the first Connect.
	StateIdle StateKind = iota
	// StateConnecting means the socket dial is in flight.
	StateConnecting
	// StateConnected means the socket is open but the session is not
	// yet configured.
	StateConnected
	// StateConfiguring means the configure-session request was sent
	// and its response is pending.
	StateConfiguring
	// StateConfigured means the session is ready for messaging.
	StateConfigured
	// StateReconnecting means the connection dropped and automatic
	// reconnection is in progress.
	StateReconnecting
	// StateReadOnly means the conversation ended; history is readable
	// but sending requires starting a new chat.
	StateReadOnly
	// StateClosing means the client initiated a close handshake.
	StateClosing
	// StateClosed means the connection is fully closed.
	StateClosed
	// StateKindError is terminal for the connection attempt; a new
	// Connect is required.
	StateKindError
)

// String returns a stable label for logging.
func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateConfiguring:
		return "configuring"
	case StateConfigured:
		return "configured"
	case StateReconnecting:
		return "reconnecting"
	case StateReadOnly:
		return "read_only"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateKindError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the session state with the payload of its kind. Connected
// and NewSession are set for StateConfigured; Code and Reason for
// StateClosing and StateClosed; ErrorCode and ErrorMessage for
// StateKindError.
type State struct {
	Kind         StateKind
	Connected    bool
	NewSession   bool
	Code         int
	Reason       string
	ErrorCode    ErrorCode
	ErrorMessage string
}

// IsConnected reports whether the socket is open but the session is
// not configured yet.
func (s State) IsConnected() bool {
	return s.Kind == StateConnected || s.Kind == StateConfiguring
}

// IsConfigured reports whether the session is ready for messaging.
func (s State) IsConfigured() bool { return s.Kind == StateConfigured }

// IsReconnecting reports whether automatic reconnection is in
// progress.
func (s State) IsReconnecting() bool { return s.Kind == StateReconnecting }

// IsReadOnly reports whether the conversation ended.
func (s State) IsReadOnly() bool { return s.Kind == StateReadOnly }

// IsClosing reports whether a client-initiated close is in flight.
func (s State) IsClosing() bool { return s.Kind == StateClosing }

// IsInactive reports whether no connection activity is expected.
func (s State) IsInactive() bool {
	switch s.Kind {
	case StateIdle, StateClosing, StateClosed, StateKindError:
		return true
	default:
		return false
	}
}

// StateChange is delivered to the state listener on every transition.
type StateChange struct {
	Old State
	New State
}

// StateMachine tracks the session state and enforces the legality of
// transitions and operations. It never initiates work; the Client
// drives it from socket callbacks and public operations.
type StateMachine struct {
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	listener func(StateChange)
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine(logger *slog.Logger) *StateMachine {
	return &StateMachine{logger: logger, state: State{Kind: StateIdle}}
}

// SetListener registers the state-change listener.
func (m *StateMachine) SetListener(listener func(StateChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = listener
}

// Current returns the current state.
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *StateMachine) setState(next State) {
	old := m.state
	m.state = next
	listener := m.listener
	m.logger.Debug("session state change",
		"from", old.Kind.String(), "to", next.Kind.String())
	if listener != nil {
		// Called with the lock held; listeners must not call back
		// into the state machine.
		listener(StateChange{Old: old, New: next})
	}
}

// OnConnect records the start of a connection attempt. Legal from
// Idle, Closed, Error, and Reconnecting; a reconnect attempt stays in
// Reconnecting so error handling can tell the two apart.
func (m *StateMachine) OnConnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Kind {
	case StateIdle, StateClosed, StateKindError:
		m.setState(State{Kind: StateConnecting})
		return nil
	case StateReconnecting:
		return nil
	default:
		return &StateError{Operation: "connect", State: m.state.Kind}
	}
}

// OnConnectionOpened records a successfully opened socket.
func (m *StateMachine) OnConnectionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == StateReconnecting {
		return
	}
	m.setState(State{Kind: StateConnected})
}

// OnConfiguring records that the configure-session request was sent.
func (m *StateMachine) OnConfiguring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != StateConnected {
		return
	}
	m.setState(State{Kind: StateConfiguring})
}

// OnSessionConfigured records a successful session configuration.
func (m *StateMachine) OnSessionConfigured(connected, newSession bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(State{Kind: StateConfigured, Connected: connected, NewSession: newSession})
}

// OnReadOnly records that the conversation ended.
func (m *StateMachine) OnReadOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == StateReadOnly {
		return
	}
	m.setState(State{Kind: StateReadOnly})
}

// OnReconnect records the start of automatic reconnection.
func (m *StateMachine) OnReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(State{Kind: StateReconnecting})
}

// OnClosing records a client-initiated close. Legal unless the session
// is already Idle, Closed, or Error.
func (m *StateMachine) OnClosing(code int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Kind {
	case StateIdle, StateClosed, StateKindError:
		return &StateError{Operation: "disconnect", State: m.state.Kind}
	}
	m.setState(State{Kind: StateClosing, Code: code, Reason: reason})
	return nil
}

// OnClosed records a fully closed connection.
func (m *StateMachine) OnClosed(code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(State{Kind: StateClosed, Code: code, Reason: reason})
}

// OnError records a terminal failure.
func (m *StateMachine) OnError(code ErrorCode, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(State{Kind: StateKindError, ErrorCode: code, ErrorMessage: message})
}

// CheckConfigured returns a StateError unless the session is
// Configured.
func (m *StateMachine) CheckConfigured(operation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != StateConfigured {
		return &StateError{Operation: operation, State: m.state.Kind}
	}
	return nil
}

// CheckConfiguredOrReadOnly returns a StateError unless the session is
// Configured or ReadOnly.
func (m *StateMachine) CheckConfiguredOrReadOnly(operation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != StateConfigured && m.state.Kind != StateReadOnly {
		return &StateError{Operation: operation, State: m.state.Kind}
	}
	return nil
}

// CheckCanStartNewChat returns a StateError unless the current
// conversation has ended. Starting a new chat over a live conversation
// is rejected.
func (m *StateMachine) CheckCanStartNewChat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != StateReadOnly {
		return &StateError{Operation: "startNewChat", State: m.state.Kind}
	}
	return nil
}
