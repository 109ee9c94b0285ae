// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

// Standard close codes used by the client.
const (
	CloseNormalClosure = 1000
	CloseGoingAway     = 1001
)

// FailureKind classifies a transport failure so the client can pick a
// corrective action without inspecting error strings.
type FailureKind int

const (
	// FailureError is a generic transport failure: connection reset,
	// handshake error, write timeout.
	FailureError FailureKind = iota

	// FailureAccessDenied means the server rejected the connection
	// outright (HTTP 401/403 during the upgrade handshake).
	FailureAccessDenied

	// FailureNetworkDisabled means no network route was available.
	FailureNetworkDisabled
)

// String returns a stable label for logging.
func (k FailureKind) String() string {
	switch k {
	case FailureAccessDenied:
		return "access_denied"
	case FailureNetworkDisabled:
		return "network_disabled"
	default:
		return "error"
	}
}

// Listener receives socket lifecycle callbacks. Implementations must
// tolerate callbacks arriving from the socket's internal goroutines.
// Per connection attempt, exactly one terminal callback is delivered:
// OnClosed, or OnFailure followed by no further callbacks.
type Listener interface {
	// OnOpen fires once the connection is established.
	OnOpen()

	// OnMessage delivers one inbound text frame.
	OnMessage(text string)

	// OnClosing fires when the peer initiates a close handshake.
	OnClosing(code int, reason string)

	// OnClosed fires when the connection is fully closed.
	OnClosed(code int, reason string)

	// OnFailure fires when the connection fails. No further callbacks
	// follow for this connection attempt.
	OnFailure(err error, kind FailureKind)
}

// Socket is a duplex text-frame connection. Open, Send, and Close
// never block on network I/O; outcomes arrive through the Listener.
type Socket interface {
	// Open establishes the connection and delivers callbacks to
	// listener. Calling Open on an already-open socket is a
	// programming error; implementations may panic or report
	// OnFailure.
	Open(listener Listener)

	// Send writes one text frame. Send on a socket that is not open
	// is reported through OnFailure.
	Send(text string)

	// Close initiates a close handshake with the given code and
	// reason.
	Close(code int, reason string)
}
