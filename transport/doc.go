// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the duplex socket the messaging client
// runs over.
//
// The package defines the [Socket] interface (Open, Send, Close) and
// the [Listener] callback contract (OnOpen, OnMessage, OnClosing,
// OnClosed, OnFailure). Exactly one terminal callback (OnClosed or a
// failure) is delivered per connection attempt. The client package
// consumes these callbacks; it never touches the underlying connection.
//
// The production implementation, [WebSocket], uses gorilla/websocket
// with a single read-pump goroutine, write deadlines, and ping/pong
// keepalive. Dial and close errors are classified into a [FailureKind]
// (generic error, access denied, network disabled) so the client can
// pick the right corrective action without inspecting error strings.
//
// [MemorySocket] provides an in-process implementation for tests: sent
// frames are recorded, and tests inject server frames, closes, and
// failures synchronously.
package transport
