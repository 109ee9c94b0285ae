// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messenger implements a stateful client for real-time web
// messaging sessions. A Client multiplexes one WebSocket connection to
// the messaging gateway and exposes the conversation as three callback
// streams: session state changes, conversation message events, and
// out-of-band domain events.
//
// The client owns a session token that survives reconnects, a pending
// message slot matched to server echoes by a custom message ID, an
// attachment upload pipeline driven by pre-signed URLs, and a
// custom-attribute store that piggybacks key/value metadata on the
// next outbound message. Authenticated sessions layer an OAuth JWT on
// top, with transparent refresh when the gateway rejects a stale
// token.
//
// All callbacks are delivered synchronously from the transport
// goroutine. Callback implementations must not call back into the
// Client; hand work off to another goroutine instead.
package messenger
