// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire holds the serialization records for the web messaging
// protocol: action-tagged outbound requests and the inbound
// {type, class, code, body} frame envelope.
//
// Outbound requests are plain structs whose Action field carries the
// protocol action tag (configureSession, onMessage, echo, onAttachment,
// deleteAttachment, closeSession, clearConversation). Constructors fill
// the tag so callers never write string literals.
//
// Inbound frames are polymorphic: the envelope's class field names the
// concrete body type. [Decode] is the single decode site; it returns a
// [Frame] whose Body is one of the concrete body types in this package,
// or [UnknownBody] for classes this client does not recognize. Callers
// type-switch on Frame.Body; an unknown class is never an error.
//
// The package is pure data. It has no behavior beyond JSON encoding and
// decoding and no dependencies on the rest of the module.
package wire
