// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// Structured message types.
const (
	MessageTypeText       = "Text"
	MessageTypeEvent      = "Event"
	MessageTypeStructured = "Structured"
)

// Message directions as they appear on the wire.
const (
	DirectionInbound  = "Inbound"
	DirectionOutbound = "Outbound"
)

// Frame is one decoded inbound frame. Body holds the concrete body
// type selected by the envelope's class field:
//
//	string (plain error text)
//	SessionResponse
//	StructuredMessage
//	JwtResponse
//	PresignedURLResponse
//	UploadSuccessEvent
//	UploadFailureEvent
//	GenerateURLError
//	AttachmentDeletedResponse
//	SessionExpiredEvent
//	TooManyRequestsMessage
//	ConnectionClosedEvent
//	LogoutEvent
//	SessionClearedEvent
//	UnknownBody
type Frame struct {
	Type  string
	Class string
	Code  int
	Body  any
}

// SessionResponse acknowledges a configure-session request.
type SessionResponse struct {
	Connected  bool `json:"connected"`
	NewSession bool `json:"newSession"`
	ReadOnly   bool `json:"readOnly"`
}

// JwtResponse delivers a short-lived JWT for HTTP API calls on an
// anonymous session.
type JwtResponse struct {
	JWT string `json:"jwt"`
	Exp int64  `json:"exp"`
}

// PresignedURLResponse delivers the pre-signed upload URL for a
// prepared attachment.
type PresignedURLResponse struct {
	AttachmentID string            `json:"attachmentId"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers"`
	FileName     string            `json:"fileName,omitempty"`
}

// UploadSuccessEvent confirms a completed attachment upload.
type UploadSuccessEvent struct {
	AttachmentID string `json:"attachmentId"`
	DownloadURL  string `json:"downloadUrl"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// UploadFailureEvent reports a failed attachment upload.
type UploadFailureEvent struct {
	AttachmentID string `json:"attachmentId"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// GenerateURLError reports a failure to issue a pre-signed URL.
type GenerateURLError struct {
	AttachmentID string `json:"attachmentId"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// AttachmentDeletedResponse confirms a delete-attachment request.
type AttachmentDeletedResponse struct {
	AttachmentID string `json:"attachmentId"`
}

// TooManyRequestsMessage reports server-side rate limiting.
type TooManyRequestsMessage struct {
	ErrorMessage string `json:"errorMessage"`
	RetryAfter   int    `json:"retryAfter"`
}

// SessionExpiredEvent signals that the session is no longer valid.
type SessionExpiredEvent struct{}

// ConnectionClosedEvent signals that the server closed this connection
// (another device on the session requested a session-wide close).
type ConnectionClosedEvent struct{}

// LogoutEvent signals that the authenticated session was logged out.
type LogoutEvent struct{}

// SessionClearedEvent signals that the conversation was cleared
// server-side.
type SessionClearedEvent struct{}

// UnknownBody preserves a frame whose class this client does not
// recognize. Unknown frames are logged and ignored, never an error.
type UnknownBody struct {
	Class string
	Raw   json.RawMessage
}

// StructuredMessage is a conversation message as delivered by the
// server, both over the socket and from the paged history API.
type StructuredMessage struct {
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	Text              string             `json:"text,omitempty"`
	Direction         string             `json:"direction"`
	Channel           *StructuredChannel `json:"channel,omitempty"`
	Content           []Content          `json:"content,omitempty"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
	Events            []StructuredEvent  `json:"events,omitempty"`
	OriginatingEntity string             `json:"originatingEntity,omitempty"`
}

// StructuredChannel carries message timing and participants.
type StructuredChannel struct {
	Time      string       `json:"time,omitempty"`
	MessageID string       `json:"messageId,omitempty"`
	Type      string       `json:"type,omitempty"`
	To        *Participant `json:"to,omitempty"`
	From      *Participant `json:"from,omitempty"`
}

// Participant identifies a message sender or recipient.
type Participant struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Content element types.
const (
	ContentTypeAttachment = "Attachment"
	ContentTypeQuickReply = "QuickReply"
)

// Content is one polymorphic content element of a structured message.
// Exactly one of Attachment and QuickReply is non-nil for recognized
// content types; both are nil for unknown ones.
type Content struct {
	ContentType string
	Attachment  *AttachmentContent
	QuickReply  *QuickReplyContent
}

// AttachmentContent describes a delivered attachment.
type AttachmentContent struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	FileSize  int    `json:"fileSize,omitempty"`
	MediaType string `json:"mediaType"`
	Mime      string `json:"mime,omitempty"`
	Sha256    string `json:"sha256,omitempty"`
	Text      string `json:"text,omitempty"`
}

// QuickReplyContent describes one quick-reply option offered by the
// server.
type QuickReplyContent struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
	Action  string `json:"action,omitempty"`
}

// UnmarshalJSON selects the concrete content payload by contentType.
// Unknown content types decode to an empty Content rather than an
// error.
func (c *Content) UnmarshalJSON(data []byte) error {
	var envelope struct {
		ContentType string          `json:"contentType"`
		Attachment  json.RawMessage `json:"attachment"`
		QuickReply  json.RawMessage `json:"quickReply"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	c.ContentType = envelope.ContentType
	switch envelope.ContentType {
	case ContentTypeAttachment:
		if len(envelope.Attachment) > 0 {
			c.Attachment = &AttachmentContent{}
			return json.Unmarshal(envelope.Attachment, c.Attachment)
		}
	case ContentTypeQuickReply:
		if len(envelope.QuickReply) > 0 {
			c.QuickReply = &QuickReplyContent{}
			return json.Unmarshal(envelope.QuickReply, c.QuickReply)
		}
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON, used by tests and by
// history fixtures.
func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ContentType string             `json:"contentType"`
		Attachment  *AttachmentContent `json:"attachment,omitempty"`
		QuickReply  *QuickReplyContent `json:"quickReply,omitempty"`
	}{c.ContentType, c.Attachment, c.QuickReply})
}

// StructuredEvent is one event element of an Event-typed structured
// message.
type StructuredEvent struct {
	EventType string         `json:"eventType"`
	Presence  *PresenceEvent `json:"presence,omitempty"`
	Typing    *TypingEvent   `json:"typing,omitempty"`
}

// Event type and presence discriminators.
const (
	EventTypePresence = "Presence"
	EventTypeTyping   = "Typing"

	PresenceJoin       = "Join"
	PresenceDisconnect = "Disconnect"
	PresenceClear      = "Clear"
	PresenceSignIn     = "SignIn"
)

// PresenceEvent is the payload of a Presence event.
type PresenceEvent struct {
	Type string `json:"type"`
}

// TypingEvent is the payload of a Typing event.
type TypingEvent struct {
	Type     string `json:"type,omitempty"`
	Duration int64  `json:"duration,omitempty"`
}

// MessageEntityList is one page of conversation history from the HTTP
// API.
type MessageEntityList struct {
	Entities   []StructuredMessage `json:"entities"`
	PageSize   int                 `json:"pageSize"`
	PageNumber int                 `json:"pageNumber"`
	Total      int                 `json:"total"`
	PageCount  int                 `json:"pageCount"`
}

// Frame body class names as they appear in the envelope.
const (
	classString                    = "string"
	classSessionResponse           = "SessionResponse"
	classStructuredMessage         = "StructuredMessage"
	classJwtResponse               = "JwtResponse"
	classPresignedURLResponse      = "PresignedUrlResponse"
	classUploadSuccessEvent        = "UploadSuccessEvent"
	classUploadFailureEvent        = "UploadFailureEvent"
	classGenerateURLError          = "GenerateUrlError"
	classAttachmentDeletedResponse = "AttachmentDeletedResponse"
	classSessionExpiredEvent       = "SessionExpiredEvent"
	classTooManyRequests           = "TooManyRequestsErrorMessage"
	classConnectionClosedEvent     = "ConnectionClosedEvent"
	classLogoutEvent               = "LogoutEvent"
	classSessionClearedEvent       = "SessionClearedEvent"
)

// Decode parses one inbound frame. The envelope's class field selects
// the concrete body type; unrecognized classes decode to [UnknownBody].
// A malformed envelope or body returns an error; callers log and drop
// the frame, they never fail the session over it.
func Decode(data []byte) (*Frame, error) {
	var envelope struct {
		Type  string          `json:"type"`
		Class string          `json:"class"`
		Code  int             `json:"code"`
		Body  json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("wire: malformed frame envelope: %w", err)
	}

	frame := &Frame{Type: envelope.Type, Class: envelope.Class, Code: envelope.Code}

	decodeBody := func(target any) error {
		if err := json.Unmarshal(envelope.Body, target); err != nil {
			return fmt.Errorf("wire: malformed %s body: %w", envelope.Class, err)
		}
		return nil
	}

	switch envelope.Class {
	case classString:
		var text string
		if err := decodeBody(&text); err != nil {
			return nil, err
		}
		frame.Body = text
	case classSessionResponse:
		var body SessionResponse
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classStructuredMessage:
		var body StructuredMessage
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classJwtResponse:
		var body JwtResponse
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classPresignedURLResponse:
		var body PresignedURLResponse
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classUploadSuccessEvent:
		var body UploadSuccessEvent
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classUploadFailureEvent:
		var body UploadFailureEvent
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classGenerateURLError:
		var body GenerateURLError
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classAttachmentDeletedResponse:
		var body AttachmentDeletedResponse
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classSessionExpiredEvent:
		frame.Body = SessionExpiredEvent{}
	case classTooManyRequests:
		var body TooManyRequestsMessage
		if err := decodeBody(&body); err != nil {
			return nil, err
		}
		frame.Body = body
	case classConnectionClosedEvent:
		frame.Body = ConnectionClosedEvent{}
	case classLogoutEvent:
		frame.Body = LogoutEvent{}
	case classSessionClearedEvent:
		frame.Body = SessionClearedEvent{}
	default:
		frame.Body = UnknownBody{Class: envelope.Class, Raw: envelope.Body}
	}

	return frame, nil
}

// IsOutbound reports whether the message originated from the
// deployment side (agent or bot). Directions follow the server's
// perspective: guest traffic is Inbound, deployment traffic Outbound.
func (m StructuredMessage) IsOutbound() bool { return m.Direction == DirectionOutbound }

// IsInbound reports whether the message originated from the guest.
// The server echo of a message this client sent is Inbound.
func (m StructuredMessage) IsInbound() bool { return m.Direction == DirectionInbound }

// IsHealthCheckResponse reports whether the message is the echo of a
// health-check request.
func (m StructuredMessage) IsHealthCheckResponse() bool {
	return m.Metadata["customMessageId"] == HealthCheckID
}
