// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"time"

	"github.com/bureau-foundation/webmessenger/wire"
)

// Direction tells who originated a message, from the server's
// perspective: the guest's own traffic is Inbound (the server echo of
// a message this client sent is Inbound too), agent and bot traffic is
// Outbound.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns a stable label for logging.
func (d Direction) String() string {
	if d == DirectionOutbound {
		return "outbound"
	}
	return "inbound"
}

// MessageState tracks the delivery of a message this client sent.
type MessageState int

const (
	// MessageIdle is the state of the pending slot before a send.
	MessageIdle MessageState = iota
	// MessageSending means the message is in flight.
	MessageSending
	// MessageSent means the server echoed the message back.
	MessageSent
	// MessageFailed means the server rejected the message. The
	// message stays in the conversation with its error attached.
	MessageFailed
)

// String returns a stable label for logging.
func (s MessageState) String() string {
	switch s {
	case MessageSending:
		return "sending"
	case MessageSent:
		return "sent"
	case MessageFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MessageType classifies the content of a message.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeEvent
	MessageTypeQuickReply
	MessageTypeUnknown
)

// OriginatingEntity tells whether an outbound message came from a
// human agent or a bot.
type OriginatingEntity int

const (
	EntityUnknown OriginatingEntity = iota
	EntityHuman
	EntityBot
)

// Participant identifies the sender of an outbound message.
type Participant struct {
	Name     string
	ImageURL string
}

// QuickReplyOption is one quick-reply choice, either offered by a bot
// or selected by the guest.
type QuickReplyOption struct {
	Text    string
	Payload string
	Action  string
}

// Message is one conversation message.
type Message struct {
	// ID is the client-generated ID for messages this client sent,
	// matched against the server echo, or the server-assigned ID for
	// everything else.
	ID           string
	Direction    Direction
	State        MessageState
	Type         MessageType
	Text         string
	Timestamp    time.Time
	Attachments  map[string]Attachment
	QuickReplies []QuickReplyOption
	Events       []Event
	From         Participant
	Originating  OriginatingEntity
	ErrorCode    ErrorCode
	ErrorMessage string
}

// AttachmentState tracks an attachment through its upload lifecycle.
type AttachmentState int

const (
	// AttachmentPresigning means the upload URL was requested.
	AttachmentPresigning AttachmentState = iota
	// AttachmentUploading means the HTTP upload is in flight.
	AttachmentUploading
	// AttachmentUploaded means the server confirmed the upload; the
	// attachment rides along with the next sent message.
	AttachmentUploaded
	// AttachmentSending means the attachment was included in an
	// in-flight message.
	AttachmentSending
	// AttachmentSent means a sent message confirmed the attachment.
	AttachmentSent
	// AttachmentDetached means the attachment was deleted before it
	// was sent.
	AttachmentDetached
	// AttachmentFailed means presigning, upload, or send failed.
	AttachmentFailed
)

// String returns a stable label for logging.
func (s AttachmentState) String() string {
	switch s {
	case AttachmentPresigning:
		return "presigning"
	case AttachmentUploading:
		return "uploading"
	case AttachmentUploaded:
		return "uploaded"
	case AttachmentSending:
		return "sending"
	case AttachmentSent:
		return "sent"
	case AttachmentDetached:
		return "detached"
	default:
		return "failed"
	}
}

// Attachment is one file attached to the conversation.
type Attachment struct {
	ID           string
	FileName     string
	FileType     string
	FileSize     int
	State        AttachmentState
	DownloadURL  string
	ErrorCode    ErrorCode
	ErrorMessage string
}

// messageFromWire converts a structured message to the domain type.
// The metadata customMessageId, when present, wins over the server ID
// so echoes match the pending message.
func messageFromWire(sm wire.StructuredMessage) Message {
	message := Message{
		ID:        sm.ID,
		State:     MessageSent,
		Text:      sm.Text,
		Direction: DirectionOutbound,
	}
	if custom := sm.Metadata["customMessageId"]; custom != "" {
		message.ID = custom
	}
	if sm.IsInbound() {
		message.Direction = DirectionInbound
	}

	switch sm.Type {
	case wire.MessageTypeText:
		message.Type = MessageTypeText
	case wire.MessageTypeEvent:
		message.Type = MessageTypeEvent
	default:
		message.Type = MessageTypeUnknown
	}

	if sm.Channel != nil {
		if sm.Channel.Time != "" {
			if t, err := time.Parse(time.RFC3339, sm.Channel.Time); err == nil {
				message.Timestamp = t
			}
		}
		if from := sm.Channel.From; from != nil {
			message.From = Participant{
				Name:     participantName(from),
				ImageURL: from.Image,
			}
		}
	}

	switch sm.OriginatingEntity {
	case "Human":
		message.Originating = EntityHuman
	case "Bot":
		message.Originating = EntityBot
	}

	for _, content := range sm.Content {
		switch {
		case content.Attachment != nil:
			a := content.Attachment
			if message.Attachments == nil {
				message.Attachments = make(map[string]Attachment)
			}
			message.Attachments[a.ID] = Attachment{
				ID:          a.ID,
				FileName:    a.Filename,
				FileType:    a.MediaType,
				FileSize:    a.FileSize,
				State:       AttachmentSent,
				DownloadURL: a.URL,
			}
		case content.QuickReply != nil:
			q := content.QuickReply
			message.QuickReplies = append(message.QuickReplies, QuickReplyOption{
				Text:    q.Text,
				Payload: q.Payload,
				Action:  q.Action,
			})
		}
	}
	if sm.Type == wire.MessageTypeStructured && len(message.QuickReplies) > 0 {
		message.Type = MessageTypeQuickReply
	}

	for _, event := range sm.Events {
		if converted, ok := eventFromWire(event, sm.Channel); ok {
			message.Events = append(message.Events, converted)
		}
	}
	return message
}

// defaultTypingDuration is used when a typing event omits its display
// duration.
const defaultTypingDuration = 3 * time.Second

func eventFromWire(event wire.StructuredEvent, channel *wire.StructuredChannel) (Event, bool) {
	switch event.EventType {
	case wire.EventTypeTyping:
		duration := defaultTypingDuration
		if event.Typing != nil && event.Typing.Duration > 0 {
			duration = time.Duration(event.Typing.Duration) * time.Millisecond
		}
		return AgentTypingEvent{Duration: duration}, true
	case wire.EventTypePresence:
		if event.Presence == nil {
			return nil, false
		}
		switch event.Presence.Type {
		case wire.PresenceJoin:
			return ConversationAutostartEvent{}, true
		case wire.PresenceDisconnect:
			return ConversationDisconnectEvent{}, true
		case wire.PresenceClear:
			return ConversationClearedEvent{}, true
		case wire.PresenceSignIn:
			signedIn := SignedInEvent{}
			if channel != nil && channel.From != nil {
				signedIn.FirstName = channel.From.FirstName
				signedIn.LastName = channel.From.LastName
			}
			return signedIn, true
		}
	}
	return nil, false
}

func participantName(p *wire.Participant) string {
	if p.Nickname != "" {
		return p.Nickname
	}
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	return name
}

// messagesFromHistory converts one history page, which arrives newest
// first, to domain messages in oldest-first order.
func messagesFromHistory(entities []wire.StructuredMessage) []Message {
	messages := make([]Message, 0, len(entities))
	for i := len(entities) - 1; i >= 0; i-- {
		messages = append(messages, messageFromWire(entities[i]))
	}
	return messages
}
