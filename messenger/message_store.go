// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/wire"
)

// MessageEvent is a conversation change delivered through the message
// listener. Concrete types:
//
//	MessageInserted
//	MessageUpdated
//	AttachmentUpdated
//	HistoryFetched
type MessageEvent interface {
	isMessageEvent()
}

// MessageInserted reports a message newly added to the conversation:
// a send in flight or a message from the agent side.
type MessageInserted struct {
	Message Message
}

// MessageUpdated reports a state change of a message already in the
// conversation, such as the server echo confirming a send.
type MessageUpdated struct {
	Message Message
}

// AttachmentUpdated reports an attachment lifecycle change.
type AttachmentUpdated struct {
	Attachment Attachment
}

// HistoryFetched reports a completed history page fetch. Messages is
// the fetched page in oldest-first order, empty when the start of the
// conversation had already been reached.
type HistoryFetched struct {
	Messages            []Message
	StartOfConversation bool
}

func (MessageInserted) isMessageEvent()   {}
func (MessageUpdated) isMessageEvent()    {}
func (AttachmentUpdated) isMessageEvent() {}
func (HistoryFetched) isMessageEvent()    {}

// MessageStore holds the conversation: fetched history, messages from
// the agent side, and the pending slot for the one message this client
// may have in flight. The pending message carries a pre-generated ID
// that travels as metadata so the server echo can be matched back.
type MessageStore struct {
	logger *slog.Logger
	newID  func() string

	mu                  sync.Mutex
	pending             Message
	conversation        []Message
	startOfConversation bool
	listener            func(MessageEvent)
}

// NewMessageStore creates an empty store with a fresh pending slot.
func NewMessageStore(logger *slog.Logger) *MessageStore {
	store := &MessageStore{logger: logger, newID: uuid.NewString}
	store.pending = store.freshPending()
	return store
}

func (s *MessageStore) freshPending() Message {
	return Message{
		ID:          s.newID(),
		Direction:   DirectionInbound,
		State:       MessageIdle,
		Type:        MessageTypeText,
		Attachments: make(map[string]Attachment),
	}
}

// SetListener registers the message listener.
func (s *MessageStore) SetListener(listener func(MessageEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
}

func (s *MessageStore) publish(event MessageEvent) {
	if s.listener != nil {
		// Called with the lock held; listeners must not call back
		// into the store.
		s.listener(event)
	}
}

// PrepareMessage moves the pending slot to Sending, inserts it into
// the conversation, and returns the wire request to put on the socket.
// Uploaded attachments ride along as content references.
func (s *MessageStore) PrepareMessage(token, text string, channel *wire.Channel) wire.OnMessageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.State = MessageSending
	s.pending.Text = text
	s.pending.Type = MessageTypeText
	s.insertPendingLocked()
	return wire.NewOnMessageRequest(token, text, s.pending.ID, channel, s.attachmentContentLocked())
}

// PrepareQuickReply moves the pending slot to Sending with the chosen
// quick reply and returns the wire request to put on the socket.
func (s *MessageStore) PrepareQuickReply(token string, reply QuickReplyOption, channel *wire.Channel) wire.OnMessageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.State = MessageSending
	s.pending.Text = reply.Text
	s.pending.Type = MessageTypeQuickReply
	s.insertPendingLocked()
	response := wire.ButtonResponse{Text: reply.Text, Payload: reply.Payload, Type: "QuickReply"}
	return wire.NewQuickReplyRequest(token, s.pending.ID, response, channel)
}

func (s *MessageStore) insertPendingLocked() {
	s.conversation = append(s.conversation, s.pending)
	s.publish(MessageInserted{Message: s.pending})
}

func (s *MessageStore) attachmentContentLocked() []wire.MessageContent {
	var content []wire.MessageContent
	for id, attachment := range s.pending.Attachments {
		if attachment.State == AttachmentUploaded || attachment.State == AttachmentSending {
			content = append(content, wire.MessageContent{
				ContentType: wire.ContentTypeAttachment,
				Attachment:  &wire.AttachmentRef{ID: id},
			})
		}
	}
	return content
}

// Update merges one message delivered by the server. The echo of the
// pending message confirms the send and resets the pending slot; a
// known ID updates the existing entry in place; anything else is
// appended. Each message appears in the conversation exactly once.
func (s *MessageStore) Update(message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == s.pending.ID {
		message.State = MessageSent
		s.replaceLocked(message)
		s.pending = s.freshPending()
		s.publish(MessageUpdated{Message: message})
		return
	}
	if s.indexLocked(message.ID) >= 0 {
		s.replaceLocked(message)
		s.publish(MessageUpdated{Message: message})
		return
	}
	s.conversation = append(s.conversation, message)
	s.publish(MessageInserted{Message: message})
}

func (s *MessageStore) indexLocked(id string) int {
	for i := range s.conversation {
		if s.conversation[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MessageStore) replaceLocked(message Message) {
	if i := s.indexLocked(message.ID); i >= 0 {
		s.conversation[i] = message
	} else {
		s.conversation = append(s.conversation, message)
	}
}

// OnMessageError marks the in-flight message Failed. The failed
// message stays visible in the conversation; the pending slot is reset
// so the next send starts clean.
func (s *MessageStore) OnMessageError(code ErrorCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.State != MessageSending {
		return
	}
	failed := s.pending
	failed.State = MessageFailed
	failed.ErrorCode = code
	failed.ErrorMessage = message
	s.replaceLocked(failed)
	s.pending = s.freshPending()
	s.publish(MessageUpdated{Message: failed})
}

// UpdateAttachmentState tracks an attachment on the pending message
// and republishes the change as an AttachmentUpdated event. Detached
// and confirmed attachments leave the pending slot.
func (s *MessageStore) UpdateAttachmentState(attachment Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch attachment.State {
	case AttachmentDetached, AttachmentSent:
		delete(s.pending.Attachments, attachment.ID)
	default:
		s.pending.Attachments[attachment.ID] = attachment
	}
	s.publish(AttachmentUpdated{Attachment: attachment})
}

// UpdateMessageHistory prepends one fetched page, oldest first, to the
// conversation. The start of the conversation is reached once the
// conversation holds every message the server reports.
func (s *MessageStore) UpdateMessageHistory(page []Message, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(page) > 0 {
		merged := make([]Message, 0, len(page)+len(s.conversation))
		merged = append(merged, page...)
		merged = append(merged, s.conversation...)
		s.conversation = merged
	}
	s.startOfConversation = len(s.conversation) >= total
	s.publish(HistoryFetched{Messages: page, StartOfConversation: s.startOfConversation})
}

// NextPage returns the next history page number, derived from how much
// of the conversation is already held.
func (s *MessageStore) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversation)/api.DefaultPageSize + 1
}

// StartOfConversation reports whether the full history is held.
func (s *MessageStore) StartOfConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startOfConversation
}

// Conversation returns a copy of the conversation, oldest first.
func (s *MessageStore) Conversation() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation := make([]Message, len(s.conversation))
	copy(conversation, s.conversation)
	return conversation
}

// PendingMessage returns a copy of the pending slot.
func (s *MessageStore) PendingMessage() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	pending.Attachments = make(map[string]Attachment, len(s.pending.Attachments))
	for id, attachment := range s.pending.Attachments {
		pending.Attachments[id] = attachment
	}
	return pending
}

// InvalidateConversationCache drops the held conversation and resets
// pagination. Used when the session is reconfigured or cleared and the
// held history may no longer match the server.
func (s *MessageStore) InvalidateConversationCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = nil
	s.startOfConversation = false
}
