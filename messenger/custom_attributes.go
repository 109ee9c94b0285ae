// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"log/slog"
	"sync"
)

// CustomAttributesState tracks the delivery of the attribute batch.
type CustomAttributesState int

const (
	// AttributesPending means unsent changes are waiting for the next
	// outbound message.
	AttributesPending CustomAttributesState = iota
	// AttributesSending means the batch rides along with an in-flight
	// message.
	AttributesSending
	// AttributesSent means the server confirmed the batch.
	AttributesSent
	// AttributesFailed means the server rejected the batch, typically
	// because it was too large.
	AttributesFailed
)

// String returns a stable label for logging.
func (s CustomAttributesState) String() string {
	switch s {
	case AttributesSending:
		return "sending"
	case AttributesSent:
		return "sent"
	case AttributesFailed:
		return "failed"
	default:
		return "pending"
	}
}

// CustomAttributesStore accumulates key/value metadata to piggyback on
// the next outbound message. Attributes merge; a changed value moves
// the whole batch back to pending so it is retransmitted.
type CustomAttributesStore struct {
	logger *slog.Logger

	mu         sync.Mutex
	attributes map[string]string
	state      CustomAttributesState
}

// NewCustomAttributesStore creates an empty store.
func NewCustomAttributesStore(logger *slog.Logger) *CustomAttributesStore {
	return &CustomAttributesStore{
		logger:     logger,
		attributes: make(map[string]string),
	}
}

// Add merges attributes into the store. Returns true when anything
// changed; a changed batch becomes Pending regardless of its previous
// state.
func (s *CustomAttributesStore) Add(attributes map[string]string) bool {
	if len(attributes) == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for key, value := range attributes {
		if current, ok := s.attributes[key]; !ok || current != value {
			s.attributes[key] = value
			changed = true
		}
	}
	if changed {
		s.state = AttributesPending
		s.logger.Debug("custom attributes updated", "count", len(s.attributes))
	}
	return changed
}

// Get returns a copy of the current attributes.
func (s *CustomAttributesStore) Get() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	attributes := make(map[string]string, len(s.attributes))
	for key, value := range s.attributes {
		attributes[key] = value
	}
	return attributes
}

// State returns the delivery state of the batch.
func (s *CustomAttributesStore) State() CustomAttributesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ToSend returns the batch when it needs transmission, nil otherwise.
// A Failed batch rides along with the next message so a transient
// rejection heals itself; a batch that is genuinely too large keeps
// failing until a corrective Add shrinks it.
func (s *CustomAttributesStore) ToSend() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttributesPending && s.state != AttributesFailed {
		return nil
	}
	if len(s.attributes) == 0 {
		return nil
	}
	attributes := make(map[string]string, len(s.attributes))
	for key, value := range s.attributes {
		attributes[key] = value
	}
	return attributes
}

// OnSending marks the batch in flight.
func (s *CustomAttributesStore) OnSending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = AttributesSending
}

// OnSent marks the in-flight batch confirmed. A batch that picked up
// new changes while in flight stays Pending.
func (s *CustomAttributesStore) OnSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == AttributesSending {
		s.state = AttributesSent
	}
}

// OnError marks the batch rejected. The attributes are kept and are
// retried with the next outbound message.
func (s *CustomAttributesStore) OnError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = AttributesFailed
}

// OnMessageError returns an in-flight batch to Pending so the next
// message retries it. The carrying message failed for reasons
// unrelated to the attributes.
func (s *CustomAttributesStore) OnMessageError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == AttributesSending {
		s.state = AttributesPending
	}
}

// OnSessionClosed clears the store.
func (s *CustomAttributesStore) OnSessionClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes = make(map[string]string)
	s.state = AttributesPending
}
