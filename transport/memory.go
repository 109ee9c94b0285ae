// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "sync"

// Compile-time interface check.
var _ Socket = (*MemorySocket)(nil)

// MemorySocket is an in-process Socket for tests. Sent frames are
// recorded, and tests inject server traffic with ServerMessage,
// ServerClose, and Fail. All callbacks run synchronously on the
// caller's goroutine, which keeps test scenarios deterministic.
type MemorySocket struct {
	// OpenFailure, when non-nil, makes Open report a failure instead
	// of opening. Kind is OpenFailureKind.
	OpenFailure     error
	OpenFailureKind FailureKind

	// DeferClose suppresses the automatic OnClosed delivery from
	// Close. Tests that exercise a peer that never answers the close
	// handshake set this and deliver ServerClose (or Fail) later.
	DeferClose bool

	mu       sync.Mutex
	listener Listener
	open     bool
	sent     []string
	closed   bool
}

// NewMemorySocket creates an in-process socket.
func NewMemorySocket() *MemorySocket {
	return &MemorySocket{}
}

// Open records the listener and delivers OnOpen (or the configured
// failure) synchronously.
func (s *MemorySocket) Open(listener Listener) {
	s.mu.Lock()
	s.listener = listener
	if s.OpenFailure != nil {
		failure := s.OpenFailure
		kind := s.OpenFailureKind
		s.mu.Unlock()
		listener.OnFailure(failure, kind)
		return
	}
	s.open = true
	s.closed = false
	s.mu.Unlock()
	listener.OnOpen()
}

// Send records the frame. Sends on a socket that is not open are
// recorded too, so tests can assert on the full transcript.
func (s *MemorySocket) Send(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
}

// Close delivers OnClosed with the requested code and reason, unless
// DeferClose is set.
func (s *MemorySocket) Close(code int, reason string) {
	s.mu.Lock()
	listener := s.listener
	s.open = false
	s.closed = true
	deferred := s.DeferClose
	s.mu.Unlock()
	if listener != nil && !deferred {
		listener.OnClosed(code, reason)
	}
}

// ServerMessage injects one inbound frame.
func (s *MemorySocket) ServerMessage(text string) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		listener.OnMessage(text)
	}
}

// ServerClose injects a server-initiated close.
func (s *MemorySocket) ServerClose(code int, reason string) {
	s.mu.Lock()
	listener := s.listener
	s.open = false
	s.mu.Unlock()
	if listener != nil {
		listener.OnClosed(code, reason)
	}
}

// Fail injects a transport failure.
func (s *MemorySocket) Fail(err error, kind FailureKind) {
	s.mu.Lock()
	listener := s.listener
	s.open = false
	s.mu.Unlock()
	if listener != nil {
		listener.OnFailure(err, kind)
	}
}

// Sent returns a copy of all frames sent so far, oldest first.
func (s *MemorySocket) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]string, len(s.sent))
	copy(frames, s.sent)
	return frames
}

// LastSent returns the most recent frame, or "" if nothing was sent.
func (s *MemorySocket) LastSent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

// SentCount returns the number of frames sent.
func (s *MemorySocket) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// IsOpen reports whether the socket is currently open.
func (s *MemorySocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// ResetTranscript clears the recorded frames.
func (s *MemorySocket) ResetTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
