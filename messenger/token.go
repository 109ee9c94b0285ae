// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TokenStore supplies the session token. The token identifies the
// guest's session across connects and reconnects; losing it means
// losing the conversation.
type TokenStore interface {
	// Token returns the session token, generating one on first use.
	Token() (string, error)
}

// MemoryTokenStore generates a token on first use and holds it for the
// lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Token returns the held token, generating one on first use.
func (s *MemoryTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		s.token = uuid.NewString()
	}
	return s.token, nil
}

// FileTokenStore persists the session token to a file so the session
// survives process restarts.
type FileTokenStore struct {
	path string

	mu    sync.Mutex
	token string
}

// NewFileTokenStore creates a token store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Token returns the persisted token, generating and writing one when
// the file is missing or empty.
func (s *FileTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("messenger: failed to read token file %s: %w", s.path, err)
	}
	if token := strings.TrimSpace(string(data)); token != "" {
		s.token = token
		return s.token, nil
	}
	token := uuid.NewString()
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("messenger: failed to write token file %s: %w", s.path, err)
	}
	s.token = token
	return s.token, nil
}
