// Package session holds the bearer token shared by the login flow and the API client.
package session

import (
	"context"
	"fmt"
	"sync"
)

// StorageKey is the fixed key the token is persisted under.
const StorageKey = "token"

// Backend persists key/value pairs across process restarts.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Session is the single process-wide token holder. It is passed explicitly to
// whichever component issues authenticated calls.
//
// No expiry check is made locally; an expired token surfaces as a failed API call.
type Session struct {
	backend Backend

	mu    sync.RWMutex
	token string
}

// Open loads the persisted token, if any.
func Open(ctx context.Context, backend Backend) (*Session, error) {
	token, _, err := backend.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return &Session{backend: backend, token: token}, nil
}

// Token returns the current token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set stores token in memory and persists it.
func (s *Session) Set(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(ctx, StorageKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	s.token = token
	return nil
}

// Clear forgets the token in memory and in storage.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if err := s.backend.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
