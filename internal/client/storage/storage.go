// Package storage persists the console's only piece of client state: the
// bearer token. TokenStore is the seam; MemoryStore serves tests and
// ephemeral sessions, SQLiteStore keeps the token across restarts.
package storage

import (
	"context"
	"sync"
)

// TokenStore holds at most one bearer token. Token returns "" when none is
// stored. Clear is idempotent.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Token(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearToken(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
