package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session
func (m *MemoryStore) Load(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, nil
	}
	return m.session.WithToken(m.session.Token), nil
}

// Save replaces the stored session
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s.WithToken(s.Token)
	return nil
}

// Delete removes the stored session
func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// CheckHealth always succeeds for the in-memory store
func (m *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
