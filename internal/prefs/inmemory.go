package prefs

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process preference store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Preferences
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Preferences)}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[userID]
	if !ok {
		return Preferences{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) Save(_ context.Context, userID string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.records[userID]
	p.UserID = userID
	p.apply(update)
	s.records[userID] = p
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
