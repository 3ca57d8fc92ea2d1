package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tourguide/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save persists the session in memory.
// Sessions are kept in their durable encoding so the store behaves like the others.
func (s *Store) Save(ctx context.Context, tabID string, session *domain.Session) error {
	data, err := domain.MarshalSession(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tabID] = data
	return nil
}

// Load retrieves the session from memory.
func (s *Store) Load(ctx context.Context, tabID string) (*domain.Session, error) {
	s.mu.RLock()
	data, ok := s.data[tabID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return domain.UnmarshalSession(data)
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, tabID)
	return nil
}

// List returns the tabs with a stored session.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tabs := make([]string, 0, len(s.data))
	for id := range s.data {
		tabs = append(tabs, id)
	}
	sort.Strings(tabs)
	return tabs, nil
}

// Put stores a raw record for a tab, bypassing validation.
// Tests use it to simulate records written by older or broken writers.
func (s *Store) Put(tabID string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tabID] = append([]byte(nil), raw...)
}
