package rotation

import (
	"context"
	"sync"
)

// MemoryStore keeps the map in process memory. Used in tests and when no
// durable backend is configured.
type MemoryStore struct {
	mu sync.Mutex
	m  Map

	// LoadErr and PersistErr, when set, are returned instead of doing work.
	LoadErr    error
	PersistErr error
}

// NewMemoryStore returns a store seeded with a copy of initial.
func NewMemoryStore(initial Map) *MemoryStore {
	if initial == nil {
		initial = Map{}
	}
	return &MemoryStore{m: initial.Clone()}
}

// LoadAll returns a copy of the stored map.
func (s *MemoryStore) LoadAll(ctx context.Context) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, loadErr("memory", s.LoadErr)
	}
	return s.m.Clone(), nil
}

// Persist replaces the stored map with a copy of m.
func (s *MemoryStore) Persist(ctx context.Context, m Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PersistErr != nil {
		return persistErr("memory", s.PersistErr)
	}
	s.m = m.Clone()
	return nil
}

// Snapshot returns a copy of the stored map without going through LoadAll.
func (s *MemoryStore) Snapshot() Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Clone()
}
