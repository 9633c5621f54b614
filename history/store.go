package history

import (
	"context"
	"slices"
	"sync"
)

// Store persists run records. List returns the newest records first; a
// limit <= 0 returns all records. Saving a record with an existing run id
// replaces it.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, runID string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Count(ctx context.Context) (int, error)
}

// InMemoryStore is a volatile Store implementation storing records in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral processes. Records are cloned on the way in and out to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

// Save stores a clone of rec.
func (s *InMemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.RunID]; ok {
		s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == rec.RunID })
	}
	s.order = append(s.order, rec.RunID)
	s.records[rec.RunID] = rec.Clone()

	return nil
}

// Get returns a clone of the record of runID.
func (s *InMemoryStore) Get(_ context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[runID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns up to limit records, newest first.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Record, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[s.order[i]].Clone())
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *InMemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
