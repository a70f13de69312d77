package checkpoint

import (
	"context"
	"sync"
)

// NullStore remembers completions only for the lifetime of the process.
// Used when checkpointing is disabled and in tests; every run starts fresh.
type NullStore struct {
	mu   sync.Mutex
	done map[string]struct{}
}

// NewNullStore creates an in-memory store.
func NewNullStore() *NullStore {
	return &NullStore{done: make(map[string]struct{})}
}

// IsDone reports whether name was marked during this process.
func (s *NullStore) IsDone(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[name]
	return ok
}

// MarkDone records name in memory only.
func (s *NullStore) MarkDone(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[name] = struct{}{}
	return nil
}

// Len returns the number of marked names.
func (s *NullStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// Flush does nothing.
func (s *NullStore) Flush(context.Context) error { return nil }

// Close does nothing.
func (s *NullStore) Close() error { return nil }

var _ Store = (*NullStore)(nil)
