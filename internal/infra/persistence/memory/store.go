// Package memory provides an in-process archive store used by tests and the
// default service configuration.
package memory

import (
	"context"
	"sort"
	"sync"

	"solidcore/internal/archive"
)

var _ archive.Store = (*Store)(nil)

type entry struct {
	meta    archive.Meta
	payload []byte
}

// Store keeps archives in a map guarded by a RWMutex. Payloads are copied on
// the way in and out so callers cannot alias stored bytes.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "memory" }

// Put stores payload under meta.Name, replacing any earlier archive.
func (s *Store) Put(_ context.Context, meta archive.Meta, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[meta.Name] = entry{meta: meta, payload: append([]byte(nil), payload...)}
	return nil
}

// Get returns the archive stored under name.
func (s *Store) Get(_ context.Context, name string) (archive.Meta, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return archive.Meta{}, nil, archive.ErrNotFound
	}
	return e.meta, append([]byte(nil), e.payload...), nil
}

// List returns every stored archive ordered by name.
func (s *Store) List(_ context.Context) ([]archive.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]archive.Meta, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes name, reporting whether it existed.
func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	delete(s.entries, name)
	return ok, nil
}
