package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Store. Entries live until overwritten or cleared.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get returns a copy of the entry for key. The payload bytes are shared.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Set stores entry, replacing any previous entry for the same key.
func (s *MemoryStore) Set(_ context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	s.mu.Lock()
	s.entries[entry.Key] = *entry
	s.mu.Unlock()

	CacheSize.WithLabelValues(s.Name()).Set(float64(s.bytes()))
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	CacheSize.WithLabelValues(s.Name()).Set(0)
	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Name implements Store.
func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) bytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		n += len(e.Payload)
	}
	return n
}
