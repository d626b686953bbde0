package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store holds cache entries by key. Implementations must be safe for
// concurrent use; a single Get or Set is atomic.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under entry.Key, replacing any previous entry.
	Set(ctx context.Context, entry *Entry) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Name identifies the backend in metrics and stats.
	Name() string
}
