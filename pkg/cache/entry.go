package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached upstream response.
type Entry struct {
	// Key is the canonical cache key the entry is stored under.
	Key string `json:"key"`

	// Payload is the reshaped response body. Callers must not modify it.
	Payload json.RawMessage `json:"payload"`

	// FetchedAt is when the payload was fetched from upstream.
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsFresh reports whether now - FetchedAt < ttl.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}
