package cache

import (
	"testing"
	"time"
)

func TestEntry_IsFresh(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "just fetched", now: fetchedAt, want: true},
		{name: "inside window", now: fetchedAt.Add(4*time.Minute + 59*time.Second), want: true},
		{name: "exactly ttl is stale", now: fetchedAt.Add(ttl), want: false},
		{name: "past window", now: fetchedAt.Add(time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{FetchedAt: fetchedAt}
			if got := entry.IsFresh(tt.now, ttl); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_ZeroTTLNeverFresh(t *testing.T) {
	now := time.Now()
	entry := &Entry{FetchedAt: now}
	if entry.IsFresh(now, 0) {
		t.Error("IsFresh() with zero ttl should be false")
	}
}

func TestEntry_Age(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	entry := &Entry{FetchedAt: fetchedAt}

	if got := entry.Age(fetchedAt.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Age() = %v, want 90s", got)
	}
}
