package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/logging"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the freshness window applied when none is configured.
const DefaultTTL = 5 * time.Minute

// DefaultFetchTimeout bounds a fetch shared by deduplicated callers.
const DefaultFetchTimeout = 60 * time.Second

// Fetcher retrieves a resource from upstream. *client.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, kind resource.Kind, params resource.Params) (json.RawMessage, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, kind resource.Kind, params resource.Params) (json.RawMessage, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, kind resource.Kind, params resource.Params) (json.RawMessage, error) {
	return f(ctx, kind, params)
}

// Config holds the cache configuration.
type Config struct {
	// TTL is the default freshness window.
	TTL time.Duration

	// DedupInFlight makes concurrent misses for one key share a single fetch.
	DedupInFlight bool

	// FetchTimeout bounds a shared fetch. It runs detached from any single
	// caller's context so one caller leaving does not fail the others.
	FetchTimeout time.Duration

	// Store backend (defaults to a MemoryStore).
	Store Store

	// Clock used for FetchedAt and freshness checks (defaults to the wall clock).
	Clock clock.Clock
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:           DefaultTTL,
		DedupInFlight: true,
		FetchTimeout:  DefaultFetchTimeout,
	}
}

// Stats is a snapshot of cache activity since start (or the last Clear).
type Stats struct {
	Store         string `json:"store"`
	Entries       int    `json:"entries"`
	TTL           string `json:"ttl"`
	DedupInFlight bool   `json:"dedup_in_flight"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Stale         uint64 `json:"stale"`
	Fetches       uint64 `json:"fetches"`
	FetchErrors   uint64 `json:"fetch_errors"`
	Shared        uint64 `json:"shared"`
}

// Option customises a single GetOrFetch call.
type Option func(*callOptions)

type callOptions struct {
	ttl time.Duration
}

// WithTTL overrides the freshness window for one call. A zero TTL forces a refresh.
func WithTTL(ttl time.Duration) Option {
	return func(o *callOptions) {
		o.ttl = ttl
	}
}

// ResponseCache is a read-through TTL cache in front of a Fetcher.
// Entries are overwritten on refresh and never evicted.
type ResponseCache struct {
	fetcher Fetcher
	store   Store
	clock   clock.Clock
	ttl     time.Duration
	dedup   bool
	timeout time.Duration
	group   singleflight.Group
	logger  zerolog.Logger

	hits, misses, stale, fetches, fetchErrors, shared atomic.Uint64
}

// New creates a ResponseCache in front of fetcher.
func New(fetcher Fetcher, cfg Config) (*ResponseCache, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must be >= 0 (got %s)", cfg.TTL)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout < 0 {
		return nil, fmt.Errorf("fetch timeout must be >= 0 (got %s)", cfg.FetchTimeout)
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &ResponseCache{
		fetcher: fetcher,
		store:   cfg.Store,
		clock:   cfg.Clock,
		ttl:     cfg.TTL,
		dedup:   cfg.DedupInFlight,
		timeout: cfg.FetchTimeout,
		logger:  logging.NewLogger("response-cache"),
	}, nil
}

// GetOrFetch returns the payload for kind and params. A fresh entry is
// returned without an upstream call; otherwise the fetcher is called and the
// entry overwritten. Fetch errors are returned unchanged and leave any
// existing entry in place.
func (c *ResponseCache) GetOrFetch(ctx context.Context, kind resource.Kind, params resource.Params, opts ...Option) (json.RawMessage, error) {
	o := callOptions{ttl: c.ttl}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl < 0 {
		return nil, fmt.Errorf("%w: ttl must be >= 0 (got %s)", resource.ErrInvalidParameter, o.ttl)
	}

	key, err := NewKey(kind, params)
	if err != nil {
		return nil, err
	}
	cacheKey := key.String()

	if entry, ok := c.lookup(ctx, cacheKey, o.ttl); ok {
		c.hits.Add(1)
		CacheHits.WithLabelValues(c.store.Name()).Inc()
		c.logger.Debug().Str("key", cacheKey).Msg("Cache hit")
		return entry.Payload, nil
	}

	if !c.dedup {
		return c.fetchAndStore(ctx, key, cacheKey)
	}

	ch := c.group.DoChan(cacheKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		// Another caller may have refreshed the entry while we were queued.
		if entry, ok := c.peek(fetchCtx, cacheKey, o.ttl); ok {
			return entry.Payload, nil
		}
		return c.fetchAndStore(fetchCtx, key, cacheKey)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
			DedupShared.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		// The shared fetch keeps running for the remaining callers.
		return nil, ctx.Err()
	}
}

// lookup reads the store and records why a lookup missed.
func (c *ResponseCache) lookup(ctx context.Context, key string, ttl time.Duration) (*Entry, bool) {
	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil && entry.IsFresh(c.clock.Now(), ttl):
		return entry, true
	case err == nil:
		c.stale.Add(1)
		CacheMisses.WithLabelValues("stale").Inc()
		c.logger.Debug().
			Str("key", key).
			Dur("age", entry.Age(c.clock.Now())).
			Msg("Cache entry stale")
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.WithLabelValues("absent").Inc()
	default:
		CacheMisses.WithLabelValues("store_error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache get error, treating as miss")
	}
	c.misses.Add(1)
	return nil, false
}

// peek reads the store without recording metrics.
func (c *ResponseCache) peek(ctx context.Context, key string, ttl time.Duration) (*Entry, bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil || !entry.IsFresh(c.clock.Now(), ttl) {
		return nil, false
	}
	return entry, true
}

func (c *ResponseCache) fetchAndStore(ctx context.Context, key Key, cacheKey string) (json.RawMessage, error) {
	c.fetches.Add(1)
	start := time.Now()

	payload, err := c.fetcher.Fetch(ctx, key.Kind, key.Params)
	if err != nil {
		c.fetchErrors.Add(1)
		FetchDuration.WithLabelValues(key.Kind.String(), "error").Observe(time.Since(start).Seconds())
		c.logger.Debug().Err(err).Str("key", cacheKey).Msg("Upstream fetch failed, entry left unchanged")
		return nil, err
	}
	FetchDuration.WithLabelValues(key.Kind.String(), "ok").Observe(time.Since(start).Seconds())

	entry := &Entry{
		Key:       cacheKey,
		Payload:   payload,
		FetchedAt: c.clock.Now(),
	}
	if err := c.store.Set(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache response")
	} else {
		c.logger.Debug().
			Str("key", cacheKey).
			Int("bytes", len(payload)).
			Msg("Cached response")
	}

	return payload, nil
}

// Clear removes every entry and resets the counters.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	for _, n := range []*atomic.Uint64{&c.hits, &c.misses, &c.stale, &c.fetches, &c.fetchErrors, &c.shared} {
		n.Store(0)
	}
	c.logger.Info().Str("store", c.store.Name()).Msg("Cache cleared")
	return nil
}

// Stats returns a snapshot of cache activity.
func (c *ResponseCache) Stats(ctx context.Context) (Stats, error) {
	entries, err := c.store.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count entries: %w", err)
	}
	return Stats{
		Store:         c.store.Name(),
		Entries:       entries,
		TTL:           c.ttl.String(),
		DedupInFlight: c.dedup,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Stale:         c.stale.Load(),
		Fetches:       c.fetches.Load(),
		FetchErrors:   c.fetchErrors.Load(),
		Shared:        c.shared.Load(),
	}, nil
}

// TTL returns the default freshness window.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Store returns the backing store.
func (c *ResponseCache) Store() Store {
	return c.store
}
