package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the SCAN page size used by Clear and Len.
const scanBatch = 100

// RedisStore keeps entries in Redis so that several proxy instances share
// one cache and entries survive restarts.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

// NewRedisStore creates a store on redisClient. A positive retention sets a
// Redis expiry on every write; zero keeps entries until overwritten.
// Freshness is decided by the cache from FetchedAt, never by retention.
func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Key != key {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: stored under %q but keyed %q", ErrInvalidEntry, key, entry.Key)
	}

	return &entry, nil
}

// Set stores an entry, replacing any previous value.
func (s *RedisStore) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, entry.Key, data, s.retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Clear deletes every key under KeyPrefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.redis.Del(ctx, keys[start:end]...).Err(); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}

	return nil
}

// Len counts keys under KeyPrefix.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Name implements Store.
func (s *RedisStore) Name() string {
	return "redis"
}

// Ping checks connectivity for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, KeyPrefix+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
