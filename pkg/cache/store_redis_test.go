package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis starts an in-memory Redis and returns a client on it.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, client
}

func TestNewRedisStore_Panic(t *testing.T) {
	assert.Panics(t, func() { NewRedisStore(nil, 0) })
}

func TestRedisStore_SetAndGet(t *testing.T) {
	_, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()

	fetchedAt := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	entry := &Entry{
		Key:       "cg:coin-detail:coinId=bitcoin",
		Payload:   json.RawMessage(`{"id":"bitcoin"}`),
		FetchedAt: fetchedAt,
	}
	require.NoError(t, store.Set(ctx, entry))

	got, err := store.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, entry.Key, got.Key)
	assert.JSONEq(t, `{"id":"bitcoin"}`, string(got.Payload))
	assert.True(t, got.FetchedAt.Equal(fetchedAt))
}

func TestRedisStore_GetMiss(t *testing.T) {
	_, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)

	_, err := store.Get(context.Background(), "cg:global-market")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)

	require.NoError(t, mr.Set("cg:news", "not json"))

	_, err := store.Get(context.Background(), "cg:news")
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestRedisStore_MismatchedKey(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)

	require.NoError(t, mr.Set("cg:news", `{"key":"cg:global-market","payload":{},"fetched_at":"2024-03-31T12:00:00Z"}`))

	_, err := store.Get(context.Background(), "cg:news")
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestRedisStore_Retention(t *testing.T) {
	mr, client := setupMiniRedis(t)
	ctx := context.Background()

	kept := NewRedisStore(client, 0)
	require.NoError(t, kept.Set(ctx, &Entry{Key: "cg:news", Payload: json.RawMessage(`[]`)}))
	assert.Equal(t, time.Duration(0), mr.TTL("cg:news"))

	expiring := NewRedisStore(client, time.Hour)
	require.NoError(t, expiring.Set(ctx, &Entry{Key: "cg:global-market", Payload: json.RawMessage(`{}`)}))
	assert.Equal(t, time.Hour, mr.TTL("cg:global-market"))

	mr.FastForward(2 * time.Hour)
	_, err := expiring.Get(ctx, "cg:global-market")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_ClearAndLen(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()

	for _, key := range []string{"cg:news", "cg:global-market", "cg:top-coins:currency=usd:pageSize=100"} {
		require.NoError(t, store.Set(ctx, &Entry{Key: key, Payload: json.RawMessage(`{}`)}))
	}
	require.NoError(t, mr.Set("unrelated", "value"))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, store.Clear(ctx))

	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, mr.Exists("unrelated"), "Clear must only remove cache keys")
}

func TestRedisStore_ErrorsAreReported(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()

	mr.SetError("ERR forced error")
	defer mr.SetError("")

	_, err := store.Get(ctx, "cg:news")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, store.Set(ctx, &Entry{Key: "cg:news"}))
	assert.Error(t, store.Ping(ctx))
}

func TestRedisStore_Nil(t *testing.T) {
	_, client := setupMiniRedis(t)
	store := NewRedisStore(client, 0)

	assert.Error(t, store.Set(context.Background(), nil))
}

func TestResponseCache_WithRedisStore(t *testing.T) {
	_, client := setupMiniRedis(t)
	fetcher := &countingFetcher{}
	c, mock := newTestCache(t, fetcher, func(cfg *Config) {
		cfg.Store = NewRedisStore(client, 0)
	})
	ctx := context.Background()

	first, err := c.GetOrFetch(ctx, "global-market", nil)
	require.NoError(t, err)

	mock.Add(time.Minute)
	second, err := c.GetOrFetch(ctx, "global-market", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.JSONEq(t, string(first), string(second))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", stats.Store)
	assert.Equal(t, 1, stats.Entries)
}
