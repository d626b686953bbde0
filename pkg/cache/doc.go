// Package cache provides a read-through TTL cache for CoinGecko responses.
//
// ResponseCache sits in front of any Fetcher (normally *client.Client):
//
//   - Keys are canonical: the resource kind plus every normalised parameter
//     that affects the upstream response, sorted by name
//   - An entry is fresh while now - FetchedAt < ttl (default 5 minutes)
//   - A refresh overwrites the entry; nothing is evicted and there is no size bound
//   - A failed fetch leaves the previous entry in place and returns the error unchanged
//   - Concurrent misses for one key share a single fetch unless DedupInFlight is off
//
// # Basic Usage
//
//	c, err := client.New(client.DefaultConfig("coin-proxy/1.0"))
//	if err != nil {
//		return err
//	}
//
//	responses, err := cache.New(c, cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	payload, err := responses.GetOrFetch(ctx, resource.KindTopCoins, resource.Params{
//		resource.ParamCurrency: "eur",
//	})
//
// # Stores
//
// MemoryStore keeps entries in the process. RedisStore shares them between
// instances:
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), 0)
//	cfg := cache.DefaultConfig()
//	cfg.Store = store
//
// # Metrics
//
//   - coingecko_cache_hits_total{store}
//   - coingecko_cache_misses_total{reason}
//   - coingecko_cache_size_bytes{store}
//   - coingecko_cache_errors_total{operation}
//   - coingecko_cache_fetch_duration_seconds{kind,result}
//   - coingecko_cache_dedup_shared_total
package cache
