package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh hits by store backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coingecko_cache_hits_total",
			Help: "Total number of fresh cache hits",
		},
		[]string{"store"}, // "memory", "redis"
	)

	// CacheMisses tracks lookups that had to go upstream, by reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coingecko_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"reason"}, // "absent", "stale", "store_error"
	)

	// CacheSize tracks stored payload bytes by store backend
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coingecko_cache_size_bytes",
			Help: "Current payload size held by the cache in bytes",
		},
		[]string{"store"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coingecko_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "set", "clear"
	)

	// FetchDuration tracks upstream fetches made on behalf of the cache
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coingecko_cache_fetch_duration_seconds",
			Help:    "Duration of upstream fetches triggered by cache misses",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind", "result"}, // result: "ok", "error"
	)

	// DedupShared tracks callers served by another caller's in-flight fetch
	DedupShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coingecko_cache_dedup_shared_total",
			Help: "Total number of misses answered by a shared in-flight fetch",
		},
	)
)
