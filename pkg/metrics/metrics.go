// Package metrics exposes the Prometheus registry shared by the proxy.
// Collectors live next to the code that updates them (client, cache,
// ratelimit, warmup) and register themselves via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the text exposition format for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

// NewIsolatedRegistry returns a registry with the Go and process collectors
// attached, for embedding the proxy without touching the default registry.
func NewIsolatedRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Catalogue
//
// Upstream client (pkg/client):
//   - coingecko_requests_total{kind, status}
//   - coingecko_request_duration_seconds{kind}
//   - coingecko_errors_total{class}
//   - coingecko_retries_total{kind}
//   - coingecko_retry_backoff_seconds{kind}
//   - coingecko_retry_exhausted_total{kind}
//   - coingecko_circuit_breaker_state (0 closed, 1 half-open, 2 open)
//
// Pacing (pkg/ratelimit):
//   - coingecko_rate_limited_total
//   - coingecko_retry_after_seconds
//   - coingecko_pacing_wait_seconds
//
// Response cache (pkg/cache):
//   - coingecko_cache_hits_total{store}
//   - coingecko_cache_misses_total{reason} (absent, stale, store_error)
//   - coingecko_cache_size_bytes{store}
//   - coingecko_cache_errors_total{operation}
//   - coingecko_cache_fetch_duration_seconds{kind, result}
//   - coingecko_cache_dedup_shared_total
//
// Warm-up (pkg/warmup):
//   - coingecko_warmup_requests_total{kind, result}
//   - coingecko_warmup_duration_seconds
//
// Example queries:
//
//	# Cache hit rate
//	sum(rate(coingecko_cache_hits_total[5m])) /
//	(sum(rate(coingecko_cache_hits_total[5m])) + sum(rate(coingecko_cache_misses_total[5m])))
//
//	# Upstream calls saved by request coalescing
//	rate(coingecko_cache_dedup_shared_total[5m])
//
//	# Provider throttling
//	increase(coingecko_rate_limited_total[15m]) > 0
