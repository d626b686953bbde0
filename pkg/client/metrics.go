package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for CoinGecko client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coingecko_requests_total",
		Help: "Total CoinGecko requests by resource kind and status",
	}, []string{"kind", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coingecko_request_duration_seconds",
		Help:    "CoinGecko fetch duration in seconds by resource kind, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coingecko_errors_total",
		Help: "Total CoinGecko fetch errors by class",
	}, []string{"class"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coingecko_retries_total",
		Help: "Total number of retry attempts by resource kind",
	}, []string{"kind"})

	upstreamRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coingecko_retry_backoff_seconds",
		Help:    "Backoff duration before a retry by resource kind",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"kind"})

	upstreamRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coingecko_retry_exhausted_total",
		Help: "Total number of times the rate-limit retry budget was exhausted",
	}, []string{"kind"})

	breakerStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coingecko_circuit_breaker_state",
		Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)
