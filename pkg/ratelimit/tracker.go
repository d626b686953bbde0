package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for outbound pacing and throttle tracking.
var (
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coingecko_rate_limited_total",
		Help: "Total number of 429 responses received from CoinGecko",
	})

	retryAfterSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coingecko_retry_after_seconds",
		Help: "Retry-After advertised by the most recent 429 response",
	})

	pacingWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coingecko_pacing_wait_seconds",
		Help:    "Time spent waiting for the outbound request pacer",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// Tracker paces outbound requests and records provider throttle signals.
// A zero requests-per-minute value disables pacing; tracking still applies.
type Tracker struct {
	limiter *rate.Limiter
	clock   clock.Clock
	logger  zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewTracker creates a tracker pacing to requestsPerMinute (burst 1).
func NewTracker(requestsPerMinute int, clk clock.Clock, logger zerolog.Logger) *Tracker {
	if clk == nil {
		clk = clock.New()
	}

	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}

	return &Tracker{
		limiter: limiter,
		clock:   clk,
		logger:  logger,
		state:   State{RequestsPerMinute: requestsPerMinute},
	}
}

// Wait blocks until the pacer admits one more outbound request.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("outbound pacer: %w", ctxErr)
		}
		// The limiter refuses up front when the wait would outlast the deadline.
		return fmt.Errorf("outbound pacer: %w: %v", context.DeadlineExceeded, err)
	}
	waited := time.Since(start)
	pacingWaitSeconds.Observe(waited.Seconds())

	if waited > time.Second {
		t.logger.Debug().Dur("waited", waited).Msg("Outbound request paced")
	}
	return nil
}

// ObserveRateLimited records a 429 response and its Retry-After header.
func (t *Tracker) ObserveRateLimited(headers http.Header) {
	now := t.clock.Now()
	retryAfter := ParseRetryAfter(headers.Get("Retry-After"), now)

	t.mu.Lock()
	t.state.RateLimitedTotal++
	t.state.LastRateLimited = now
	t.state.RetryAfter = retryAfter
	total := t.state.RateLimitedTotal
	t.mu.Unlock()

	rateLimitedTotal.Inc()
	retryAfterSeconds.Set(retryAfter.Seconds())

	t.logger.Warn().
		Int64("rate_limited_total", total).
		Dur("retry_after", retryAfter).
		Msg("CoinGecko rate limit hit")
}

// ObserveSuccess records a response that was not a rate-limit signal.
func (t *Tracker) ObserveSuccess() {
	now := t.clock.Now()

	t.mu.Lock()
	t.state.LastSuccess = now
	t.mu.Unlock()
}

// State returns a copy of the current throttle state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Status is the throttle summary reported on the stats endpoint.
type Status struct {
	RateLimitedTotal  int64  `json:"rate_limited_total"`
	RetryAfter        string `json:"retry_after"`
	InCooldown        bool   `json:"in_cooldown"`
	CooldownRemaining string `json:"cooldown_remaining"`
	Healthy           bool   `json:"healthy"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// Status summarises the current state against the tracker's clock.
func (t *Tracker) Status() Status {
	s := t.State()
	now := t.clock.Now()
	return Status{
		RateLimitedTotal:  s.RateLimitedTotal,
		RetryAfter:        s.RetryAfter.String(),
		InCooldown:        s.InCooldown(now),
		CooldownRemaining: s.TimeUntilReset(now).String(),
		Healthy:           s.IsHealthy(),
		RequestsPerMinute: s.RequestsPerMinute,
	}
}

// ParseRetryAfter interprets a Retry-After header given either as delay
// seconds or as an HTTP date. Unparseable or past values yield 0.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
