package warmup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/cache"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	warmupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coingecko_warmup_requests_total",
		Help: "Total warm-up requests by resource kind and result",
	}, []string{"kind", "result"})

	warmupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coingecko_warmup_duration_seconds",
		Help:    "Duration of a complete warm-up pass",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
	})
)

// Loader is the cache operation the warmer drives. *cache.ResponseCache implements it.
type Loader interface {
	GetOrFetch(ctx context.Context, kind resource.Kind, params resource.Params, opts ...cache.Option) (json.RawMessage, error)
}

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	// Keep it low: every miss costs one upstream call.
	MaxConcurrency int
	// Timeout per request, retries included
	Timeout time.Duration
	// Clock drives Run's schedule (defaults to the wall clock)
	Clock clock.Clock
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 2,
		Timeout:        30 * time.Second,
	}
}

// Request is one resource to warm.
type Request struct {
	Kind   resource.Kind
	Params resource.Params
}

// String renders the request in the form ParseRequest accepts.
func (r Request) String() string {
	if len(r.Params) == 0 {
		return string(r.Kind)
	}
	q := url.Values{}
	for k, v := range r.Params {
		q.Set(k, v)
	}
	return string(r.Kind) + "?" + q.Encode()
}

// ParseRequest parses "kind" or "kind?name=value&...".
func ParseRequest(s string) (Request, error) {
	s = strings.TrimSpace(s)
	kindPart, query, _ := strings.Cut(s, "?")

	kind, err := resource.ParseKind(kindPart)
	if err != nil {
		return Request{}, err
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return Request{}, fmt.Errorf("%w: warm-up request %q: %v", resource.ErrInvalidParameter, s, err)
	}
	params := resource.Params{}
	for k := range values {
		params[k] = values.Get(k)
	}

	if _, err := resource.Normalize(kind, params); err != nil {
		return Request{}, fmt.Errorf("warm-up request %q: %w", s, err)
	}
	return Request{Kind: kind, Params: params}, nil
}

// ParseRequests parses a list, skipping blank items.
func ParseRequests(items []string) ([]Request, error) {
	out := make([]Request, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		r, err := ParseRequest(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DefaultRequests are the resources the dashboard landing page needs.
func DefaultRequests() []Request {
	return []Request{
		{Kind: resource.KindTopCoins, Params: resource.Params{}},
		{Kind: resource.KindGlobalMarket},
		{Kind: resource.KindTrendingCoins},
	}
}

// Result is the outcome of warming one request.
type Result struct {
	Request  Request
	Bytes    int
	Duration time.Duration
	Err      error
}

// Report summarises a warm-up pass.
type Report struct {
	Succeeded int
	Failed    int
	Results   []Result
	Duration  time.Duration
}

// Warmer loads a list of requests through the cache using a worker pool
type Warmer struct {
	loader Loader
	config Config
}

// New creates a new warmer
func New(loader Loader, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &Warmer{
		loader: loader,
		config: config,
	}
}

// Warm loads every request once. Results keep the order of reqs. Failures
// do not stop the pass; the returned error reports how many failed.
func (w *Warmer) Warm(ctx context.Context, reqs []Request) (Report, error) {
	start := time.Now()

	log.Info().
		Int("requests", len(reqs)).
		Int("workers", w.config.MaxConcurrency).
		Msg("Starting cache warm-up")

	results := make([]Result, len(reqs))
	queue := make(chan int, len(reqs))
	for i := range reqs {
		queue <- i
	}
	close(queue)

	workers := w.config.MaxConcurrency
	if workers > len(reqs) {
		workers = len(reqs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go w.worker(ctx, reqs, queue, results, &wg, i)
	}
	wg.Wait()

	report := Report{Results: results, Duration: time.Since(start)}
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		report.Succeeded++
	}
	warmupDuration.Observe(report.Duration.Seconds())

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Cache warm-up complete")

	if firstErr != nil {
		return report, fmt.Errorf("warm-up (partial: %d/%d succeeded): %w", report.Succeeded, len(reqs), firstErr)
	}
	return report, nil
}

// worker processes request indexes from the queue
func (w *Warmer) worker(ctx context.Context, reqs []Request, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		req := reqs[i]

		if err := ctx.Err(); err != nil {
			results[i] = Result{Request: req, Err: err}
			warmupRequestsTotal.WithLabelValues(req.Kind.String(), "cancelled").Inc()
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		start := time.Now()
		payload, err := w.loader.GetOrFetch(reqCtx, req.Kind, req.Params)
		cancel()

		results[i] = Result{Request: req, Bytes: len(payload), Duration: time.Since(start), Err: err}
		if err != nil {
			warmupRequestsTotal.WithLabelValues(req.Kind.String(), "error").Inc()
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("request", req.String()).
				Msg("Warm-up request failed")
			continue
		}

		warmupRequestsTotal.WithLabelValues(req.Kind.String(), "ok").Inc()
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Warm-up worker completed")
	}
}

// Run warms reqs immediately and then every interval until ctx ends.
// Only stale entries are refetched on later passes.
func (w *Warmer) Run(ctx context.Context, reqs []Request, interval time.Duration) {
	if _, err := w.Warm(ctx, reqs); err != nil {
		log.Warn().Err(err).Msg("Initial cache warm-up incomplete")
	}
	if interval <= 0 {
		return
	}

	ticker := w.config.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Warm(ctx, reqs); err != nil {
				log.Warn().Err(err).Msg("Scheduled cache warm-up incomplete")
			}
		}
	}
}
