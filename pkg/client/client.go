// Package client provides the CoinGecko HTTP client with pacing, rate-limit
// retries, a circuit breaker and per-resource response reshaping.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/logging"
	"github.com/Sternrassler/coingecko-cache/pkg/ratelimit"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// APIKeyHeader carries the optional demo API key.
const APIKeyHeader = "x-cg-demo-api-key"

// maxErrorSnippet bounds how much of an error body ends up in UpstreamError.
const maxErrorSnippet = 256

// Client fetches CoinGecko resources and returns their reshaped payloads.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tracker    *ratelimit.Tracker
	breaker    *gobreaker.CircuitBreaker
	clock      clock.Clock
	sleep      sleepFunc
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the CoinGecko API (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as x-cg-demo-api-key when set.
	APIKey string

	// User-Agent header (REQUIRED)
	UserAgent string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// RequestsPerMinute paces outbound requests (0 = unpaced).
	RequestsPerMinute int

	// MaxBodyBytes bounds a response body.
	MaxBodyBytes int64

	// Retry on HTTP 429
	Retry RetryConfig

	// Breaker around the whole retry sequence
	Breaker BreakerConfig

	// Clock drives backoff waits and throttle timestamps (defaults to the wall clock).
	Clock clock.Clock

	// HTTPClient overrides the transport (Timeout above still applies per attempt).
	HTTPClient *http.Client
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	Enabled bool

	// FailureThreshold is the number of consecutive upstream failures that opens the circuit.
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before a probe is let through.
	OpenTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		Timeout:           10 * time.Second,
		RequestsPerMinute: 30,
		MaxBodyBytes:      32 << 20,
		Retry:             DefaultRetryConfig(),
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
	}
}

// New creates a new CoinGecko client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("requests_per_minute must be >= 0 (got %d)", cfg.RequestsPerMinute)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Breaker.Enabled && cfg.Breaker.FailureThreshold == 0 {
		return nil, fmt.Errorf("breaker failure_threshold must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	logger := logging.NewLogger("coingecko-client")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		tracker:    ratelimit.NewTracker(cfg.RequestsPerMinute, cfg.Clock, logger),
		clock:      cfg.Clock,
		sleep:      clockSleep(cfg.Clock),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Breaker.Enabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "coingecko",
			MaxRequests: 1,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				return !countsAsBreakerFailure(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				breakerStateGauge.Set(float64(to))
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// Fetch retrieves kind with params from CoinGecko and returns the reshaped
// payload. Invalid params fail with ErrInvalidParameter before any network
// call; a 429 is retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, kind resource.Kind, params resource.Params) (json.RawMessage, error) {
	normalized, err := resource.Normalize(kind, params)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassInvalidParameter)).Inc()
		return nil, err
	}

	endpoint, err := c.buildURL(kind, normalized)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(kind.String()).Observe(time.Since(startTime).Seconds())
	}()

	body, err := c.execute(ctx, kind, endpoint)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(Classify(err))).Inc()
		return nil, err
	}

	payload, err := reshape(kind, body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		c.logger.Warn().Err(err).Str("kind", kind.String()).Msg("Unexpected response shape")
		return nil, err
	}
	return payload, nil
}

// execute runs the retry sequence, through the breaker when enabled.
func (c *Client) execute(ctx context.Context, kind resource.Kind, endpoint string) ([]byte, error) {
	run := func() ([]byte, error) {
		var body []byte
		_, err := retryWithBackoff(ctx, c.config.Retry, c.sleep, kind, func() error {
			b, err := c.doOnce(ctx, kind, endpoint)
			body = b
			return err
		})
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) {
				rle.RetryAfter = c.tracker.State().RetryAfter
			}
			return nil, err
		}
		return body, nil
	}

	if c.breaker == nil {
		return run()
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return run()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn().Str("kind", kind.String()).Msg("Request rejected by open circuit")
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// doOnce performs a single HTTP attempt.
func (c *Client) doOnce(ctx context.Context, kind resource.Kind, endpoint string) ([]byte, error) {
	if err := c.tracker.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.config.APIKey)
	}

	c.logger.Debug().
		Str("kind", kind.String()).
		Str("path", req.URL.Path).
		Msg("Executing CoinGecko request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error().Err(err).Str("kind", kind.String()).Msg("HTTP request failed")
		upstreamRequestsTotal.WithLabelValues(kind.String(), "network_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(kind.String(), strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.tracker.ObserveRateLimited(resp.Header)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Kind: kind, Path: req.URL.Path}
	}
	c.tracker.ObserveSuccess()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		c.logger.Warn().
			Str("kind", kind.String()).
			Int("status", resp.StatusCode).
			Msg("CoinGecko request error")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Path:       req.URL.Path,
			Message:    snippet,
		}
	}

	return body, nil
}

// RateLimitStatus summarises the 429s seen from CoinGecko.
func (c *Client) RateLimitStatus() ratelimit.Status {
	return c.tracker.Status()
}

// BreakerState returns the circuit breaker state ("disabled" when off).
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
