package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// RetryConfig holds the configuration for rate-limit retries.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial request.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps a single wait (0 = uncapped).
	MaxDelay time.Duration

	// Multiplier is applied to the delay after every retry.
	Multiplier float64
}

// DefaultRetryConfig returns the default retry configuration:
// waits of 1s, 2s and 4s, then give up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Validate checks the retry configuration.
func (rc RetryConfig) Validate() error {
	if rc.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must be >= 0 (got %d)", rc.MaxRetries)
	}
	if rc.BaseDelay < 0 {
		return fmt.Errorf("retry base_delay must be >= 0 (got %s)", rc.BaseDelay)
	}
	if rc.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1 (got %v)", rc.Multiplier)
	}
	return nil
}

// delay returns the wait before retry number n (0-based).
func (rc RetryConfig) delay(n int) time.Duration {
	d := rc.BaseDelay
	for i := 0; i < n; i++ {
		d = time.Duration(float64(d) * rc.Multiplier)
		if rc.MaxDelay > 0 && d >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	if rc.MaxDelay > 0 && d > rc.MaxDelay {
		return rc.MaxDelay
	}
	return d
}

// sleepFunc blocks for d or until ctx ends.
type sleepFunc func(ctx context.Context, d time.Duration) error

// clockSleep returns a sleepFunc driven by clk.
func clockSleep(clk clock.Clock) sleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		timer := clk.Timer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
			return nil
		}
	}
}

// retryWithBackoff calls fn until it succeeds, fails with a non-retryable
// error, or the retry budget runs out. It returns the number of retries
// performed. Exhaustion yields a *RateLimitError.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, sleep sleepFunc, kind resource.Kind, fn func() error) (int, error) {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("kind", kind.String()).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		if !shouldRetry(Classify(err)) {
			return attempt, err
		}

		if attempt >= cfg.MaxRetries {
			upstreamRetryExhaustedTotal.WithLabelValues(kind.String()).Inc()
			log.Warn().
				Str("kind", kind.String()).
				Int("max_retries", cfg.MaxRetries).
				Msg("Retry attempts exhausted")
			return attempt, &RateLimitError{Kind: kind, Attempts: attempt + 1}
		}

		backoff := cfg.delay(attempt)
		upstreamRetriesTotal.WithLabelValues(kind.String()).Inc()
		upstreamRetryBackoffSeconds.WithLabelValues(kind.String()).Observe(backoff.Seconds())

		log.Debug().
			Str("kind", kind.String()).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Rate limited, retrying after backoff")

		if err := sleep(ctx, backoff); err != nil {
			log.Warn().
				Str("kind", kind.String()).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return attempt, err
		}
	}
}
