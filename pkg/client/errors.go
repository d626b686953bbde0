package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

// Errors returned by the client. Match with errors.Is.
var (
	// ErrInvalidParameter is returned for parameters outside the recognised set.
	// No network call is made.
	ErrInvalidParameter = resource.ErrInvalidParameter

	// ErrRateLimited is returned when CoinGecko kept answering 429 until the
	// retry budget was exhausted.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstream is returned for any other non-success upstream status.
	ErrUpstream = errors.New("upstream error")

	// ErrMalformedResponse is returned when a success body has an unexpected shape.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrNetwork is returned when the request could not be completed at all.
	ErrNetwork = errors.New("upstream network failure")

	// ErrCircuitOpen is returned while the upstream circuit breaker is open.
	ErrCircuitOpen = errors.New("upstream circuit open")

	// ErrContextCancelled is returned when the context ends during a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass is a coarse classification of client errors for metrics,
// retry decisions and the HTTP boundary.
type ErrorClass string

const (
	ErrorClassNone             ErrorClass = ""
	ErrorClassInvalidParameter ErrorClass = "invalid_parameter"
	ErrorClassRateLimit        ErrorClass = "rate_limit"
	ErrorClassUpstream         ErrorClass = "upstream"
	ErrorClassMalformed        ErrorClass = "malformed_response"
	ErrorClassNetwork          ErrorClass = "network"
	ErrorClassCircuitOpen      ErrorClass = "circuit_open"
	ErrorClassCancelled        ErrorClass = "cancelled"
	ErrorClassInternal         ErrorClass = "internal"
)

// UpstreamError is a non-success HTTP status returned by CoinGecko.
type UpstreamError struct {
	StatusCode int
	Kind       resource.Kind
	Path       string
	Message    string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("coingecko %s (%s): status %d: %s", e.Kind, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("coingecko %s (%s): status %d", e.Kind, e.Path, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// RateLimitError is returned once the 429 retry budget is exhausted.
type RateLimitError struct {
	Kind       resource.Kind
	Attempts   int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("coingecko %s: %v after %d attempts", e.Kind, ErrRateLimited, e.Attempts)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Classify maps an error returned by the client to its ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var upstreamErr *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidParameter):
		return ErrorClassInvalidParameter
	case errors.Is(err, ErrRateLimited):
		return ErrorClassRateLimit
	case errors.As(err, &upstreamErr):
		if upstreamErr.StatusCode == http.StatusTooManyRequests {
			return ErrorClassRateLimit
		}
		return ErrorClassUpstream
	case errors.Is(err, ErrMalformedResponse):
		return ErrorClassMalformed
	case errors.Is(err, ErrCircuitOpen):
		return ErrorClassCircuitOpen
	case errors.Is(err, ErrContextCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrNetwork):
		return ErrorClassCancelled
	case errors.Is(err, ErrNetwork):
		return ErrorClassNetwork
	default:
		return ErrorClassInternal
	}
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode
	}
	return 0
}

// shouldRetry determines if an error class is retried. Only the provider's
// rate-limit signal is; everything else propagates immediately.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassRateLimit
}

// countsAsBreakerFailure reports whether err indicates an unhealthy upstream.
func countsAsBreakerFailure(err error) bool {
	switch Classify(err) {
	case ErrorClassRateLimit, ErrorClassNetwork:
		return true
	case ErrorClassUpstream:
		return StatusCode(err) >= http.StatusInternalServerError
	default:
		return false
	}
}
