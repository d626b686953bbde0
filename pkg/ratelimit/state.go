// Package ratelimit paces outbound CoinGecko requests and tracks the throttle
// signals (HTTP 429, Retry-After) the provider sends back.
package ratelimit

import (
	"time"
)

// State is a snapshot of the observed upstream throttle state.
type State struct {
	// RateLimitedTotal counts every 429 response seen since start.
	RateLimitedTotal int64 `json:"rate_limited_total"`

	// LastRateLimited is when the most recent 429 was observed.
	LastRateLimited time.Time `json:"last_rate_limited,omitempty"`

	// RetryAfter is the delay advertised by the most recent 429, if any.
	RetryAfter time.Duration `json:"retry_after"`

	// LastSuccess is when the most recent non-429 response was observed.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// RequestsPerMinute is the configured outbound pace (0 = unpaced).
	RequestsPerMinute int `json:"requests_per_minute"`
}

// CooldownUntil returns the instant the provider asked us to wait for.
// Zero when no Retry-After was advertised.
func (s *State) CooldownUntil() time.Time {
	if s.LastRateLimited.IsZero() || s.RetryAfter <= 0 {
		return time.Time{}
	}
	return s.LastRateLimited.Add(s.RetryAfter)
}

// InCooldown reports whether now falls inside the advertised Retry-After window.
func (s *State) InCooldown(now time.Time) bool {
	until := s.CooldownUntil()
	return !until.IsZero() && now.Before(until)
}

// TimeUntilReset returns the remaining cooldown, or 0 if none.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	until := s.CooldownUntil()
	if until.IsZero() {
		return 0
	}
	d := until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsHealthy is true when the last response was not a rate-limit signal.
func (s *State) IsHealthy() bool {
	return s.LastRateLimited.IsZero() || s.LastSuccess.After(s.LastRateLimited)
}
