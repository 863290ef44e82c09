// Package ratelimit tracks service-side throttling and gates batch requests.
// It records the Retry-After delay advertised on 429 and 503 responses so
// that every client instance sharing the Redis backend waits it out.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyBlockedUntil = "odata:throttle:blocked_until"
	RedisKeyLastStatus   = "odata:throttle:last_status"
)

const (
	// MaxBlockWindow caps how long a single Retry-After may block requests.
	// Protects against services advertising absurd delays.
	MaxBlockWindow = 10 * time.Minute

	// DefaultBlockWindow applies to 429 responses without Retry-After.
	DefaultBlockWindow = 5 * time.Second
)

// ThrottleState represents the current service throttle window.
// This state is shared across all client instances via Redis.
type ThrottleState struct {
	// BlockedUntil is when requests may resume. Zero when not throttled.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastStatus is the HTTP status that opened the window (429 or 503).
	LastStatus int `json:"last_status"`
}

// IsBlocked returns true if requests must wait at the given instant.
func (s *ThrottleState) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilOpen returns the remaining wait at the given instant.
// Returns 0 if the window has already passed.
func (s *ThrottleState) TimeUntilOpen(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// clampWindow bounds a server-provided delay to [0, MaxBlockWindow].
func clampWindow(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxBlockWindow {
		return MaxBlockWindow
	}
	return d
}
