// Package ratelimit shares Prismic throttling state between processes.
//
// Prismic answers excessive traffic with 429 Too Many Requests and a
// Retry-After header. The Tracker stores the resulting cooldown window in
// Redis so that every builder and server sharing that Redis stops calling the
// API until the window has passed.
package ratelimit

import (
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyBlockedUntil      = "prismic:cooldown:blocked_until"
	RedisKeyConsecutiveLimits = "prismic:cooldown:consecutive_limits"
	RedisKeyLastUpdate        = "prismic:cooldown:last_update"
)

const (
	// DefaultCooldown applies when a 429 carries no usable Retry-After.
	DefaultCooldown = 10 * time.Second

	// MaxCooldown caps the window taken from Retry-After.
	MaxCooldown = 5 * time.Minute

	// ThrottleThreshold is the number of consecutive 429s after which
	// allowed requests are delayed by the throttle delay.
	ThrottleThreshold = 3
)

// CooldownState is the shared throttling state.
type CooldownState struct {
	// BlockedUntil is zero when no cooldown is active.
	BlockedUntil time.Time `json:"blocked_until"`

	// ConsecutiveLimits counts 429 responses since the last success.
	ConsecutiveLimits int `json:"consecutive_limits"`

	LastUpdate time.Time `json:"last_update"`
}

// IsStale reports whether the state is older than maxAge.
func (s *CooldownState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsBlocked reports whether requests must not be sent.
func (s *CooldownState) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// NeedsThrottling reports whether allowed requests should be delayed.
func (s *CooldownState) NeedsThrottling() bool {
	return s.ConsecutiveLimits >= ThrottleThreshold && !s.IsBlocked()
}

// TimeUntilUnblocked returns the remaining cooldown, 0 when not blocked.
func (s *CooldownState) TimeUntilUnblocked() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}
