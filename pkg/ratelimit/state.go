// Package ratelimit implements GitHub API rate limit tracking and request gating.
// It monitors the X-RateLimit-Remaining and X-RateLimit-Reset headers so that a
// purge run backs off before the account's request budget is exhausted.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "github:rate_limit:remaining"
	RedisKeyLimit          = "github:rate_limit:limit"
	RedisKeyResetTimestamp = "github:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "github:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all requests when the remaining budget falls below this value.
	ThresholdCritical = 10

	// ThresholdWarning applies throttling when the remaining budget falls below this value.
	ThresholdWarning = 100

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 500

	// DefaultLimit is the authenticated GitHub REST budget per hour.
	DefaultLimit = 5000
)

// RateLimitState represents the current GitHub rate limit window.
// When a Redis client is configured the state is shared across processes
// using the same token.
type RateLimitState struct {
	// Limit is the size of the window, from X-RateLimit-Limit.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window, from X-RateLimit-Remaining.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, from X-RateLimit-Reset (epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsExpired returns true once the reset time has passed.
func (s *RateLimitState) IsExpired() bool {
	return !s.ResetAt.IsZero() && !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}

// defaultState is assumed until the first response headers are seen.
func defaultState(limit int) *RateLimitState {
	if limit <= 0 {
		limit = DefaultLimit
	}
	now := time.Now()
	return &RateLimitState{
		Limit:      limit,
		Remaining:  limit,
		ResetAt:    now.Add(time.Hour),
		LastUpdate: now,
		IsHealthy:  true,
	}
}
