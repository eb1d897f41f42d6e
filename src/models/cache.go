package models

import "time"

// -----------------------------------------------------------------------------

// MCacheEntry wraps a cached value with its absolute expiry time. All cache
// tiers use the same expiry contract.
type MCacheEntry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// -----------------------------------------------------------------------------

// Expired reports whether the entry is past its expiry at the given instant.
func (e MCacheEntry[T]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// -----------------------------------------------------------------------------

// MCacheStats is the observability snapshot every cache tier exposes.
type MCacheStats struct {
	Size      int     `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// -----------------------------------------------------------------------------

// MBreakerStatus mirrors the circuit breaker state for metrics scraping.
type MBreakerStatus struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
}

// -----------------------------------------------------------------------------

// MLimiterUsage mirrors the rate limiter window for metrics scraping.
type MLimiterUsage struct {
	Current       int `json:"current"`
	Limit         int `json:"limit"`
	WindowSeconds int `json:"window_seconds"`
}

// -----------------------------------------------------------------------------

// MStatusSnapshot is the payload broadcast on the stats stream and returned
// by the stats endpoint.
type MStatusSnapshot struct {
	Timestamp int64                  `json:"timestamp"`
	Tiers     map[string]MCacheStats `json:"tiers"`
	Breaker   MBreakerStatus         `json:"circuit_breaker"`
	Limiter   MLimiterUsage          `json:"rate_limiter"`
}
