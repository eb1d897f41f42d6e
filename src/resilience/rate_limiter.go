package resilience

import (
	"sync"
	"time"

	"stock-search-service/src/helpers"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

// RateLimiter is a sliding-window admission gate. It never blocks: callers
// that are rejected decide for themselves whether to retry or fail fast.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
	mu          sync.Mutex
	now         func() time.Time
}

// -----------------------------------------------------------------------------

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// -----------------------------------------------------------------------------

// Acquire records a request timestamp if the current window has capacity.
// Returns a RateLimitError carrying usage and limit otherwise.
func (r *RateLimiter) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.timestamps) >= r.maxRequests {
		return helpers.NewRateLimitError(len(r.timestamps), r.maxRequests)
	}

	r.timestamps = append(r.timestamps, now)
	return nil
}

// -----------------------------------------------------------------------------

// CurrentUsage returns read-only window statistics.
func (r *RateLimiter) CurrentUsage() models.MLimiterUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return models.MLimiterUsage{
		Current:       len(r.timestamps),
		Limit:         r.maxRequests,
		WindowSeconds: int(r.window / time.Second),
	}
}

// -----------------------------------------------------------------------------

// Reset clears the window. Administrative/test use only.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestamps = nil
}

// -----------------------------------------------------------------------------

// prune drops timestamps older than the window. Caller must hold the lock.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept
}
