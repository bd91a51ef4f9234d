package crawler

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket admission gate shared by every fetch in
// the run. Tokens refill at requestsPerMinute/60 per second; Acquire
// suspends the calling goroutine until a token is available without
// blocking other callers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter for the given per-minute budget.
// burst caps how many tokens may accumulate; a burst of 1 keeps the
// realized rate under the budget over any rolling window.
func NewRateLimiter(requestsPerMinute int, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	perSecond := rate.Limit(float64(requestsPerMinute) / 60.0)
	return &RateLimiter{
		limiter: rate.NewLimiter(perSecond, burst),
	}
}

// Acquire blocks until one token is available, then consumes it.
// Returns early only when ctx is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens reports the tokens currently available, for tests and stats.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
