package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mallcrawl/internal/metrics"
)

// RetryPolicy wraps a fetch operation with bounded exponential backoff.
// Delay before retry i (0-indexed) is min(BaseDelay*2^i, MaxDelay).
// Fatal error kinds short-circuit without consuming the retry budget.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy mirrors the production scrape settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// Do runs op up to MaxRetries+1 times. It returns the first success, the
// total attempt count, and the last classified error once retries are
// exhausted or a fatal error occurs. Backoff sleeps respect ctx.
func (p RetryPolicy) Do(ctx context.Context, url string, op func(ctx context.Context) (*FetchResult, error)) (*FetchResult, int, error) {
	var lastErr *CrawlError

	attempts := 0
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		attempts++
		res, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("Fetch succeeded after retry", "url", url, "attempts", attempts)
			}
			return res, attempts, nil
		}

		lastErr = AsCrawlError(url, err)
		lastErr.Attempts = attempts

		if !lastErr.Retryable() {
			return nil, attempts, lastErr
		}
		if attempt >= p.MaxRetries {
			break
		}

		delay := p.backoff(attempt)
		metrics.RetriesTotal.WithLabelValues(string(lastErr.Kind)).Inc()
		slog.Debug("Retrying after backoff", "url", url, "attempt", attempts, "kind", lastErr.Kind, "delay", delay)

		select {
		case <-ctx.Done():
			return nil, attempts, &CrawlError{
				URL:        url,
				Kind:       ErrKindCancelled,
				Message:    ctx.Err().Error(),
				Attempts:   attempts,
				OccurredAt: time.Now().UTC(),
			}
		case <-time.After(delay):
		}
	}

	metrics.RetryExhaustedTotal.WithLabelValues(string(lastErr.Kind)).Inc()
	slog.Warn("Retry attempts exhausted", "url", url, "attempts", attempts, "kind", lastErr.Kind)
	lastErr.Message = fmt.Sprintf("%s: %s", ErrRetryExhausted, lastErr.Message)
	return nil, attempts, lastErr
}

// backoff computes the delay before retry attempt (0-indexed).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}
