package crawler

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies per-target failures. The kind decides whether a
// failure is retried and how it is counted in the run report.
type ErrorKind string

// Per-target error kinds.
const (
	ErrKindTimeout    ErrorKind = "timeout"      // Request exceeded the per-request timeout
	ErrKindNetwork    ErrorKind = "network"      // Connection reset, DNS failure, etc.
	ErrKindServer     ErrorKind = "server_error" // 5xx response
	ErrKindClient     ErrorKind = "client_error" // 4xx response, never retried
	ErrKindBadURL     ErrorKind = "bad_url"      // Malformed target URL, never retried
	ErrKindEmptyBody  ErrorKind = "empty_body"   // 2xx with no content
	ErrKindExtraction ErrorKind = "extraction"   // Fetch succeeded but content did not match expectations
	ErrKindCancelled  ErrorKind = "cancelled"    // Run-level cancellation
)

// Sentinel errors for run-level failures.
var (
	// ErrRetryExhausted is returned after all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	// ErrDiscoveryFailed is returned when list-page discovery cannot continue.
	ErrDiscoveryFailed = errors.New("pagination discovery failed")
)

// CrawlError is a classified per-target failure.
type CrawlError struct {
	URL        string
	Kind       ErrorKind
	Message    string
	Attempts   int
	OccurredAt time.Time
}

func (e *CrawlError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s: %s (%s, %d attempts)", e.URL, e.Message, e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%s: %s (%s)", e.URL, e.Message, e.Kind)
}

// Retryable reports whether a failure of this kind may be retried.
// Client errors and malformed URLs waste retry budget; everything
// transient is worth another attempt.
func (e *CrawlError) Retryable() bool {
	switch e.Kind {
	case ErrKindTimeout, ErrKindNetwork, ErrKindServer, ErrKindEmptyBody:
		return true
	default:
		return false
	}
}

// AsCrawlError extracts a *CrawlError from err, wrapping unclassified
// errors as network failures.
func AsCrawlError(url string, err error) *CrawlError {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce
	}
	return &CrawlError{
		URL:        url,
		Kind:       ErrKindNetwork,
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	}
}
