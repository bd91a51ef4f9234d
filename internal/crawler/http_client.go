package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"mallcrawl/internal/metrics"
)

// HTTPClient is the single-attempt Fetcher implementation. It performs
// one GET per call and classifies the outcome; retry and rate limiting
// are composed around it by the batch processor.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates a fetcher with the given User-Agent and
// per-request timeout.
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch performs one GET. Success requires a 2xx status and a non-empty
// body; everything else comes back as a classified *CrawlError.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil || !strings.Contains(rawURL, "://") {
		return nil, h.failure(rawURL, ErrKindBadURL, fmt.Sprintf("malformed URL %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, h.failure(rawURL, ErrKindBadURL, err.Error())
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		kind := ErrKindNetwork
		if isTimeout(err) {
			kind = ErrKindTimeout
		} else if ctx.Err() != nil {
			kind = ErrKindCancelled
		}
		metrics.FetchesTotal.WithLabelValues(string(kind)).Inc()
		return nil, h.failure(rawURL, kind, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		kind := ErrKindNetwork
		if isTimeout(err) {
			kind = ErrKindTimeout
		}
		metrics.FetchesTotal.WithLabelValues(string(kind)).Inc()
		return nil, h.failure(rawURL, kind, fmt.Sprintf("reading body: %v", err))
	}

	switch {
	case resp.StatusCode >= 500:
		metrics.FetchesTotal.WithLabelValues(string(ErrKindServer)).Inc()
		return nil, h.failure(rawURL, ErrKindServer, fmt.Sprintf("server returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		metrics.FetchesTotal.WithLabelValues(string(ErrKindClient)).Inc()
		return nil, h.failure(rawURL, ErrKindClient, fmt.Sprintf("server returned %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.FetchesTotal.WithLabelValues(string(ErrKindNetwork)).Inc()
		return nil, h.failure(rawURL, ErrKindNetwork, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	case len(body) == 0:
		metrics.FetchesTotal.WithLabelValues(string(ErrKindEmptyBody)).Inc()
		return nil, h.failure(rawURL, ErrKindEmptyBody, "empty response body")
	}

	metrics.FetchesTotal.WithLabelValues("success").Inc()
	metrics.FetchDurationSeconds.Observe(latency.Seconds())

	return &FetchResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Latency:    latency,
	}, nil
}

// Close releases idle connections.
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}

func (h *HTTPClient) failure(url string, kind ErrorKind, msg string) *CrawlError {
	return &CrawlError{
		URL:        url,
		Kind:       kind,
		Message:    msg,
		OccurredAt: time.Now().UTC(),
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
