package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// stubFetcher serves canned responses keyed by URL and counts requests.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]string // URL -> body; missing URLs fail
	failures  map[string]ErrorKind
	failUntil map[string]int // URL -> failures before first success
	latency   time.Duration
	calls     map[string]int

	inflight    int
	maxInflight int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		responses: make(map[string]string),
		failures:  make(map[string]ErrorKind),
		failUntil: make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	f.mu.Lock()
	f.calls[url]++
	call := f.calls[url]
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--

	if until, ok := f.failUntil[url]; ok && call <= until {
		return nil, &CrawlError{URL: url, Kind: ErrKindTimeout, Message: "stub timeout", OccurredAt: time.Now()}
	}
	if kind, ok := f.failures[url]; ok {
		return nil, &CrawlError{URL: url, Kind: kind, Message: "stub failure", OccurredAt: time.Now()}
	}
	body, ok := f.responses[url]
	if !ok {
		return nil, &CrawlError{URL: url, Kind: ErrKindClient, Message: "stub 404", OccurredAt: time.Now()}
	}
	return &FetchResult{StatusCode: 200, Body: []byte(body), FinalURL: url, Latency: time.Millisecond}, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *stubFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// stubListExtractor treats the body as a newline-separated URL list.
type stubListExtractor struct{}

func (stubListExtractor) ExtractDetailLinks(pageURL string, body []byte) ([]string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// stubExtractor builds a minimal record from the body text.
type stubExtractor struct {
	failFor map[string]bool
}

func (e *stubExtractor) ExtractDetail(pageURL string, body []byte) (*CentreRecord, error) {
	if e.failFor != nil && e.failFor[pageURL] {
		return nil, fmt.Errorf("unrecognized page layout")
	}
	return &CentreRecord{
		Name:      strings.TrimSpace(string(body)),
		SourceURL: pageURL,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

// stubValidator accepts everything unless the record name says otherwise.
type stubValidator struct{}

func (stubValidator) Validate(rec *CentreRecord) ValidationResult {
	if strings.Contains(rec.Name, "invalid") {
		return ValidationResult{IsValid: false, Errors: []string{"name is invalid"}, QualityScore: 0.2}
	}
	return ValidationResult{IsValid: true, QualityScore: 1.0}
}

// memCheckpoint is an in-memory Checkpoint that separates buffered and
// flushed state so tests can simulate crashes between the two.
type memCheckpoint struct {
	mu           sync.Mutex
	flushedURLs  map[string]bool
	flushedPages map[int]bool
	pendingURLs  []string
	pendingPages []int
	flushes      int
	flushErr     error
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{
		flushedURLs:  make(map[string]bool),
		flushedPages: make(map[int]bool),
	}
}

func (c *memCheckpoint) Load() (*CheckpointState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := &CheckpointState{
		CompletedPages: make(map[int]bool),
		CompletedURLs:  make(map[string]bool),
	}
	for url := range c.flushedURLs {
		state.CompletedURLs[url] = true
	}
	for page := range c.flushedPages {
		state.CompletedPages[page] = true
	}
	return state, nil
}

func (c *memCheckpoint) RecordURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingURLs = append(c.pendingURLs, url)
}

func (c *memCheckpoint) RecordPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingPages = append(c.pendingPages, page)
}

func (c *memCheckpoint) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushErr != nil {
		return c.flushErr
	}
	for _, url := range c.pendingURLs {
		c.flushedURLs[url] = true
	}
	for _, page := range c.pendingPages {
		c.flushedPages[page] = true
	}
	c.pendingURLs = nil
	c.pendingPages = nil
	c.flushes++
	return nil
}

func (c *memCheckpoint) Close() error { return nil }

func (c *memCheckpoint) flushedURLCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flushedURLs)
}

// memSink collects appended records in order.
type memSink struct {
	mu      sync.Mutex
	records []*CentreRecord
	results []ValidationResult
	failOn  int // 1-based append index that fails; 0 never fails
}

func (s *memSink) Append(rec *CentreRecord, vr ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 && len(s.records)+1 >= s.failOn {
		return fmt.Errorf("disk full")
	}
	s.records = append(s.records, rec)
	s.results = append(s.results, vr)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
