package crawler

import "context"

// Fetcher performs a single retrieval attempt for a URL. Retry and rate
// limiting live outside the fetcher so it stays a one-shot primitive.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Extractor turns a fetched detail page into a structured record.
// A nil record with an error signals site-structure drift.
type Extractor interface {
	ExtractDetail(pageURL string, body []byte) (*CentreRecord, error)
}

// ListExtractor pulls candidate detail-page URLs out of a list page.
type ListExtractor interface {
	ExtractDetailLinks(pageURL string, body []byte) ([]string, error)
}

// Validator applies schema and business-rule checks to a record.
type Validator interface {
	Validate(rec *CentreRecord) ValidationResult
}

// Checkpoint persists completed work so an interrupted run can resume.
// RecordURL and RecordPage buffer in memory; Flush makes them durable.
type Checkpoint interface {
	Load() (*CheckpointState, error)
	RecordURL(url string)
	RecordPage(pageIndex int)
	Flush() error
	Close() error
}

// CheckpointState is the loaded resume state. Sets only grow within a run.
type CheckpointState struct {
	CompletedPages map[int]bool
	CompletedURLs  map[string]bool
}

// Done reports whether the URL has already been processed.
func (s *CheckpointState) Done(url string) bool {
	return s != nil && s.CompletedURLs[url]
}

// PageDone reports whether a list page has been fully processed.
func (s *CheckpointState) PageDone(pageIndex int) bool {
	return s != nil && s.CompletedPages[pageIndex]
}

// ResumeFilter returns the targets not yet recorded as complete.
func (s *CheckpointState) ResumeFilter(targets []CrawlTarget) []CrawlTarget {
	if s == nil || len(s.CompletedURLs) == 0 {
		return targets
	}
	remaining := make([]CrawlTarget, 0, len(targets))
	for _, t := range targets {
		if !s.CompletedURLs[t.URL] {
			remaining = append(remaining, t)
		}
	}
	return remaining
}

// RecordSink consumes accepted and rejected records in completion order.
// Sinks must support incremental appends; long runs never buffer the
// whole result set.
type RecordSink interface {
	Append(rec *CentreRecord, vr ValidationResult) error
	Close() error
}
