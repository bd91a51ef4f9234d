// Package crawler implements the concurrent scrape pipeline for a
// paginated directory site: token-bucket rate limiting, retry with
// exponential backoff, bounded-concurrency batch processing and
// checkpointed resume.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Pipeline wires discovery, batch processing, validation, checkpointing
// and the output sink into one run.
type Pipeline struct {
	discoverer *PaginationDiscoverer
	processor  *BatchProcessor
	checkpoint Checkpoint
	sink       RecordSink
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(discoverer *PaginationDiscoverer, processor *BatchProcessor, checkpoint Checkpoint, sink RecordSink) *Pipeline {
	return &Pipeline{
		discoverer: discoverer,
		processor:  processor,
		checkpoint: checkpoint,
		sink:       sink,
	}
}

// Run executes discovery and extraction end to end and returns the run
// report. Per-target failures are aggregated into the report; only
// systemic failures (discovery, checkpoint, sink) return an error.
// A cancelled ctx drains in-flight work, flushes and returns the report
// with ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		StartTime: time.Now(),
		Failed:    make(map[ErrorKind]int),
	}
	defer func() { report.Elapsed = time.Since(report.StartTime) }()

	targets, err := p.discoverer.Discover(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return report, err
	}
	report.Discovered = len(targets)

	state, err := p.checkpoint.Load()
	if err != nil {
		return report, fmt.Errorf("loading checkpoint: %w", err)
	}
	remaining := state.ResumeFilter(targets)
	report.Skipped = len(targets) - len(remaining)
	slog.Info("Starting extraction", "discovered", report.Discovered, "skipped", report.Skipped, "remaining", len(remaining))

	// Per-page accounting so fully processed list pages resume cleanly.
	pending := make(map[int]int)
	tainted := make(map[int]bool)
	for _, t := range targets {
		pending[t.PageIndex] = 0
	}
	for _, t := range remaining {
		pending[t.PageIndex]++
	}

	// Records reach the sink before they count as done or get
	// checkpointed; a write failure aborts the run with the target
	// still pending, so the next run reprocesses it.
	var sinkErr error
	procErr := p.processor.Process(ctx, remaining, func(o Outcome) error {
		switch {
		case o.Err != nil:
			report.Failed[o.Err.Kind]++
			report.FailedURLs = append(report.FailedURLs, o.Target.URL)
			tainted[o.Target.PageIndex] = true
			slog.Warn("Target failed", "url", o.Target.URL, "kind", o.Err.Kind, "attempts", o.Attempts)
		case o.Validation.IsValid:
			if err := p.sink.Append(o.Record, o.Validation); err != nil {
				sinkErr = err
				return err
			}
			report.Succeeded++
			pending[o.Target.PageIndex]--
		default:
			// Rejected records are reported with their validation
			// result, never silently dropped.
			slog.Info("Record rejected by validation", "url", o.Target.URL, "errors", o.Validation.Errors, "score", o.Validation.QualityScore)
			if err := p.sink.Append(o.Record, o.Validation); err != nil {
				sinkErr = err
				return err
			}
			report.Rejected++
			pending[o.Target.PageIndex]--
		}
		return nil
	})
	if sinkErr != nil {
		return report, fmt.Errorf("writing output: %w", sinkErr)
	}
	if procErr != nil && !errors.Is(procErr, context.Canceled) {
		return report, procErr
	}

	// A page resumes as complete only when every target discovered on it
	// reached a terminal, checkpointed state.
	if procErr == nil {
		for page, left := range pending {
			if left == 0 && !tainted[page] {
				p.checkpoint.RecordPage(page)
			}
		}
	}
	if err := p.checkpoint.Flush(); err != nil {
		return report, fmt.Errorf("flushing checkpoint: %w", err)
	}

	report.Elapsed = time.Since(report.StartTime)
	p.logSummary(report)
	return report, procErr
}

func (p *Pipeline) logSummary(r *RunReport) {
	failed := 0
	for _, n := range r.Failed {
		failed += n
	}
	slog.Info("Run complete",
		"discovered", r.Discovered,
		"skipped", r.Skipped,
		"succeeded", r.Succeeded,
		"rejected", r.Rejected,
		"failed", failed,
		"elapsed", r.Elapsed.Round(time.Second),
		"per_minute", fmt.Sprintf("%.1f", r.Throughput()),
	)
	for kind, n := range r.Failed {
		slog.Info("Failures by kind", "kind", kind, "count", n)
	}
}
