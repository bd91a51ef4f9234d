package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mallcrawl/internal/metrics"
)

// BatchProcessor drives detail targets through the rate limiter, retry
// policy, fetcher, extractor and validator with bounded concurrency.
// Outcomes are emitted in completion order; after every batch the
// checkpoint is flushed before the next batch starts, so an interruption
// loses at most one in-flight batch.
type BatchProcessor struct {
	fetcher    Fetcher
	limiter    *RateLimiter
	retry      RetryPolicy
	extractor  Extractor
	validator  Validator
	checkpoint Checkpoint

	maxConcurrent int
	batchSize     int
}

// NewBatchProcessor creates a processor. maxConcurrent bounds in-flight
// work independently of the rate limiter's budget; both apply at once.
func NewBatchProcessor(fetcher Fetcher, limiter *RateLimiter, retry RetryPolicy, extractor Extractor, validator Validator, checkpoint Checkpoint, maxConcurrent, batchSize int) *BatchProcessor {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &BatchProcessor{
		fetcher:       fetcher,
		limiter:       limiter,
		retry:         retry,
		extractor:     extractor,
		validator:     validator,
		checkpoint:    checkpoint,
		maxConcurrent: maxConcurrent,
		batchSize:     batchSize,
	}
}

// Process works through targets batch by batch, calling emit once per
// target as results complete. One target's failure never aborts the
// others, but an emit error does: processing stops before the next
// target is scheduled so a downstream write failure cannot pile up
// unpersisted work. A target is checkpointed complete only after emit
// has accepted its outcome. A cancelled ctx stops scheduling new
// batches, drains in-flight work and flushes the checkpoint before
// returning ctx.Err().
func (p *BatchProcessor) Process(ctx context.Context, targets []CrawlTarget, emit func(Outcome) error) error {
	for start := 0; start < len(targets); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			if flushErr := p.checkpoint.Flush(); flushErr != nil {
				return fmt.Errorf("flushing checkpoint on cancel: %w", flushErr)
			}
			return err
		}

		end := start + p.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		if err := p.runBatch(ctx, batch, emit); err != nil {
			// Targets recorded before the failure were accepted
			// downstream; make them durable, then abort.
			if flushErr := p.checkpoint.Flush(); flushErr != nil {
				return fmt.Errorf("flushing checkpoint: %w", flushErr)
			}
			return err
		}

		// Durable progress before admitting the next batch.
		if err := p.checkpoint.Flush(); err != nil {
			return fmt.Errorf("flushing checkpoint: %w", err)
		}
		slog.Debug("Batch complete", "from", start, "to", end, "total", len(targets))
	}
	return nil
}

// runBatch processes one batch with a semaphore admission gate, emitting
// outcomes as workers finish. On an emit error the remaining in-flight
// work is drained without being emitted or checkpointed.
func (p *BatchProcessor) runBatch(ctx context.Context, batch []CrawlTarget, emit func(Outcome) error) error {
	sem := make(chan struct{}, p.maxConcurrent)
	results := make(chan Outcome, len(batch))

	var wg sync.WaitGroup
	for _, target := range batch {
		wg.Add(1)
		go func(t CrawlTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- p.processTarget(ctx, t)
		}(target)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var emitErr error
	for outcome := range results {
		if emitErr != nil {
			continue
		}
		if err := emit(outcome); err != nil {
			emitErr = err
			continue
		}
		if outcome.Err == nil {
			p.checkpoint.RecordURL(outcome.Target.URL)
		}
	}
	return emitErr
}

// processTarget resolves a single target: acquire a token, fetch with
// retries, extract, validate. Every path returns exactly one Outcome.
func (p *BatchProcessor) processTarget(ctx context.Context, target CrawlTarget) Outcome {
	if err := p.limiter.Acquire(ctx); err != nil {
		return Outcome{
			Target: target,
			Err: &CrawlError{
				URL:        target.URL,
				Kind:       ErrKindCancelled,
				Message:    err.Error(),
				OccurredAt: time.Now().UTC(),
			},
		}
	}

	metrics.InflightFetches.Inc()
	res, attempts, err := p.retry.Do(ctx, target.URL, func(ctx context.Context) (*FetchResult, error) {
		return p.fetcher.Fetch(ctx, target.URL)
	})
	metrics.InflightFetches.Dec()

	target.RetryCount = attempts - 1
	if err != nil {
		return Outcome{Target: target, Attempts: attempts, Err: AsCrawlError(target.URL, err)}
	}

	record, err := p.extractor.ExtractDetail(res.FinalURL, res.Body)
	if err != nil {
		// Fetch worked but the content did not match expectations;
		// likely site-structure drift, distinct from network failure.
		return Outcome{
			Target:   target,
			Attempts: attempts,
			Err: &CrawlError{
				URL:        target.URL,
				Kind:       ErrKindExtraction,
				Message:    err.Error(),
				Attempts:   attempts,
				OccurredAt: time.Now().UTC(),
			},
		}
	}

	vr := p.validator.Validate(record)
	if vr.IsValid {
		metrics.RecordsValidatedTotal.WithLabelValues("accepted").Inc()
	} else {
		metrics.RecordsValidatedTotal.WithLabelValues("rejected").Inc()
	}

	return Outcome{Target: target, Record: record, Validation: vr, Attempts: attempts}
}
