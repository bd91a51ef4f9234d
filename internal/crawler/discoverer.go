package crawler

import (
	"context"
	"fmt"
	"log/slog"
)

// PaginationDiscoverer walks the directory's list pages in order and
// collects candidate detail-page URLs. Discovery stops on the first list
// page with no detail links, on the configured page cap, or on a fetch
// failure that survives the retry policy.
type PaginationDiscoverer struct {
	fetcher     Fetcher
	limiter     *RateLimiter
	retry       RetryPolicy
	listExtract ListExtractor

	baseURL   string // e.g. https://www.mecsr.org
	listPath  string // e.g. /directory-shopping-centres
	resumeAt  int    // First page index to request
	maxPages  int    // 0 means unbounded
	completed *CheckpointState
}

// NewPaginationDiscoverer wires a discoverer over the shared fetch stack.
// state may be nil on a fresh run.
func NewPaginationDiscoverer(fetcher Fetcher, limiter *RateLimiter, retry RetryPolicy, listExtract ListExtractor, baseURL, listPath string, resumeAt, maxPages int, state *CheckpointState) *PaginationDiscoverer {
	if resumeAt < 1 {
		resumeAt = 1
	}
	return &PaginationDiscoverer{
		fetcher:     fetcher,
		limiter:     limiter,
		retry:       retry,
		listExtract: listExtract,
		baseURL:     baseURL,
		listPath:    listPath,
		resumeAt:    resumeAt,
		maxPages:    maxPages,
		completed:   state,
	}
}

// PageURL builds the URL for a given list page index.
func (d *PaginationDiscoverer) PageURL(page int) string {
	return fmt.Sprintf("%s%s?page=%d", d.baseURL, d.listPath, page)
}

// Discover fetches list pages until a stop condition and returns the
// deduplicated detail targets. Pages already marked complete in the
// checkpoint are skipped without a request.
func (d *PaginationDiscoverer) Discover(ctx context.Context) ([]CrawlTarget, error) {
	var targets []CrawlTarget
	seen := make(map[string]bool)

	for page := d.resumeAt; d.maxPages <= 0 || page < d.resumeAt+d.maxPages; page++ {
		if d.completed.PageDone(page) {
			slog.Debug("Skipping completed list page", "page", page)
			continue
		}
		if err := ctx.Err(); err != nil {
			return targets, err
		}

		pageURL := d.PageURL(page)
		if err := d.limiter.Acquire(ctx); err != nil {
			return targets, err
		}

		res, attempts, err := d.retry.Do(ctx, pageURL, func(ctx context.Context) (*FetchResult, error) {
			return d.fetcher.Fetch(ctx, pageURL)
		})
		if err != nil {
			// Discovery cannot silently truncate; surface the failure.
			return targets, fmt.Errorf("%w: page %d after %d attempts: %v", ErrDiscoveryFailed, page, attempts, err)
		}

		links, err := d.listExtract.ExtractDetailLinks(res.FinalURL, res.Body)
		if err != nil {
			return targets, fmt.Errorf("%w: parsing page %d: %v", ErrDiscoveryFailed, page, err)
		}

		if len(links) == 0 {
			slog.Info("List page has no detail links, stopping discovery", "page", page)
			break
		}

		added := 0
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			targets = append(targets, CrawlTarget{URL: link, PageIndex: page})
			added++
		}
		slog.Info("Discovered list page", "page", page, "links", len(links), "new", added)
	}

	return targets, nil
}
