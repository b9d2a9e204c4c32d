// Package fetcher is the scheduling core: it fetches the rendered content of
// many page URLs under bounded concurrency, tolerating per-page failure
// without aborting the batch.
package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"wholesale-scraper/internal/discover"
	"wholesale-scraper/internal/retry"
	"wholesale-scraper/internal/types"
)

// NavigationError is a per-page fetch failure: navigation timeout or content
// too small to plausibly be a product page. It is retried once, then recorded
// as a permanent per-item failure.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Outcome summarizes one category's fetch batch. Succeeded+Failed+Skipped
// always equals the number of submitted work items.
type Outcome struct {
	Succeeded  int
	Failed     int
	Skipped    int
	FailedURLs []string
}

// Total is the number of work items the outcome accounts for.
func (o Outcome) Total() int { return o.Succeeded + o.Failed + o.Skipped }

// Progress is the coarse progress signal emitted every fixed batch of
// completions.
type Progress struct {
	Category string
	Done     int
	Total    int
	Failed   int
}

// Fetcher drives page loads through one or more browsing contexts under a
// weighted-semaphore permit pool. The permit pool is the only shared mutable
// coordination primitive in the fetch loop.
type Fetcher struct {
	cfg     *types.Config
	logger  types.Logger
	loaders []discover.PageLoader
	store   *ArtifactStore
	metrics *Metrics
	sem     *semaphore.Weighted
	policy  retry.Policy

	inFlight     atomic.Int64
	peakInFlight atomic.Int64

	next atomic.Uint64 // round-robin loader cursor
}

// New builds a Fetcher. At least one page loader is required; work items are
// distributed round-robin when more than one is given.
func New(cfg *types.Config, logger types.Logger, store *ArtifactStore, metrics *Metrics, loaders ...discover.PageLoader) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		logger:  logger,
		loaders: loaders,
		store:   store,
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		policy:  retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
	}
}

// PeakInFlight reports the highest number of simultaneously in-flight
// fetches observed; it never exceeds the configured concurrency limit.
func (f *Fetcher) PeakInFlight() int64 { return f.peakInFlight.Load() }

// FetchCategory fetches every URL of one category, fanning out to bounded
// concurrency. Each result is passed to emit as it completes (emit is called
// from worker goroutines and must be safe for concurrent use, or nil).
// Cancellation is honored between work items: in-flight loads finish their
// current attempt but no new items start.
func (f *Fetcher) FetchCategory(ctx context.Context, category string, urls []string, emit func(types.FetchResult), progress func(Progress)) Outcome {
	var (
		mu      sync.Mutex
		outcome Outcome
		wg      sync.WaitGroup
		done    atomic.Int64
	)

	record := func(res types.FetchResult) {
		mu.Lock()
		switch res.Status {
		case types.FetchSuccess:
			outcome.Succeeded++
		case types.FetchSkipped:
			outcome.Skipped++
		default:
			outcome.Failed++
			outcome.FailedURLs = append(outcome.FailedURLs, res.URL)
		}
		failed := outcome.Failed
		mu.Unlock()

		if emit != nil {
			emit(res)
		}
		n := int(done.Add(1))
		if progress != nil && f.cfg.ProgressEvery > 0 && n%f.cfg.ProgressEvery == 0 {
			progress(Progress{Category: category, Done: n, Total: len(urls), Failed: failed})
		}
	}

	for i, url := range urls {
		if ctx.Err() != nil {
			// Run cancelled: account for the unstarted remainder as failed so
			// no item is silently lost.
			for _, rest := range urls[i:] {
				record(types.FetchResult{URL: rest, Category: category, Status: types.FetchFailed, Err: ctx.Err()})
			}
			break
		}

		// Idempotence: a previously produced artifact satisfies the item
		// without a network fetch.
		if !f.cfg.FullRefresh && f.store != nil && f.store.Exists(category, url) {
			html, err := f.store.Load(category, url)
			if err != nil {
				f.logger.Warnf("[%s] Unreadable artifact for %s: %v", category, ProductID(url), err)
			}
			f.metrics.IncPage("skipped")
			record(types.FetchResult{URL: url, Category: category, Status: types.FetchSkipped, HTML: html})
			continue
		}

		if err := f.sem.Acquire(ctx, 1); err != nil {
			record(types.FetchResult{URL: url, Category: category, Status: types.FetchFailed, Err: err})
			continue
		}

		wg.Add(1)
		go func(item types.WorkItem) {
			defer wg.Done()
			defer f.sem.Release(1)
			record(f.fetchOne(ctx, item))
		}(types.WorkItem{URL: url, Category: category})
	}

	wg.Wait()
	return outcome
}

// fetchOne runs one work item to a terminal outcome, retrying once with a
// jittered delay on failure.
func (f *Fetcher) fetchOne(ctx context.Context, item types.WorkItem) types.FetchResult {
	f.trackStart()
	defer f.trackFinish()

	loader := f.loaders[f.next.Add(1)%uint64(len(f.loaders))]
	pid := ProductID(item.URL)

	var html string
	err := f.policy.Do(ctx, func(attempt int) error {
		item.Attempt = attempt
		page, loadErr := loader.LoadPage(ctx, item.URL)
		if loadErr != nil {
			return &NavigationError{URL: item.URL, Err: loadErr}
		}
		if len(page) < f.cfg.MinContentBytes {
			return &NavigationError{URL: item.URL, Err: fmt.Errorf("content implausibly small (%d bytes)", len(page))}
		}
		html = page
		return nil
	}, func(attempt int, err error) {
		f.metrics.IncRetries()
		f.logger.Warnf("[%s] Retry %d for %s: %v", item.Category, attempt, pid, err)
	})
	if err != nil {
		f.metrics.IncPage("failed")
		f.logger.Errorf("[%s] Failed: %s: %v", item.Category, pid, err)
		return types.FetchResult{URL: item.URL, Category: item.Category, Status: types.FetchFailed, Err: err}
	}

	if f.store != nil {
		if err := f.store.Save(item.Category, item.URL, html); err != nil {
			f.logger.Warnf("[%s] Could not persist artifact for %s: %v", item.Category, pid, err)
		}
	}

	f.metrics.IncPage("success")
	f.logger.Debugf("[%s] Fetched %s (%d bytes)", item.Category, pid, len(html))
	return types.FetchResult{URL: item.URL, Category: item.Category, Status: types.FetchSuccess, HTML: html}
}

func (f *Fetcher) trackStart() {
	f.metrics.PageStarted()
	cur := f.inFlight.Add(1)
	for {
		peak := f.peakInFlight.Load()
		if cur <= peak || f.peakInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
}

func (f *Fetcher) trackFinish() {
	f.inFlight.Add(-1)
	f.metrics.PageFinished()
}
