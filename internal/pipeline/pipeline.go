package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wholesale-scraper/internal/browser"
	"wholesale-scraper/internal/discover"
	"wholesale-scraper/internal/extract"
	"wholesale-scraper/internal/fetcher"
	"wholesale-scraper/internal/report"
	"wholesale-scraper/internal/session"
	"wholesale-scraper/internal/types"
)

// Stage selects which part of the run executes. Later stages consume the
// on-disk output of earlier ones, so a fetch-only run needs manifests from a
// prior discover run and an extract-only run needs saved page artifacts.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageAll      Stage = "all"
)

func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageDiscover, StageFetch, StageExtract, StageAll:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q (want discover, fetch, extract or all)", s)
}

func (s Stage) discovers() bool { return s == StageDiscover || s == StageAll }
func (s Stage) fetches() bool   { return s == StageFetch || s == StageAll }
func (s Stage) extracts() bool  { return s == StageExtract || s == StageAll }

// CategorySummary reports per-category counts for the end-of-run log.
type CategorySummary struct {
	Name      string
	URLs      int
	Succeeded int
	Failed    int
	Skipped   int
	Extracted int
}

// Summary is the overall result of a Run.
type Summary struct {
	Categories   []CategorySummary
	ReportPath   string
	PeakInFlight int64
	Elapsed      time.Duration
}

func (s *Summary) Totals() (urls, succeeded, failed, extracted int) {
	for _, c := range s.Categories {
		urls += c.URLs
		succeeded += c.Succeeded + c.Skipped
		failed += c.Failed
		extracted += c.Extracted
	}
	return
}

// Pipeline wires the discovery, fetch, extraction and reporting components
// around shared configuration. All per-run state lives in Run's locals.
type Pipeline struct {
	cfg     *types.Config
	logger  types.Logger
	store   *fetcher.ArtifactStore
	metrics *fetcher.Metrics
}

func New(cfg *types.Config, logger types.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		store:   fetcher.NewArtifactStore(cfg.ArtifactDir),
		metrics: fetcher.NewMetrics(),
	}
}

// AuditIncomplete removes saved pages that fail the completeness check so
// the next fetch stage reloads them.
func (p *Pipeline) AuditIncomplete() error {
	invalidated, err := fetcher.AuditArtifacts(p.store, p.logger)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range invalidated {
		total += n
	}
	p.logger.Infof("Audit removed %d incomplete pages across %d categories", total, len(invalidated))
	return nil
}

// Run executes the selected stages and returns the run summary. Browser
// startup failure is fatal; per-page and per-category failures are recorded
// and the run continues.
func (p *Pipeline) Run(ctx context.Context, stage Stage) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	var loaders []discover.PageLoader
	if stage.discovers() || stage.fetches() {
		cookies, err := session.Load(p.cfg.CookieFile)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		p.logger.Infof("Loaded %d session cookies from %s", len(cookies), p.cfg.CookieFile)

		b, err := browser.Launch(ctx, p.cfg, p.logger)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		defer b.Close()

		for i := 0; i < p.cfg.BrowserContexts; i++ {
			tab, err := b.NewContext(cookies)
			if err != nil {
				return nil, fmt.Errorf("browser context %d: %w", i, err)
			}
			defer tab.Close()
			loaders = append(loaders, tab)
		}
	}

	index, err := p.buildIndex(ctx, stage, loaders)
	if err != nil {
		return nil, err
	}

	writer := report.NewWriter(p.cfg, p.logger)

	switch {
	case stage.fetches():
		if err := p.fetchAndExtract(ctx, stage, index, loaders, writer, summary); err != nil {
			return nil, err
		}
	case stage.extracts():
		if err := p.extractArtifacts(ctx, writer, summary); err != nil {
			return nil, err
		}
	default:
		for _, name := range sortedKeys(index) {
			summary.Categories = append(summary.Categories, CategorySummary{
				Name: name,
				URLs: len(index[name]),
			})
		}
	}

	if stage.extracts() && writer.Count() > 0 {
		path, err := writer.Save()
		if err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		summary.ReportPath = path
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// buildIndex produces the category URL index, either by live discovery or
// from manifests written by a previous run.
func (p *Pipeline) buildIndex(ctx context.Context, stage Stage, loaders []discover.PageLoader) (types.CategoryIndex, error) {
	if stage == StageExtract {
		return nil, nil
	}

	if stage.discovers() {
		d := discover.New(p.cfg, p.logger, loaders[0])
		index, failures := d.Discover(ctx, d.Categories())
		for _, f := range failures {
			p.logger.Warnf("Category %s not discovered: %v", f.Category, f.Err)
		}
		if len(index) == 0 {
			return nil, fmt.Errorf("discovery produced no product links")
		}
		if err := discover.WriteManifest(p.cfg.ManifestDir, index); err != nil {
			return nil, fmt.Errorf("write manifests: %w", err)
		}
		return index, nil
	}

	index, err := discover.ReadManifest(p.cfg.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("read manifests (run the discover stage first): %w", err)
	}
	return index, nil
}

func (p *Pipeline) fetchAndExtract(ctx context.Context, stage Stage, index types.CategoryIndex, loaders []discover.PageLoader, writer *report.Writer, summary *Summary) error {
	f := fetcher.New(p.cfg, p.logger, p.store, p.metrics, loaders...)

	for _, name := range sortedKeys(index) {
		if ctx.Err() != nil {
			p.logger.Warnf("Run cancelled, %s and later categories not fetched", name)
			return ctx.Err()
		}
		urls := index[name]
		p.logger.Infof("Fetching %s: %d product pages", name, len(urls))

		cs := CategorySummary{Name: name, URLs: len(urls)}
		var emitMu sync.Mutex
		outcome := f.FetchCategory(ctx, name, urls,
			func(res types.FetchResult) {
				if !stage.extracts() || res.Status == types.FetchFailed {
					return
				}
				rec, err := extract.Product(res.HTML, res.URL)
				if err != nil {
					p.logger.Warnf("No product data in %s: %v", res.URL, err)
					return
				}
				emitMu.Lock()
				writer.Add(name, rec)
				cs.Extracted++
				emitMu.Unlock()
			},
			func(prog fetcher.Progress) {
				p.logger.Infof("%s: %d/%d pages done (%d failed)",
					prog.Category, prog.Done, prog.Total, prog.Failed)
			})

		cs.Succeeded = outcome.Succeeded
		cs.Failed = outcome.Failed
		cs.Skipped = outcome.Skipped
		for _, u := range outcome.FailedURLs {
			p.logger.Warnf("Page failed after retries: %s", u)
		}
		summary.Categories = append(summary.Categories, cs)
	}

	summary.PeakInFlight = f.PeakInFlight()
	return nil
}

// extractArtifacts rebuilds product records from pages saved by an earlier
// fetch stage, without touching the network.
func (p *Pipeline) extractArtifacts(ctx context.Context, writer *report.Writer, summary *Summary) error {
	categories, err := p.store.Categories()
	if err != nil {
		return fmt.Errorf("list saved pages: %w", err)
	}
	if len(categories) == 0 {
		return fmt.Errorf("no saved pages under %s (run the fetch stage first)", p.cfg.ArtifactDir)
	}
	sort.Strings(categories)

	for _, name := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		pages, err := p.store.Artifacts(name)
		if err != nil {
			return fmt.Errorf("list saved pages for %s: %w", name, err)
		}

		cs := CategorySummary{Name: name, URLs: len(pages)}
		for _, page := range pages {
			html, err := p.store.Load(name, page)
			if err != nil {
				p.logger.Warnf("Unreadable saved page %s/%s: %v", name, page, err)
				cs.Failed++
				continue
			}
			rec, err := extract.Product(html, p.cfg.BaseURL+p.cfg.ProductPathPrefix+page)
			if err != nil {
				p.logger.Warnf("No product data in %s/%s: %v", name, page, err)
				cs.Failed++
				continue
			}
			writer.Add(name, rec)
			cs.Extracted++
			cs.Succeeded++
		}
		summary.Categories = append(summary.Categories, cs)
	}
	return nil
}

func sortedKeys(index types.CategoryIndex) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
