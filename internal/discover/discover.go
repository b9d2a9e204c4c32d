// Package discover converts category entry points into exhaustive
// per-category product URL lists. Per category the phases are strictly
// Probe -> FullLoad -> Extract; a failed category yields an empty URL set and
// a warning, never a run abort.
package discover

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/retry"
	"wholesale-scraper/internal/types"
)

// PageLoader is the fetch seam shared with the fetcher layer.
type PageLoader interface {
	LoadPage(ctx context.Context, url string) (string, error)
}

// Failure records a category whose link discovery yielded nothing. The run
// continues with the remaining categories.
type Failure struct {
	Category string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("discover %s: %v", f.Category, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

var totalCountRe = regexp.MustCompile(`(?i)Showing\s+\d+\s+of\s+(\d+)\s+items?`)

// Discoverer builds the CategoryIndex for a run.
type Discoverer struct {
	cfg    *types.Config
	logger types.Logger
	loader PageLoader
	retry  retry.Policy
}

// New creates a Discoverer fetching through loader.
func New(cfg *types.Config, logger types.Logger, loader PageLoader) *Discoverer {
	return &Discoverer{
		cfg:    cfg,
		logger: logger,
		loader: loader,
		retry:  retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
	}
}

// defaultCategories is the fallback entry set used when no category manifest
// can be read, so the pipeline can proceed even if discovery inputs break.
var defaultCategories = []string{"women", "men", "accessories", "supplies"}

// Categories reads the category manifest (one entry URL per line) and maps
// each to a category name inferred from its path. When the manifest is
// missing or empty it falls back to the default category set rooted at the
// portal origin.
func (d *Discoverer) Categories() map[string]string {
	categories := map[string]string{}

	f, err := os.Open(d.cfg.CategoryFile)
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			name := CategoryName(line)
			if name == "" {
				d.logger.Warnf("Skipping category URL with no recognizable name: %s", line)
				continue
			}
			categories[name] = line
		}
	}

	if len(categories) == 0 {
		d.logger.Warnf("No categories in %s, using default set", d.cfg.CategoryFile)
		for _, name := range defaultCategories {
			categories[name] = d.cfg.BaseURL + "/lululemon/" + name
		}
	}
	return categories
}

// CategoryName infers a category name from an entry URL: the last non-empty
// path segment, with the "whats-new" alias normalized.
func CategoryName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	name := segments[len(segments)-1]
	if name == "what-new" {
		name = "whats-new"
	}
	return name
}

// Discover runs the three discovery phases for every category and returns
// the per-category URL index plus the categories that failed.
func (d *Discoverer) Discover(ctx context.Context, categories map[string]string) (types.CategoryIndex, []*Failure) {
	index := types.CategoryIndex{}
	var failures []*Failure

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		links, err := d.discoverCategory(ctx, name, categories[name])
		if err != nil {
			d.logger.Warnf("Category %s discovery failed: %v", name, err)
			failures = append(failures, &Failure{Category: name, Err: err})
			index[name] = nil
			continue
		}
		d.logger.Infof("Category %s: %d product links", name, len(links))
		index[name] = links
	}
	return index, failures
}

func (d *Discoverer) discoverCategory(ctx context.Context, name, entryURL string) ([]string, error) {
	// Probe: load the first page at a small size to find the true total.
	probeURL := RewriteLimit(entryURL, d.cfg.ProbePageSize)
	var probeHTML string
	err := d.retry.Do(ctx, func(int) error {
		var loadErr error
		probeHTML, loadErr = d.loader.LoadPage(ctx, probeURL)
		return loadErr
	}, func(attempt int, err error) {
		d.logger.Warnf("Category %s probe retry %d: %v", name, attempt, err)
	})
	if err != nil {
		return nil, fmt.Errorf("probe load: %w", err)
	}

	total := ParseTotalCount(probeHTML, d.cfg.DefaultTotalCount)
	if total == d.cfg.DefaultTotalCount {
		d.logger.Warnf("Category %s: total count marker not found, assuming %d", name, total)
	} else {
		d.logger.Debugf("Category %s: %d total products", name, total)
	}

	// FullLoad: reload requesting every product at once, with headroom.
	fullURL := RewriteLimit(entryURL, total+d.cfg.CountBuffer)
	var fullHTML string
	err = d.retry.Do(ctx, func(int) error {
		var loadErr error
		fullHTML, loadErr = d.loader.LoadPage(ctx, fullURL)
		return loadErr
	}, func(attempt int, err error) {
		d.logger.Warnf("Category %s full load retry %d: %v", name, attempt, err)
	})
	if err != nil {
		return nil, fmt.Errorf("full load: %w", err)
	}

	// Extract: DOM matching first, embedded payload as fallback.
	links, err := ExtractProductLinks(fullHTML, d.cfg.BaseURL, d.cfg.ProductPathPrefix)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("no product links found")
	}
	return links, nil
}

// RewriteLimit sets the page-size query parameter on a category URL,
// replacing an existing limit or appending one.
func RewriteLimit(rawURL string, limit int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseTotalCount finds the "Showing N of TOTAL items" marker in rendered
// markup and returns TOTAL, or def when the marker is absent.
func ParseTotalCount(html string, def int) int {
	m := totalCountRe.FindStringSubmatch(html)
	if m == nil {
		return def
	}
	total, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	return total
}

// ExtractProductLinks collects all detail-page URLs from a rendered category
// page. Hrefs must match the strict detail shape: the product path prefix
// followed by exactly one identifying segment, with query and fragment
// stripped. When the DOM pass yields nothing it falls back to the embedded
// data payload; both paths normalize to absolute scheme+host+path URLs,
// deduplicated and sorted.
func ExtractProductLinks(html, baseURL, pathPrefix string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse category page: %w", err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(pathPrefix) + `[^/?#]+$`)
	seen := map[string]bool{}

	doc.Find(`a[href*='` + pathPrefix + `']`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		// Strip query string and fragment before shape-matching.
		if i := strings.IndexAny(href, "?#"); i >= 0 {
			href = href[:i]
		}
		href = strings.TrimPrefix(href, baseURL)
		if !pattern.MatchString(href) {
			return
		}
		seen[baseURL+href] = true
	})

	if len(seen) == 0 {
		for _, slug := range payloadSlugs(doc) {
			seen[baseURL+pathPrefix+slug] = true
		}
	}

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// payloadSlugs pulls product slugs out of the embedded server-state JSON when
// the DOM carries no matching anchors.
func payloadSlugs(doc *goquery.Document) []string {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return nil
	}
	var payload struct {
		Props struct {
			PageProps struct {
				Data struct {
					DataSource struct {
						Items []struct {
							Slug string `json:"slug"`
						} `json:"items"`
					} `json:"dataSource"`
				} `json:"data"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	var slugs []string
	for _, item := range payload.Props.PageProps.Data.DataSource.Items {
		if item.Slug != "" {
			slugs = append(slugs, item.Slug)
		}
	}
	return slugs
}

// WriteManifest persists one CSV per category (header row plus one URL per
// line) so the fetch stage can run in a separate invocation.
func WriteManifest(dir string, index types.CategoryIndex) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	for category, links := range index {
		if len(links) == 0 {
			continue
		}
		f, err := os.Create(filepath.Join(dir, category+".csv"))
		if err != nil {
			return fmt.Errorf("create manifest for %s: %w", category, err)
		}
		w := csv.NewWriter(f)
		_ = w.Write([]string{"Product URL"})
		for _, link := range links {
			_ = w.Write([]string{link})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return fmt.Errorf("write manifest for %s: %w", category, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ReadManifest loads every category CSV in dir back into a CategoryIndex.
func ReadManifest(dir string) (types.CategoryIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}
	index := types.CategoryIndex{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		category := strings.TrimSuffix(entry.Name(), ".csv")
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		r := csv.NewReader(f)
		rows, err := r.ReadAll()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", entry.Name(), err)
		}
		var links []string
		for i, row := range rows {
			if i == 0 || len(row) == 0 || row[0] == "" {
				continue // header
			}
			links = append(links, row[0])
		}
		index[category] = links
	}
	return index, nil
}
