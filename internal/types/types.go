package types

import "time"

// WorkItem is one unit of fetch work: one product URL within one category.
// Attempt starts at 0 and increments on retry.
type WorkItem struct {
	URL      string
	Category string
	Attempt  int
}

// FetchStatus is the terminal outcome of a work item.
type FetchStatus int

const (
	FetchSuccess FetchStatus = iota
	FetchFailed
	FetchSkipped
)

// FetchResult carries the rendered markup for one page, or the reason it
// could not be fetched. It is consumed immediately by the extractor and not
// persisted beyond the artifact store.
type FetchResult struct {
	URL      string
	Category string
	Status   FetchStatus
	HTML     string
	Err      error
}

// SizeStock is the summed stock for one size of one color. Quantity is the
// sum across all lots for that size.
type SizeStock struct {
	Size     string `json:"size"`
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity"`
	InStock  bool   `json:"in_stock"`
}

// ColorVariant is a selectable color with its swatch image.
type ColorVariant struct {
	Name      string `json:"name"`
	SwatchURL string `json:"swatch_url,omitempty"`
}

// ProductRecord is the normalized product extracted from one page. Immutable
// once built; the report layer expands it into rows.
type ProductRecord struct {
	Name           string                 `json:"name"`
	SKU            string                 `json:"sku"`
	SKUName        string                 `json:"sku_name,omitempty"`
	RetailPrice    string                 `json:"retail_price"`
	WholesalePrice string                 `json:"wholesale_price"`
	Description    string                 `json:"description"`
	Slug           string                 `json:"slug"`
	ProductType    string                 `json:"product_type"`
	ImageURL       string                 `json:"image_url"`
	Colors         []ColorVariant         `json:"colors,omitempty"`
	Inventory      map[string][]SizeStock `json:"inventory,omitempty"`
}

// TotalQuantity sums available quantity across every color and size.
func (p *ProductRecord) TotalQuantity() int {
	total := 0
	for _, stocks := range p.Inventory {
		for _, s := range stocks {
			total += s.Quantity
		}
	}
	return total
}

// CategoryIndex maps a category name to its sorted, deduplicated product
// URLs. Built once per run by the discoverer and read-only afterward.
type CategoryIndex map[string][]string

// Config holds all tunables for a scrape run.
type Config struct {
	// BaseURL is the portal origin, e.g. https://wholesale.example.com.
	BaseURL string
	// ProductPathPrefix is the detail-page path prefix, e.g. "/p/".
	ProductPathPrefix string

	Concurrency     int
	BrowserContexts int
	NavTimeout      time.Duration
	ReadyTimeout    time.Duration
	SettleDelay     time.Duration
	MinContentBytes int

	RetryAttempts  int
	RetryBaseDelay time.Duration

	// ProbePageSize is the small limit used for the first category load.
	// DefaultTotalCount is used when the "Showing N of TOTAL" marker is not
	// found; it must be large enough not to truncate results. CountBuffer is
	// added to the detected total when reloading.
	ProbePageSize     int
	DefaultTotalCount int
	CountBuffer       int

	ProgressEvery  int
	BlockResources bool
	FullRefresh    bool

	Headless  bool
	UserAgent string

	CookieFile      string
	CategoryFile    string
	ManifestDir     string
	ArtifactDir     string
	OutputDir       string
	UseImageFormula bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://wholesale.lululemon.com",
		ProductPathPrefix: "/p/",
		Concurrency:       10,
		BrowserContexts:   1,
		NavTimeout:        30 * time.Second,
		ReadyTimeout:      10 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		MinContentBytes:   50 * 1024,
		RetryAttempts:     2,
		RetryBaseDelay:    2 * time.Second,
		ProbePageSize:     12,
		DefaultTotalCount: 500,
		CountBuffer:       10,
		ProgressEvery:     20,
		BlockResources:    true,
		FullRefresh:       false,
		Headless:          true,
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		CookieFile:        "data/cookie/cookie.json",
		CategoryFile:      "data/links.csv",
		ManifestDir:       "data/categories",
		ArtifactDir:       "data/html",
		OutputDir:         "data/results",
		UseImageFormula:   true,
	}
}

// Logger defines the logging interface used throughout the pipeline.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
