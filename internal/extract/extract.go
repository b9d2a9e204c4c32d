// Package extract turns the raw rendered markup of one product page into a
// normalized ProductRecord. Two strategies are tried in order of reliability:
// the embedded server-state payload, then a cascade of DOM heuristics.
// Inventory always comes from the rendered DOM, which is the only place the
// portal exposes per-lot stock.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/types"
)

// Miss indicates that neither strategy produced usable data for a page. It
// counts as a per-item failure and never affects sibling items.
type Miss struct {
	URL string
}

func (m *Miss) Error() string {
	return fmt.Sprintf("extract %s: no usable product data", m.URL)
}

// Product parses one page. A record is returned whenever either a product
// name or inventory data is found; partial records (e.g. a name with empty
// inventory) are emitted so downstream reporting can flag incomplete items
// instead of silently dropping them.
func Product(html, pageURL string) (*types.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	rec := fromPayload(doc)
	if rec == nil {
		rec = fromDOM(doc)
	}

	if rec.Slug == "" {
		rec.Slug = slugFromURL(pageURL)
	}
	if rec.ImageURL == "" {
		rec.ImageURL = productImage(doc)
	}
	rec.Colors = colorSwatches(doc)
	rec.Inventory = Inventory(doc)

	if rec.Name == "" && len(rec.Inventory) == 0 {
		return nil, &Miss{URL: pageURL}
	}
	return rec, nil
}

// slugFromURL takes the last path segment of a product URL.
func slugFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// fieldCandidate is one strategy for extracting a single field. The field
// resolves to the first candidate returning a non-empty value, making the
// tolerant, best-effort cascade explicit and testable per candidate.
type fieldCandidate func(*goquery.Document) string

func firstNonEmpty(doc *goquery.Document, candidates ...fieldCandidate) string {
	for _, candidate := range candidates {
		if v := strings.TrimSpace(candidate(doc)); v != "" {
			return v
		}
	}
	return ""
}

func selectorText(selector string) fieldCandidate {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}
