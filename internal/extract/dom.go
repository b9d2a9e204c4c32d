package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/types"
)

var (
	priceRe   = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	skuRe     = regexp.MustCompile(`\b\d{6,}\b`)
	srcSizeRe = regexp.MustCompile(`(\d+)w`)
)

const maxDescriptionLen = 500

// fromDOM is the DOM-heuristic strategy, used when the structured payload is
// absent or unparsable. Each field resolves independently through its own
// candidate cascade; extraction is best-effort per field, not all-or-nothing
// per record.
func fromDOM(doc *goquery.Document) *types.ProductRecord {
	retail, wholesale := domPrices(doc)
	return &types.ProductRecord{
		Name: firstNonEmpty(doc,
			selectorText(`h1[class*='product']`),
			selectorText(`h1`),
			selectorText(`span[class*='title']`),
		),
		SKU:            domSKU(doc),
		RetailPrice:    retail,
		WholesalePrice: wholesale,
		Description: truncate(firstNonEmpty(doc,
			selectorText(`div[class*='description']`),
			selectorText(`div[class*='designIntent']`),
			selectorText(`p[class*='description']`),
		), maxDescriptionLen),
		ProductType: firstNonEmpty(doc,
			breadcrumbCategory,
		),
	}
}

// domSKU looks for a numeric style identifier near an SKU/Style label, then
// falls back to the name attribute of the first inventory input (a variant
// SKU whose base precedes the first dash).
func domSKU(doc *goquery.Document) string {
	sku := ""
	doc.Find("span, div, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if len(text) > 200 {
			return true
		}
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "sku") && !strings.Contains(lower, "style") {
			return true
		}
		if m := skuRe.FindString(text); m != "" {
			sku = m
			return false
		}
		return true
	})
	if sku != "" {
		return sku
	}

	name, ok := doc.Find("input[name]").First().Attr("name")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(name, '-'); i >= 0 {
		return name[:i]
	}
	return name
}

// domPrices scans price-bearing containers for currency-formatted substrings:
// the first is retail, the second wholesale. Labeled fallbacks cover pages
// that render the two prices in separate blocks.
func domPrices(doc *goquery.Document) (retail, wholesale string) {
	container := doc.Find(`div[class*='price']`).First()
	if container.Length() > 0 {
		prices := priceRe.FindAllString(container.Text(), -1)
		if len(prices) > 0 {
			retail = prices[0]
		}
		if len(prices) > 1 {
			wholesale = prices[1]
		}
	}
	if retail == "" {
		retail = labeledPrice(doc, "retail")
	}
	if wholesale == "" {
		wholesale = labeledPrice(doc, "wholesale")
	}
	return retail, wholesale
}

func labeledPrice(doc *goquery.Document, label string) string {
	found := ""
	doc.Find("span, div, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if len(text) > 200 || !strings.Contains(strings.ToLower(text), label) {
			return true
		}
		if m := priceRe.FindString(text); m != "" {
			found = m
			return false
		}
		return true
	})
	return found
}

// breadcrumbCategory reads the second-to-last breadcrumb entry.
func breadcrumbCategory(doc *goquery.Document) string {
	crumbs := doc.Find(`nav[aria-label*='readcrumb'] a, nav[aria-label*='readcrumb'] span`)
	if crumbs.Length() < 2 {
		return ""
	}
	return strings.TrimSpace(crumbs.Eq(crumbs.Length() - 2).Text())
}

// productImage picks the main product image, preferring the largest srcset
// entry over the plain src attribute.
func productImage(doc *goquery.Document) string {
	candidates := []string{
		`img[class*='image_image']`,
		`img[class*='product']`,
	}
	for _, selector := range candidates {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		if url := bestSrcsetURL(img.AttrOr("srcset", "")); url != "" {
			return url
		}
		if src := img.AttrOr("src", ""); strings.HasPrefix(src, "http") {
			return src
		}
	}
	return ""
}

// bestSrcsetURL returns the largest-width URL from a srcset attribute.
func bestSrcsetURL(srcset string) string {
	bestURL, bestSize := "", 0
	for _, source := range strings.Split(srcset, ",") {
		parts := strings.Fields(strings.TrimSpace(source))
		if len(parts) == 0 || !strings.HasPrefix(parts[0], "http") {
			continue
		}
		size := 0
		if len(parts) > 1 {
			if m := srcSizeRe.FindStringSubmatch(parts[1]); m != nil {
				size, _ = strconv.Atoi(m[1])
			}
		}
		if size >= bestSize {
			bestSize = size
			bestURL = parts[0]
		}
	}
	return bestURL
}

// colorSwatches collects the selectable colors with their swatch images.
// Unmatched or imageless colors are kept with an empty URL; swatch matching
// downstream is non-fatal.
func colorSwatches(doc *goquery.Document) []types.ColorVariant {
	container := doc.Find(`div[class*='colorSwatch'], div[class*='color-swatch']`).First()
	scope := doc.Selection
	if container.Length() > 0 {
		scope = container
	}

	var swatches []types.ColorVariant
	seen := map[string]bool{}
	scope.Find(`img[class*='swatch']`).Each(func(_ int, img *goquery.Selection) {
		name := strings.TrimSpace(img.AttrOr("alt", ""))
		if name == "" || seen[name] {
			return
		}
		url := img.AttrOr("src", "")
		if !strings.HasPrefix(url, "http") {
			url = bestSrcsetURL(img.AttrOr("srcset", ""))
		}
		seen[name] = true
		swatches = append(swatches, types.ColorVariant{Name: name, SwatchURL: url})
	})
	return swatches
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
