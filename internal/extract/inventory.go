package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/types"
)

var digitsRe = regexp.MustCompile(`\d+`)

// Inventory reads the per-color stock accordion from the rendered DOM. For
// each color group, each row yields one size whose quantity is the sum of
// every lot cell in that row; a size is in stock iff the summed quantity is
// positive. Rows with no resolvable size label are skipped, not counted as
// zero.
func Inventory(doc *goquery.Document) map[string][]types.SizeStock {
	inventory := map[string][]types.SizeStock{}

	groups := doc.Find(`details[class*='accordion'], details[class*='inventory']`)
	if groups.Length() == 0 {
		groups = doc.Find(`div[class*='inventory-grid'], div[class*='color-section']`)
	}

	groups.Each(func(_ int, group *goquery.Selection) {
		color := groupColor(group)
		if color == "" {
			return
		}
		table := group.Find("table").First()
		if table.Length() == 0 {
			return
		}

		var stocks []types.SizeStock
		rows := table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr")
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			size := rowSize(row)
			if size == "" {
				return
			}
			qty := rowQuantity(row)
			stocks = append(stocks, types.SizeStock{
				Size:     size,
				SKU:      rowSKU(row),
				Quantity: qty,
				InStock:  qty > 0,
			})
		})

		if len(stocks) > 0 {
			inventory[color] = stocks
		}
	})

	return inventory
}

// groupColor reads the color label from the group heading.
func groupColor(group *goquery.Selection) string {
	heading := group.Find(`span[class*='accordionHeading'], span[class*='heading'], div[class*='heading']`).First()
	if heading.Length() == 0 {
		heading = group.Find("summary").First()
	}
	return strings.TrimSpace(heading.Text())
}

// rowSize reads the size label cell, preferring an explicitly marked size
// element over the first table cell.
func rowSize(row *goquery.Selection) string {
	sizeEl := row.Find(`span[class*='size'], td[class*='size']`).First()
	if sizeEl.Length() == 0 {
		sizeEl = row.Find("td").First()
	}
	return strings.TrimSpace(sizeEl.Text())
}

// rowQuantity sums quantity across however many lot cells the row carries.
// When no marked quantity cell exists, digit-only table cells are summed as a
// fallback.
func rowQuantity(row *goquery.Selection) int {
	qty := 0
	found := false
	row.Find(`span[class*='quantity'], td[class*='quantity'], span[class*='qty']`).Each(func(_ int, cell *goquery.Selection) {
		found = true
		qty += parseQuantity(cell.Text())
	})
	if found {
		return qty
	}
	row.Find("td").Each(func(i int, cell *goquery.Selection) {
		if i == 0 {
			return // size label
		}
		text := strings.TrimSpace(cell.Text())
		if text != "" && digitsOnly(text) {
			qty += parseQuantity(text)
		}
	})
	return qty
}

// rowSKU takes the first lot input's name; all lots of a row share the same
// size, so the first variant SKU stands for the row.
func rowSKU(row *goquery.Selection) string {
	name, _ := row.Find("input[name]").First().Attr("name")
	return name
}

func parseQuantity(text string) int {
	m := digitsRe.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// SwatchFor finds the swatch image for a color by case-insensitive name
// match; an unmatched color simply has no swatch.
func SwatchFor(colors []types.ColorVariant, color string) string {
	for _, c := range colors {
		if strings.EqualFold(c.Name, color) {
			return c.SwatchURL
		}
	}
	return ""
}
