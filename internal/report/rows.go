package report

import (
	"sort"
	"strings"

	"wholesale-scraper/internal/extract"
	"wholesale-scraper/internal/types"
)

// Row is the denormalized projection of a ProductRecord for one color/size
// combination, ready for tabular output. Products with no inventory produce
// exactly one row with empty size and quantity fields.
type Row struct {
	ImageURL       string
	Name           string
	SKU            string
	ColorSKU       string
	SKUName        string
	RetailPrice    string
	WholesalePrice string
	Color          string
	SwatchURL      string
	Size           string
	Quantity       int
	HasInventory   bool
	InStock        bool
	Description    string
	Slug           string
	ProductType    string
	// TotalQuantity is the product-wide quantity, repeated on each row for
	// contextual display.
	TotalQuantity int
}

// ExpandRows projects a ProductRecord into report rows: one per (color,
// size) pair when inventory exists, one summary-shaped row otherwise. Colors
// are emitted in sorted order so output is deterministic.
func ExpandRows(rec *types.ProductRecord) []Row {
	base := Row{
		ImageURL:       rec.ImageURL,
		Name:           rec.Name,
		SKU:            rec.SKU,
		SKUName:        rec.SKUName,
		RetailPrice:    rec.RetailPrice,
		WholesalePrice: rec.WholesalePrice,
		Description:    rec.Description,
		Slug:           rec.Slug,
		ProductType:    rec.ProductType,
		TotalQuantity:  rec.TotalQuantity(),
	}

	if len(rec.Inventory) == 0 {
		return []Row{base}
	}

	colors := make([]string, 0, len(rec.Inventory))
	for color := range rec.Inventory {
		colors = append(colors, color)
	}
	sort.Strings(colors)

	var rows []Row
	for _, color := range colors {
		swatch := extract.SwatchFor(rec.Colors, color)
		colorSKU := CombinedSKU(rec.SKU, color)
		for _, stock := range rec.Inventory[color] {
			row := base
			row.Color = color
			row.SwatchURL = swatch
			row.Size = stock.Size
			row.Quantity = stock.Quantity
			row.HasInventory = true
			row.InStock = stock.InStock
			row.ColorSKU = colorSKU
			if stock.SKU != "" {
				row.SKU = stock.SKU
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// CombinedSKU builds the combined identifier for one color of a product:
// the base SKU joined to the color name lower-cased with spaces removed.
func CombinedSKU(sku, color string) string {
	if sku == "" || color == "" {
		return ""
	}
	normalized := strings.ToLower(strings.ReplaceAll(color, " ", ""))
	return sku + "-" + normalized
}

// SummaryRow aggregates one product into a single row for the summary sheet.
type SummaryRow struct {
	ImageURL       string
	Name           string
	SKU            string
	RetailPrice    string
	WholesalePrice string
	Swatches       []types.ColorVariant
	Sizes          string
	TotalQuantity  int
	Description    string
	Slug           string
	InStock        bool
	SKUName        string
	ColorNames     string
	ProductType    string
	Category       string
}

// Summarize builds the one-row-per-product projection, independent of the
// detailed per-category expansion.
func Summarize(rec *types.ProductRecord, category string) SummaryRow {
	var sizes []string
	seen := map[string]bool{}
	inStock := false

	colors := make([]string, 0, len(rec.Inventory))
	for color := range rec.Inventory {
		colors = append(colors, color)
	}
	sort.Strings(colors)
	for _, color := range colors {
		for _, stock := range rec.Inventory[color] {
			if stock.Size != "" && !seen[stock.Size] {
				seen[stock.Size] = true
				sizes = append(sizes, stock.Size)
			}
			if stock.InStock {
				inStock = true
			}
		}
	}

	var names []string
	for _, c := range rec.Colors {
		names = append(names, c.Name)
	}

	return SummaryRow{
		ImageURL:       rec.ImageURL,
		Name:           rec.Name,
		SKU:            rec.SKU,
		RetailPrice:    rec.RetailPrice,
		WholesalePrice: rec.WholesalePrice,
		Swatches:       rec.Colors,
		Sizes:          strings.Join(sizes, ", "),
		TotalQuantity:  rec.TotalQuantity(),
		Description:    rec.Description,
		Slug:           rec.Slug,
		InStock:        inStock,
		SKUName:        rec.SKUName,
		ColorNames:     strings.Join(names, ", "),
		ProductType:    rec.ProductType,
		Category:       category,
	}
}
