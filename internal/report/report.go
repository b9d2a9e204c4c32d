package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"wholesale-scraper/internal/types"
)

const (
	summarySheet  = "Summary"
	maxSwatchCols = 6
	imageColWidth = 22
)

var detailHeaders = []string{
	"Product Image", "Product Name", "SKU", "Color SKU", "SKU Name",
	"Retail Price", "Wholesale Price", "Color", "Color Swatch", "Size",
	"Quantity", "In Stock", "Description", "Slug", "Product Type",
}

// Writer renders collected product records into a workbook with one sheet
// per category and a summary sheet.
type Writer struct {
	cfg    *types.Config
	logger types.Logger

	file       *excelize.File
	headerID   int
	categories map[string][]*types.ProductRecord
}

func NewWriter(cfg *types.Config, logger types.Logger) *Writer {
	return &Writer{
		cfg:        cfg,
		logger:     logger,
		file:       excelize.NewFile(),
		categories: map[string][]*types.ProductRecord{},
	}
}

// Add records a product under a category. Records are buffered so the
// summary sheet can be written once, after all categories are collected.
func (w *Writer) Add(category string, rec *types.ProductRecord) {
	w.categories[category] = append(w.categories[category], rec)
}

// Count returns the number of buffered records across all categories.
func (w *Writer) Count() int {
	n := 0
	for _, recs := range w.categories {
		n += len(recs)
	}
	return n
}

// Save writes the workbook to the configured output directory and returns
// the final path. The filename carries a timestamp so consecutive runs do
// not clobber each other.
func (w *Writer) Save() (string, error) {
	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if err := w.render(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("products_%s.xlsx", time.Now().Format("20060102_150405"))
	path := filepath.Join(w.cfg.OutputDir, name)
	if err := w.file.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func (w *Writer) render() error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	w.headerID = style

	if _, err := w.file.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	names := make([]string, 0, len(w.categories))
	for name := range w.categories {
		names = append(names, name)
	}
	sort.Strings(names)

	summaryRow := 2
	w.writeSummaryHeader()
	for _, name := range names {
		if err := w.writeCategorySheet(name, w.categories[name]); err != nil {
			return err
		}
		for _, rec := range w.categories[name] {
			w.writeSummaryRow(summaryRow, Summarize(rec, name))
			summaryRow++
		}
	}

	// The default sheet is only useful when nothing else got written.
	if len(names) > 0 {
		w.file.DeleteSheet("Sheet1")
	}
	if idx, err := w.file.GetSheetIndex(summarySheet); err == nil {
		w.file.SetActiveSheet(idx)
	}
	return nil
}

func (w *Writer) writeCategorySheet(category string, recs []*types.ProductRecord) error {
	sheet := sheetName(category)
	if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}

	for i, h := range detailHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		w.file.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(detailHeaders), 1)
	w.file.SetCellStyle(sheet, "A1", last, w.headerID)
	w.file.SetColWidth(sheet, "A", "A", imageColWidth)
	w.file.SetColWidth(sheet, "B", "B", 34)
	w.file.SetColWidth(sheet, "I", "I", imageColWidth)
	w.file.SetColWidth(sheet, "M", "M", 48)

	rowIdx := 2
	for _, rec := range recs {
		for _, row := range ExpandRows(rec) {
			w.writeDetailRow(sheet, rowIdx, row)
			rowIdx++
		}
	}

	w.logger.Infof("Sheet %s: %d rows from %d products", sheet, rowIdx-2, len(recs))
	return nil
}

func (w *Writer) writeDetailRow(sheet string, rowIdx int, row Row) {
	w.setImageCell(sheet, 1, rowIdx, row.ImageURL)
	values := []interface{}{
		nil, row.Name, row.SKU, row.ColorSKU, row.SKUName,
		row.RetailPrice, row.WholesalePrice, row.Color, nil, row.Size,
		nil, nil, row.Description, row.Slug, row.ProductType,
	}
	if row.HasInventory {
		values[10] = row.Quantity
		values[11] = inStockLabel(row.InStock)
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
		w.file.SetCellValue(sheet, cell, v)
	}
	w.setImageCell(sheet, 9, rowIdx, row.SwatchURL)
	if w.cfg.UseImageFormula && (row.ImageURL != "" || row.SwatchURL != "") {
		w.file.SetRowHeight(sheet, rowIdx, 80)
	}
}

var summaryHeaders = func() []string {
	h := []string{"Product Image", "Product Name", "SKU", "Retail Price", "Wholesale Price"}
	for i := 1; i <= maxSwatchCols; i++ {
		h = append(h, fmt.Sprintf("Color %d", i))
	}
	return append(h,
		"Sizes", "Total Quantity", "Description", "Slug", "In Stock",
		"SKU Name", "Color Names", "Product Type", "Category")
}()

func (w *Writer) writeSummaryHeader() {
	for i, h := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		w.file.SetCellValue(summarySheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(summaryHeaders), 1)
	w.file.SetCellStyle(summarySheet, "A1", last, w.headerID)
	w.file.SetColWidth(summarySheet, "A", "A", imageColWidth)
	w.file.SetColWidth(summarySheet, "B", "B", 34)
}

func (w *Writer) writeSummaryRow(rowIdx int, row SummaryRow) {
	w.setImageCell(summarySheet, 1, rowIdx, row.ImageURL)

	set := func(col int, v interface{}) {
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
		w.file.SetCellValue(summarySheet, cell, v)
	}
	set(2, row.Name)
	set(3, row.SKU)
	set(4, row.RetailPrice)
	set(5, row.WholesalePrice)
	for i := 0; i < maxSwatchCols && i < len(row.Swatches); i++ {
		w.setImageCell(summarySheet, 6+i, rowIdx, row.Swatches[i].SwatchURL)
	}
	set(12, row.Sizes)
	set(13, row.TotalQuantity)
	set(14, row.Description)
	set(15, row.Slug)
	set(16, inStockLabel(row.InStock))
	set(17, row.SKUName)
	set(18, row.ColorNames)
	set(19, row.ProductType)
	set(20, row.Category)

	if w.cfg.UseImageFormula && row.ImageURL != "" {
		w.file.SetRowHeight(summarySheet, rowIdx, 80)
	}
}

// setImageCell renders a URL either as an in-cell IMAGE formula, which
// spreadsheet frontends resolve to the picture itself, or as a plain
// hyperlink when formulas are disabled.
func (w *Writer) setImageCell(sheet string, col, rowIdx int, url string) {
	if url == "" {
		return
	}
	cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
	if w.cfg.UseImageFormula {
		w.file.SetCellFormula(sheet, cell, fmt.Sprintf(`IMAGE("%s",1)`, url))
		return
	}
	w.file.SetCellHyperLink(sheet, cell, url, "External")
	w.file.SetCellValue(sheet, cell, "View Image")
}

func inStockLabel(in bool) string {
	if in {
		return "Yes"
	}
	return "No"
}

// sheetName clamps a category name to the 31-character sheet name limit.
func sheetName(category string) string {
	if len(category) <= 31 {
		return category
	}
	return category[:31]
}
