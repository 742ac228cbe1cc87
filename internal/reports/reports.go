// Package reports renders the printable PDF and spreadsheet-importable CSV
// artifacts for processed orders, one pair per customer plus one merged pair
// per order.
package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/shipbee/backoffice/internal/extract"
)

const (
	pageMargin = 0.5 // inches

	colIndexWidth    = 0.5
	colSKUWidth      = 2.0
	colQuantityWidth = 0.5
	colNameWidth     = 6.0
	colPriceWidth    = 1.0
	colCustomerWidth = 4.0

	rowHeight = 0.28

	nameWordLimit = 10
	skuBoldSuffix = 4
)

// MergedItem is one row of the cross-customer report.
type MergedItem struct {
	SKU      string
	Quantity int
	Price    decimal.NullDecimal
	Customer string
}

// WriteCustomerPDF renders the landscape table for a single customer's items
// with a totals row and the out-of-stock recheck footer. The file appears
// atomically: content goes to a temp file first and is renamed into place.
func WriteCustomerPDF(path, customer string, items []extract.LineItem, oosCount int) error {
	totalQty := 0
	totalAmount := decimal.Zero
	for _, it := range items {
		totalQty += it.Quantity
		if it.Price.Valid {
			totalAmount = totalAmount.Add(it.Price.Decimal.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	pdf := newLandscapePDF()
	writeTitle(pdf, fmt.Sprintf("%s's Order (Total items: %d)", customer, totalQty))

	headers := []string{"#", "SKU", "Qty", "Item Name", "Price"}
	widths := []float64{colIndexWidth, colSKUWidth, colQuantityWidth, colNameWidth, colPriceWidth}
	writeHeaderRow(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 10)
	for idx, it := range items {
		price := ""
		if it.Price.Valid {
			price = it.Price.Decimal.StringFixed(2)
		}
		pdf.CellFormat(colIndexWidth, rowHeight, fmt.Sprintf("%d", idx+1), "1", 0, "L", false, 0, "")
		writeSKUCell(pdf, colSKUWidth, it.SKU)
		pdf.CellFormat(colQuantityWidth, rowHeight, fmt.Sprintf("%d", it.Quantity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colNameWidth, rowHeight, truncateWords(it.Name, nameWordLimit), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colPriceWidth, rowHeight, price, "1", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 220)
	pdf.CellFormat(colIndexWidth, rowHeight, "", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colSKUWidth, rowHeight, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQuantityWidth, rowHeight, fmt.Sprintf("%d", totalQty), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colNameWidth, rowHeight, "", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colPriceWidth, rowHeight, "$"+totalAmount.StringFixed(2), "1", 1, "L", true, 0, "")

	pdf.Ln(0.2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, rowHeight, fmt.Sprintf("Items to recheck (out of stock): %d", oosCount), "", 1, "L", false, 0, "")

	return writeAtomic(path, pdf.Output)
}

// WriteMergedPDF renders the cross-customer table: index, SKU, quantity, and
// the originating customer. Price and name columns are deliberately omitted.
func WriteMergedPDF(path, orderID string, items []MergedItem) error {
	totalQty := 0
	for _, it := range items {
		totalQty += it.Quantity
	}

	pdf := newLandscapePDF()
	writeTitle(pdf, fmt.Sprintf("Order %s (Total items: %d)", orderID, totalQty))

	headers := []string{"#", "SKU", "Qty", "Customer"}
	widths := []float64{colIndexWidth, colSKUWidth, colQuantityWidth, colCustomerWidth}
	writeHeaderRow(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 10)
	for idx, it := range items {
		pdf.CellFormat(colIndexWidth, rowHeight, fmt.Sprintf("%d", idx+1), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colSKUWidth, rowHeight, it.SKU, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQuantityWidth, rowHeight, fmt.Sprintf("%d", it.Quantity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colCustomerWidth, rowHeight, it.Customer, "1", 1, "L", false, 0, "")
	}

	return writeAtomic(path, pdf.Output)
}

func newLandscapePDF() *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "in", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()
	return pdf
}

func writeTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 0.4, title, "", 1, "C", false, 0, "")
	pdf.Ln(0.2)
}

func writeHeaderRow(pdf *gofpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(211, 211, 211)
	for i, h := range headers {
		last := i == len(headers)-1
		ln := 0
		if last {
			ln = 1
		}
		pdf.CellFormat(widths[i], rowHeight, h, "1", ln, "L", true, 0, "")
	}
}

// writeSKUCell prints the SKU with its last four characters emphasized, the
// part pickers actually read.
func writeSKUCell(pdf *gofpdf.Fpdf, width float64, sku string) {
	prefix, suffix := splitSKU(sku)
	x, y := pdf.GetXY()
	pdf.CellFormat(width, rowHeight, "", "1", 0, "L", false, 0, "")
	endX := pdf.GetX()

	pdf.SetXY(x+0.04, y)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(pdf.GetStringWidth(prefix), rowHeight, prefix, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pdf.GetStringWidth(suffix), rowHeight, suffix, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(endX, y)
}

func splitSKU(sku string) (string, string) {
	if len(sku) <= skuBoldSuffix {
		return "", sku
	}
	return sku[:len(sku)-skuBoldSuffix], sku[len(sku)-skuBoldSuffix:]
}

func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) > limit {
		words = words[:limit]
	}
	return strings.Join(words, " ")
}

// writeAtomic streams content into a temp file next to the destination and
// renames it into place so readers never observe a partial artifact.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
