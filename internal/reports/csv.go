package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shipbee/backoffice/internal/extract"
)

var csvHeader = []string{"sku", "customer", "quantity"}

// Row is one record of a delimited export.
type Row struct {
	SKU      string
	Customer string
	Quantity int
}

// WriteCustomerCSV exports a single customer's items.
func WriteCustomerCSV(path, customer string, items []extract.LineItem) error {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, Row{SKU: it.SKU, Customer: customer, Quantity: it.Quantity})
	}
	return writeCSV(path, rows)
}

// WriteMergedCSV exports the cross-customer rows.
func WriteMergedCSV(path string, items []MergedItem) error {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, Row{SKU: it.SKU, Customer: it.Customer, Quantity: it.Quantity})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows []Row) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, row := range rows {
			if err := cw.Write([]string{row.SKU, row.Customer, strconv.Itoa(row.Quantity)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadCSV loads an export back into rows. Header-only files yield no rows;
// unparseable quantities count as zero, matching the listing surface's
// fail-open totals.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := headerIndex(records[0])
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := Row{}
		if i, ok := cols["sku"]; ok && i < len(record) {
			row.SKU = strings.TrimSpace(record[i])
		}
		if i, ok := cols["customer"]; ok && i < len(record) {
			row.Customer = strings.TrimSpace(record[i])
		}
		if i, ok := cols["quantity"]; ok && i < len(record) {
			if qty, err := strconv.Atoi(strings.TrimSpace(record[i])); err == nil {
				row.Quantity = qty
			}
		}
		if row.SKU == "" && row.Customer == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	return cols
}
