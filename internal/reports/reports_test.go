package reports

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipbee/backoffice/internal/extract"
)

func price(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func sampleItems() []extract.LineItem {
	return []extract.LineItem{
		{SKU: "AB12CD3456", Quantity: 2, Name: "Blue Shirt", Price: price("19.99")},
		{SKU: "XY98ZW7654", Quantity: 1, Name: "A very long item name that should be cut after ten words exactly", Price: decimal.NullDecimal{}},
	}
}

func TestWriteCustomerPDFCreatesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Jane_Doe-2026-08-28.pdf")

	require.NoError(t, WriteCustomerPDF(path, "Jane Doe", sampleItems(), 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))

	// no temp leftovers
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteMergedPDFCreatesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1001-merged-2026-08-28.pdf")

	items := []MergedItem{
		{SKU: "AB12CD3456", Quantity: 2, Customer: "Jane Doe"},
		{SKU: "XY98ZW7654", Quantity: 1, Customer: "John Roe"},
	}
	require.NoError(t, WriteMergedPDF(path, "1001", items))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestWritePDFFailsWhenDirectoryMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.pdf")
	require.Error(t, WriteCustomerPDF(path, "Jane Doe", sampleItems(), 0))
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")

	require.NoError(t, WriteCustomerCSV(path, "Jane Doe", sampleItems()))

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	assert.Equal(t, Row{SKU: "AB12CD3456", Customer: "Jane Doe", Quantity: 2}, rows[0])
	assert.Equal(t, Row{SKU: "XY98ZW7654", Customer: "Jane Doe", Quantity: 1}, rows[1])
}

func TestMergedCSVKeepsOriginatingCustomer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.csv")

	items := []MergedItem{
		{SKU: "S1", Quantity: 3, Customer: "Jane Doe"},
		{SKU: "S2", Quantity: 4, Customer: "John Roe"},
	}
	require.NoError(t, WriteMergedCSV(path, items))

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane Doe", rows[0].Customer)
	assert.Equal(t, "John Roe", rows[1].Customer)
}

func TestReadCSVHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, WriteMergedCSV(path, nil))

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b c", truncateWords("a b c", 10))
	assert.Equal(t, "one two three", truncateWords("one two three four", 3))
	assert.Equal(t, "", truncateWords("", 10))
}

func TestSplitSKU(t *testing.T) {
	prefix, suffix := splitSKU("AB12CD3456")
	assert.Equal(t, "AB12CD", prefix)
	assert.Equal(t, "3456", suffix)

	prefix, suffix = splitSKU("X12")
	assert.Equal(t, "", prefix)
	assert.Equal(t, "X12", suffix)
}
