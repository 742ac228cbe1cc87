package shipping

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shipbee/backoffice/pkg/config"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

func testWorkbook(t *testing.T) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	require.NoError(t, wb.SetSheetName("Sheet1", "Customer_Lines"))
	linesRows := [][]any{
		{"Customer Full Name", "Order Number", "Item Count", "Sold Price", "Amount Paid"},
		{"Jane Doe", "1001", "5", "120.50", "20.00"},
		{"John Roe, repeat buyer", "1001", "2", "44.00", ""},
		{"Jane Doe", "1002", "1", "10.00", "10.00"},
	}
	for i, row := range linesRows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("Customer_Lines", cellRef, &row))
	}

	_, err := wb.NewSheet("Customer Base")
	require.NoError(t, err)
	baseRows := [][]any{
		{"Customer Full Name", "Phone", "Address", "Map Link"},
		{"Jane Doe", "+1 555 0100", "12 Main St", "https://maps.example/jane"},
	}
	for i, row := range baseRows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("Customer Base", cellRef, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	return buf.Bytes()
}

func testProvider(t *testing.T, serverURL string, ttl time.Duration) *Provider {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	p, err := NewProvider(config.ShippingConfig{
		SheetURL:       serverURL,
		LinesSheet:     "Customer_Lines",
		BaseSheet:      "Customer Base",
		FetchTimeout:   5 * time.Second,
		CacheTTL:       ttl,
		RetryOnFailure: false,
	}, logg)
	require.NoError(t, err)
	return p
}

func TestForOrderJoinsLinesWithBase(t *testing.T) {
	workbook := testWorkbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, time.Minute)
	records, err := p.ForOrder(context.Background(), "1001")
	require.NoError(t, err)
	require.Len(t, records, 2)

	jane := records[0]
	assert.Equal(t, "Jane Doe", jane.FullName)
	assert.Equal(t, "+1 555 0100", jane.Phone)
	assert.Equal(t, "12 Main St", jane.Address)
	assert.Equal(t, "https://maps.example/jane", jane.MapLink)
	assert.Equal(t, 5, jane.ItemCount)
	assert.Equal(t, "100.5", jane.AmountDue().String())

	// absent from the base sheet: listed without contact details,
	// empty amount paid defaults to zero
	john := records[1]
	assert.Equal(t, "John Roe, repeat buyer", john.FullName)
	assert.Empty(t, john.Phone)
	assert.Empty(t, john.MapLink)
	assert.Equal(t, "44", john.AmountDue().String())
}

func TestForOrderCutsIdentifierAtComma(t *testing.T) {
	workbook := testWorkbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, time.Minute)

	// annotated identifier still matches the bare order number
	records, err := p.ForOrder(context.Background(), "1001, urgent")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane Doe", records[0].FullName)
	assert.Equal(t, "+1 555 0100", records[0].Phone)

	records, err = p.ForOrder(context.Background(), "  1002  ")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0", records[0].AmountDue().String())
}

func TestForCustomerMatchesBeforeComma(t *testing.T) {
	workbook := testWorkbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, time.Minute)

	rec, err := p.ForCustomer(context.Background(), "1001", "John Roe")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ItemCount)

	_, err = p.ForCustomer(context.Background(), "1001", "Nobody")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestCacheSkipsRefetchWithinTTL(t *testing.T) {
	workbook := testWorkbook(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(workbook)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, time.Minute)
	ctx := context.Background()

	_, err := p.ForOrder(ctx, "1001")
	require.NoError(t, err)
	_, err = p.ForOrder(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchRetriesOnceWhenConfigured(t *testing.T) {
	workbook := testWorkbook(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(workbook)
	}))
	defer server.Close()

	logg := logger.New(logger.Options{ServiceName: "test"})
	p, err := NewProvider(config.ShippingConfig{
		SheetURL:       server.URL,
		LinesSheet:     "Customer_Lines",
		BaseSheet:      "Customer Base",
		FetchTimeout:   5 * time.Second,
		CacheTTL:       time.Minute,
		RetryOnFailure: true,
	}, logg)
	require.NoError(t, err)

	records, err := p.ForOrder(context.Background(), "1001")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchFailureIsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, time.Minute)
	_, err := p.ForOrder(context.Background(), "1001")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "Jane Doe", matchKey("Jane Doe, apt 4"))
	assert.Equal(t, "Jane Doe", matchKey("  Jane Doe  "))
	assert.Equal(t, "", matchKey(", only annotation"))
}
