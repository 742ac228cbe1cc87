package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipbee/backoffice/internal/extract"
	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/reports"
	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/pkg/logger"
	"github.com/shipbee/backoffice/pkg/types"
)

type stubShipping struct {
	records []shipping.Record
	err     error
}

func (s stubShipping) ForOrder(_ context.Context, _ string) ([]shipping.Record, error) {
	return s.records, s.err
}

func newTestStore(t *testing.T) *orderstore.Store {
	t.Helper()
	store, err := orderstore.New(t.TempDir(), logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return store
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func testDate() time.Time {
	return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
}

func seedOrder(t *testing.T, store *orderstore.Store, orderID, customer string, qty int) orderstore.Key {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.EnsureOrder(ctx, orderID))

	key := orderstore.NewKey(customer, testDate())
	items := []extract.LineItem{{SKU: "AB12CD3456", Quantity: qty, Name: "Blue Shirt"}}
	pdfPath, csvPath := store.ArtifactPaths(orderID, key)
	require.NoError(t, reports.WriteCustomerPDF(pdfPath, customer, items, 0))
	require.NoError(t, reports.WriteCustomerCSV(csvPath, customer, items))
	require.NoError(t, store.MergeMetadata(ctx, orderID, map[orderstore.Key]int{key: 1}))
	return key
}

func ordersRouter(store *orderstore.Store, provider shippingLookup) http.Handler {
	logg := testLogger()
	r := chi.NewRouter()
	r.Get("/orders", ListOrders(store, logg))
	r.Get("/orders/archived", ListArchivedOrders(store, logg))
	r.Post("/orders/{orderID}/status", SetOrderStatus(store, logg))
	r.Post("/orders/{orderID}/rename", RenameOrder(store, logg))
	r.Post("/orders/{orderID}/archive", ArchiveOrder(store, logg))
	r.Post("/orders/{orderID}/unarchive", UnarchiveOrder(store, logg))
	r.Delete("/orders/{orderID}", DeleteOrder(store, logg))
	r.Get("/orders/{orderID}/customers", ListCustomers(store, provider, logg))
	r.Get("/orders/{orderID}/merged.pdf", DownloadMergedPDF(store, logg))
	r.Get("/orders/{orderID}/customers/{key}/report.pdf", DownloadCustomerPDF(store, logg))
	r.Get("/orders/{orderID}/skus", ListSKUs(store, logg))
	return r
}

func TestListOrders(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))
	require.NoError(t, store.EnsureOrder(context.Background(), "1002"))

	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []orderstore.OrderSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "1001", envelope.Data[0].ID)
	assert.Equal(t, "pending", envelope.Data[0].Status.String())
}

func TestSetOrderStatus(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))

	body := bytes.NewBufferString(`{"status":"checked"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/1001/status", body)
	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "checked", store.Status(context.Background(), "1001").String())
}

func TestSetOrderStatusRejectsUnknownValue(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))

	body := bytes.NewBufferString(`{"status":"shipped"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/1001/status", body)
	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameOrderConflict(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))
	require.NoError(t, store.EnsureOrder(context.Background(), "1002"))

	body := bytes.NewBufferString(`{"new_id":"1002"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/1001/rename", body)
	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
}

func TestArchiveUnarchiveEndpoints(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))
	router := ordersRouter(store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/1001/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.Exists("1001"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/archived", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/1001/unarchive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.Exists("1001"))
}

func TestDeleteOrderIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))
	router := ordersRouter(store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/1001", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/1001", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListCustomersJoinsShipping(t *testing.T) {
	store := newTestStore(t)
	seedOrder(t, store, "1001", "Jane Doe", 2)

	provider := stubShipping{records: []shipping.Record{{
		FullName:  "Jane Doe",
		Phone:     "+1 555 0100",
		SoldPrice: decimal.RequireFromString("120.50"),
		ItemCount: 2,
	}}}

	rec := httptest.NewRecorder()
	ordersRouter(store, provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []CustomerRow `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Jane Doe", envelope.Data[0].Name)
	assert.Equal(t, 2, envelope.Data[0].TotalItems)
	assert.Equal(t, 1, envelope.Data[0].OutOfStock)
	require.NotNil(t, envelope.Data[0].Shipping)
	assert.Equal(t, "+1 555 0100", envelope.Data[0].Shipping.Phone)
}

func TestListCustomersJoinsPunctuatedNames(t *testing.T) {
	store := newTestStore(t)
	// the stored key flattens the apostrophe, the sheet keeps it
	seedOrder(t, store, "1001", "Jane O'Brien", 2)

	provider := stubShipping{records: []shipping.Record{{
		FullName: "Jane O'Brien, apt 4",
		Phone:    "+1 555 0199",
	}}}

	rec := httptest.NewRecorder()
	ordersRouter(store, provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []CustomerRow `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	require.NotNil(t, envelope.Data[0].Shipping)
	assert.Equal(t, "+1 555 0199", envelope.Data[0].Shipping.Phone)
}

func TestListCustomersDegradesWhenShippingFails(t *testing.T) {
	store := newTestStore(t)
	seedOrder(t, store, "1001", "Jane Doe", 2)

	rec := httptest.NewRecorder()
	provider := stubShipping{err: errors.New("sheet down")}
	ordersRouter(store, provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []CustomerRow `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	assert.Nil(t, envelope.Data[0].Shipping)
}

func TestDownloadCustomerPDF(t *testing.T) {
	store := newTestStore(t)
	key := seedOrder(t, store, "1001", "Jane Doe", 2)

	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/customers/"+key.String()+"/report.pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String()[:4])
}

func TestDownloadMergedPDFNotFound(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))

	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/merged.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSKUsGroupsMergedExport(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureOrder(context.Background(), "1001"))

	_, csvPath := store.MergedArtifactPaths("1001", "1001-merged")
	items := []reports.MergedItem{
		{SKU: "S1", Quantity: 2, Customer: "Jane Doe"},
		{SKU: "S1", Quantity: 3, Customer: "John Roe"},
		{SKU: "S2", Quantity: 1, Customer: "Jane Doe"},
	}
	require.NoError(t, reports.WriteMergedCSV(csvPath, items))

	rec := httptest.NewRecorder()
	ordersRouter(store, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1001/skus", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []SKUGroup `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "S1", envelope.Data[0].SKU)
	assert.Equal(t, 5, envelope.Data[0].Total)
	require.Len(t, envelope.Data[0].Entries, 2)
	assert.Equal(t, "S2", envelope.Data[1].SKU)
}
