package fulfillment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/reports"
	"github.com/shipbee/backoffice/pkg/enums"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

func cartMarkup(sku string, qty int, name, price string) string {
	markup := fmt.Sprintf(`{"goods_sn":"%s","quantity":"%d","goods_name":"%s"`, sku, qty, name)
	if price != "" {
		markup += fmt.Sprintf(`,"estimatedPrice":{"amount":"%s"}`, price)
	}
	return markup + "}"
}

func newTestService(t *testing.T) (Service, *orderstore.Store) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	store, err := orderstore.New(t.TempDir(), logg)
	require.NoError(t, err)
	svc, err := NewService(store, logg)
	require.NoError(t, err)
	return svc, store
}

func TestProcessCartsWritesAllArtifacts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.ProcessCarts(ctx, "1001", []CustomerCart{
		{Customer: "Jane Doe", Markup: cartMarkup("AB12CD3456", 2, "Blue Shirt", "19.99"), OutOfStock: 1},
		{Customer: "John Roe", Markup: cartMarkup("XY98ZW7654", 3, "Red Hat", "")},
	})
	require.NoError(t, err)

	require.Len(t, result.Customers, 2)
	assert.Equal(t, "Jane Doe", result.Customers[0].Customer)
	assert.Equal(t, 2, result.Customers[0].Items)
	assert.Equal(t, 1, result.Customers[0].OutOfStock)
	assert.False(t, result.Customers[0].Skipped)
	assert.Equal(t, 2, result.MergedRows)

	// per-customer artifacts exist under the returned key
	pdfPath, csvPath := store.ArtifactPaths("1001", result.Customers[0].Key)
	assert.FileExists(t, pdfPath)
	assert.FileExists(t, csvPath)

	rows, err := reports.ReadCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].Customer)
	assert.Equal(t, 2, rows[0].Quantity)

	// merged export carries both customers
	mergedCSV, err := store.LatestMergedCSV("1001")
	require.NoError(t, err)
	mergedRows, err := reports.ReadCSV(mergedCSV)
	require.NoError(t, err)
	assert.Len(t, mergedRows, 2)

	mergedPDF, err := store.LatestMergedPDF("1001")
	require.NoError(t, err)
	assert.FileExists(t, mergedPDF)

	meta, err := store.Metadata(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 1, meta[result.Customers[0].Key])

	assert.Equal(t, enums.OrderStatusPending, store.Status(ctx, "1001"))
}

func TestProcessCartsSkipsEmptyCart(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.ProcessCarts(ctx, "1001", []CustomerCart{
		{Customer: "Jane Doe", Markup: "<html>no cart data here</html>"},
	})
	require.NoError(t, err)

	require.Len(t, result.Customers, 1)
	assert.True(t, result.Customers[0].Skipped)
	assert.Equal(t, 0, result.MergedRows)

	// no merged artifacts for an all-empty order
	_, err = store.LatestMergedPDF("1001")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	// metadata file still materializes, empty
	meta, err := store.Metadata(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.Equal(t, enums.OrderStatusPending, store.Status(ctx, "1001"))
}

func TestProcessCartsValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ProcessCarts(ctx, "", []CustomerCart{{Customer: "Jane"}})
	assert.Error(t, err)

	_, err = svc.ProcessCarts(ctx, "1001", nil)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	_, err = svc.ProcessCarts(ctx, "1001", []CustomerCart{{Customer: "  ", Markup: "x"}})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestReprocessingOverwritesSameDayArtifacts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.ProcessCarts(ctx, "1001", []CustomerCart{
		{Customer: "Jane Doe", Markup: cartMarkup("AB12CD3456", 2, "Blue Shirt", "19.99"), OutOfStock: 2},
	})
	require.NoError(t, err)

	second, err := svc.ProcessCarts(ctx, "1001", []CustomerCart{
		{Customer: "Jane Doe", Markup: cartMarkup("AB12CD3456", 5, "Blue Shirt", "19.99"), OutOfStock: 0},
	})
	require.NoError(t, err)
	require.Equal(t, first.Customers[0].Key, second.Customers[0].Key)

	_, csvPath := store.ArtifactPaths("1001", second.Customers[0].Key)
	rows, err := reports.ReadCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Quantity)

	meta, err := store.Metadata(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 0, meta[second.Customers[0].Key])

	// one pdf per customer, not one per run
	pdfDir := filepath.Dir(firstPDFPath(store, "1001", first.Customers[0].Key))
	entries, err := os.ReadDir(pdfDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func firstPDFPath(store *orderstore.Store, orderID string, key orderstore.Key) string {
	pdfPath, _ := store.ArtifactPaths(orderID, key)
	return pdfPath
}

func TestProcessCartsCustomerListingScenario(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.ProcessCarts(ctx, "1001", []CustomerCart{
		{Customer: "Jane Doe", Markup: cartMarkup("AB12CD3456", 2, "Blue Shirt", "19.99"), OutOfStock: 1},
	})
	require.NoError(t, err)

	customers, err := store.Customers(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, result.Customers[0].Key, customers[0].Key)
	assert.Equal(t, "Jane Doe", customers[0].Name)
	assert.Equal(t, 2, customers[0].TotalItems)
	assert.Equal(t, 1, customers[0].OutOfStock)

	key := customers[0].Key
	assert.Equal(t, orderstore.NewKey("Jane Doe", time.Now()), key)
}
