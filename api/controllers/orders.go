package controllers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/api/validators"
	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/reports"
	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/pkg/enums"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

type shippingLookup interface {
	ForOrder(ctx context.Context, orderID string) ([]shipping.Record, error)
}

// ListOrders returns the active orders with their review status.
func ListOrders(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := store.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// ListArchivedOrders returns the archived order identifiers.
func ListArchivedOrders(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := store.ListArchived(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending checked"`
}

// SetOrderStatus updates the review status of one order.
func SetOrderStatus(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		if err := store.SetStatus(r.Context(), orderID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": orderID, "status": status.String()})
	}
}

type renameRequest struct {
	NewID string `json:"new_id" validate:"required,max=128"`
}

// RenameOrder moves the order to a new identifier.
func RenameOrder(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		var req renameRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newID := validators.SanitizeString(req.NewID, 128)
		if err := store.Rename(r.Context(), orderID, newID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": newID})
	}
}

// ArchiveOrder moves the order out of the active listing.
func ArchiveOrder(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if err := store.Archive(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": orderID, "archived": "true"})
	}
}

// UnarchiveOrder restores an archived order.
func UnarchiveOrder(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if err := store.Unarchive(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": orderID, "archived": "false"})
	}
}

// DeleteOrder removes the order tree. Deleting an absent order succeeds.
func DeleteOrder(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if err := store.Delete(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"id": orderID, "deleted": "true"})
	}
}

// CustomerRow is one customer listing entry, optionally enriched with the
// shipping record for the order.
type CustomerRow struct {
	orderstore.CustomerSummary
	Shipping *shipping.Record `json:"shipping,omitempty"`
}

// ListCustomers joins the store-derived customer rows with shipping records.
// A spreadsheet failure degrades to rows without shipping data instead of
// failing the whole listing.
func ListCustomers(store *orderstore.Store, provider shippingLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		customers, err := store.Customers(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var records []shipping.Record
		if provider != nil {
			records, err = provider.ForOrder(r.Context(), orderID)
			if err != nil {
				ctx := logg.WithOrderID(r.Context(), orderID)
				logg.Warn(ctx, "shipping lookup failed, listing without delivery data")
				records = nil
			}
		}

		rows := make([]CustomerRow, 0, len(customers))
		for _, customer := range customers {
			row := CustomerRow{CustomerSummary: customer}
			want := orderstore.NormalizeName(customer.Name)
			for i := range records {
				if strings.EqualFold(shippingMatchName(records[i].FullName), want) {
					row.Shipping = &records[i]
					break
				}
			}
			rows = append(rows, row)
		}
		responses.WriteSuccess(w, rows)
	}
}

// shippingMatchName normalizes a sheet name for the customer join: drop any
// annotation after a comma, then reduce to the same sanitized form store keys
// use, since the store-side name went through a key and lost its punctuation.
func shippingMatchName(fullName string) string {
	if i := strings.Index(fullName, ","); i >= 0 {
		fullName = fullName[:i]
	}
	return orderstore.NormalizeName(fullName)
}

// DownloadMergedPDF serves the newest merged report inline.
func DownloadMergedPDF(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		path, err := store.LatestMergedPDF(orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		servePDF(w, r, path)
	}
}

// DownloadCustomerPDF serves one customer's report inline.
func DownloadCustomerPDF(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		key := orderstore.Key(chi.URLParam(r, "key"))

		path, err := store.CustomerPDF(orderID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		servePDF(w, r, path)
	}
}

func servePDF(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	http.ServeFile(w, r, path)
}

// SKUEntry is one customer's share of a SKU.
type SKUEntry struct {
	Customer string `json:"customer"`
	Quantity int    `json:"quantity"`
}

// SKUGroup collects every customer ordering the same SKU.
type SKUGroup struct {
	SKU     string     `json:"sku"`
	Total   int        `json:"total"`
	Entries []SKUEntry `json:"entries"`
}

// ListSKUs groups the latest merged export by SKU, the picker's view of the
// order.
func ListSKUs(store *orderstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		path, err := store.LatestMergedCSV(orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := reports.ReadCSV(path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read merged export"))
			return
		}

		grouped := map[string]*SKUGroup{}
		for _, row := range rows {
			group, ok := grouped[row.SKU]
			if !ok {
				group = &SKUGroup{SKU: row.SKU}
				grouped[row.SKU] = group
			}
			group.Total += row.Quantity
			group.Entries = append(group.Entries, SKUEntry{Customer: row.Customer, Quantity: row.Quantity})
		}

		groups := make([]SKUGroup, 0, len(grouped))
		for _, group := range grouped {
			groups = append(groups, *group)
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i].SKU < groups[j].SKU })
		responses.WriteSuccess(w, groups)
	}
}
