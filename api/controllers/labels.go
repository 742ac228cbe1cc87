package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/internal/carrier"
	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/pkg/logger"
)

type shippingRecordLookup interface {
	ForCustomer(ctx context.Context, orderID, customer string) (*shipping.Record, error)
}

type parcelCreator interface {
	SignIn(ctx context.Context) (string, error)
	CreateParcel(ctx context.Context, token string, input carrier.ParcelInput) (*carrier.ParcelResult, error)
}

type labelRenderer interface {
	Render(ctx context.Context, w io.Writer, rec shipping.Record) error
}

// CreateParcel books the customer's delivery with the carrier. Dependency
// failures surface to the operator so a missed booking never goes unnoticed.
func CreateParcel(provider shippingRecordLookup, client parcelCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		customer := chi.URLParam(r, "customer")

		rec, err := provider.ForCustomer(r.Context(), orderID, customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := client.SignIn(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := client.CreateParcel(r.Context(), token, carrier.ParcelInput{
			CustomerName:   rec.FullName,
			CustomerPhone:  rec.Phone,
			Address:        rec.Address,
			ItemCount:      rec.ItemCount,
			CashCollection: rec.AmountDue(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetLabel renders the customer's shipping label PDF inline.
func GetLabel(provider shippingRecordLookup, renderer labelRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		customer := chi.URLParam(r, "customer")

		rec, err := provider.ForCustomer(r.Context(), orderID, customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline")
		if err := renderer.Render(r.Context(), w, *rec); err != nil {
			// headers already sent; log and abort the body
			logg.Error(logg.WithCustomer(r.Context(), customer), "label render failed", err)
		}
	}
}
