package controllers

import (
	"context"
	"net/http"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/pkg/logger"
)

type shippingRefresher interface {
	Refresh(ctx context.Context) error
}

// RefreshShipping forces a spreadsheet re-fetch ahead of the cache TTL.
func RefreshShipping(provider shippingRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := provider.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "refreshed"})
	}
}
