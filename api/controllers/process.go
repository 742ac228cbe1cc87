package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/api/validators"
	"github.com/shipbee/backoffice/internal/fulfillment"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

const (
	maxUploadBytes   = 64 << 20 // whole multipart form
	maxCartFileBytes = 8 << 20  // single cart snapshot
)

// ProcessOrder ingests the multipart cart upload and runs the fulfillment
// pipeline. The form carries three parallel arrays: files, customer_names,
// and optional oos_counts (defaulting to zero).
func ProcessOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["files"]
		names := r.MultipartForm.Value["customer_names"]
		oosCounts := r.MultipartForm.Value["oos_counts"]

		if len(files) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one cart file is required"))
			return
		}
		if len(names) != len(files) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "customer_names must match files").
				WithDetails(map[string]int{"files": len(files), "customer_names": len(names)}))
			return
		}
		if len(oosCounts) != 0 && len(oosCounts) != len(files) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "oos_counts must match files").
				WithDetails(map[string]int{"files": len(files), "oos_counts": len(oosCounts)}))
			return
		}

		carts := make([]fulfillment.CustomerCart, 0, len(files))
		for i, header := range files {
			markup, err := readCartFile(header)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			oos := 0
			if len(oosCounts) > 0 {
				oos, err = strconv.Atoi(oosCounts[i])
				if err != nil || oos < 0 {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "oos_counts must be non-negative integers"))
					return
				}
			}

			carts = append(carts, fulfillment.CustomerCart{
				Customer:   validators.SanitizeString(names[i], 256),
				Markup:     markup,
				OutOfStock: oos,
			})
		}

		result, err := svc.ProcessCarts(r.Context(), orderID, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func readCartFile(header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open cart file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxCartFileBytes+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read cart file")
	}
	if len(data) > maxCartFileBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart file too large")
	}
	return string(data), nil
}
