package controllers

import (
	"net/http"
	"os"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/pkg/config"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backoffice-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady additionally checks that the order data directory is reachable,
// the only dependency the service cannot run without.
func HealthReady(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backoffice-Env", cfg.App.Env)

		if _, err := os.Stat(cfg.Store.DataDir); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "data directory unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
