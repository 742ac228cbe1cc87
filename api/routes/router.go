package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shipbee/backoffice/api/controllers"
	"github.com/shipbee/backoffice/api/middleware"
	"github.com/shipbee/backoffice/internal/carrier"
	"github.com/shipbee/backoffice/internal/fulfillment"
	"github.com/shipbee/backoffice/internal/labels"
	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/pkg/config"
	"github.com/shipbee/backoffice/pkg/logger"
	"github.com/shipbee/backoffice/pkg/metrics"
)

// Deps carries everything the HTTP surface is wired with.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Registry    *prometheus.Registry
	Store       *orderstore.Store
	Fulfillment fulfillment.Service
	Shipping    *shipping.Provider
	Carrier     *carrier.Client
	Labels      *labels.Generator
}

// NewRouter assembles the operator API. Everything under /api/v1 sits behind
// basic auth; /health and /metrics stay open for probes and scrapers.
func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	httpMetrics := metrics.NewHTTPMetrics(deps.Registry)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BasicAuth(cfg.Auth, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Store, logg))
			r.Get("/archived", controllers.ListArchivedOrders(deps.Store, logg))

			r.Route("/{orderID}", func(r chi.Router) {
				r.Post("/process", controllers.ProcessOrder(deps.Fulfillment, logg))
				r.Post("/status", controllers.SetOrderStatus(deps.Store, logg))
				r.Post("/rename", controllers.RenameOrder(deps.Store, logg))
				r.Post("/archive", controllers.ArchiveOrder(deps.Store, logg))
				r.Post("/unarchive", controllers.UnarchiveOrder(deps.Store, logg))
				r.Delete("/", controllers.DeleteOrder(deps.Store, logg))

				r.Get("/customers", controllers.ListCustomers(deps.Store, deps.Shipping, logg))
				r.Get("/merged.pdf", controllers.DownloadMergedPDF(deps.Store, logg))
				r.Get("/customers/{key}/report.pdf", controllers.DownloadCustomerPDF(deps.Store, logg))
				r.Get("/skus", controllers.ListSKUs(deps.Store, logg))

				r.Post("/labels/{customer}/parcel", controllers.CreateParcel(deps.Shipping, deps.Carrier, logg))
				r.Get("/labels/{customer}", controllers.GetLabel(deps.Shipping, deps.Labels, logg))
			})
		})

		r.Post("/shipping/refresh", controllers.RefreshShipping(deps.Shipping, logg))
	})

	return r
}
