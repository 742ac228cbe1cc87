package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shipbee/backoffice/api/routes"
	"github.com/shipbee/backoffice/internal/carrier"
	"github.com/shipbee/backoffice/internal/fulfillment"
	"github.com/shipbee/backoffice/internal/labels"
	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/internal/shortener"
	"github.com/shipbee/backoffice/pkg/config"
	"github.com/shipbee/backoffice/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	store, err := orderstore.New(cfg.Store.DataDir, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open order store", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	shippingProvider, err := shipping.NewProvider(cfg.Shipping, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping provider", err)
		os.Exit(1)
	}

	carrierClient, err := carrier.NewClient(cfg.Carrier)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}

	shortenerClient, err := shortener.NewClient(cfg.Shortener.APIKey,
		shortener.WithBaseURL(cfg.Shortener.BaseURL),
		shortener.WithDomain(cfg.Shortener.Domain),
		shortener.WithHTTPClient(&http.Client{Timeout: cfg.Shortener.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shortener client", err)
		os.Exit(1)
	}

	labelGenerator, err := labels.NewGenerator(shortenerClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create label generator", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"data_dir": cfg.Store.DataDir,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Registry:    registry,
			Store:       store,
			Fulfillment: fulfillmentService,
			Shipping:    shippingProvider,
			Carrier:     carrierClient,
			Labels:      labelGenerator,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
