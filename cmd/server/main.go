package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/cache"
	httpapi "github.com/couchcryptid/xanthos-vis-service/internal/adapter/http"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/xanthos-vis-service/internal/adapter/kafka"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/mapbox"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/reference"
	"github.com/couchcryptid/xanthos-vis-service/internal/config"
	"github.com/couchcryptid/xanthos-vis-service/internal/dashboard"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
	"github.com/couchcryptid/xanthos-vis-service/internal/pipeline"
)

// readiness is ready when every checker is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	catalog, err := reference.Load(cfg.ReferenceCSV, cfg.BasinGeoJSON, cfg.CountryGeoJSON)
	if err != nil {
		logger.Error("failed to load reference catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("reference catalog loaded", "cells", catalog.Len())

	// Geocoder is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	store := cache.NewDatasetStore(cfg.DatasetCacheSize, cfg.DatasetTTL, nil, metrics)
	svc := dashboard.NewService(catalog, store, dashboard.Options{
		Geocoder:        geocoder,
		GriddedRowLimit: cfg.GriddedRowLimit,
	}, metrics, logger)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.SetupRouter(svc, httpapi.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MapStyle:       cfg.MapStyle,
		MapboxToken:    cfg.MapboxToken,
	}, metrics, logger)

	ready := readiness{svc}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, cfg.ExportDataDir, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = append(ready, p)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("export pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka export pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, router, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
