// Package main provides the entrypoint for the histocast background worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/api/handler"
	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/api/response"
	"github.com/histocast/histocast/internal/bootstrap"
	"github.com/histocast/histocast/internal/config"
	"github.com/histocast/histocast/internal/telemetry"
	"github.com/histocast/histocast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "histocast-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting histocast worker")

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.PubSubProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize forecast pipeline")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer components.Close()

	// Prefetched windows must match what the predictor requests by default.
	defaults := components.Predictor.Defaults()
	prefetch := worker.NewPrefetchJob(worker.PrefetchJobConfig{
		Config: worker.PrefetchConfig{
			YearsBack:  defaults.YearsBack,
			HalfWindow: defaults.DayWindow,
		},
		Source: components.History,
		Logger: log,
	})

	processor := worker.NewProcessor(worker.ProcessorConfig{
		Prefetch:  prefetch,
		Predictor: components.Predictor,
		Source:    components.History,
		Logger:    log,
	})

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubSubscription,
		Processor:        processor,
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		os.Exit(1)
	}
	defer func() {
		if err := pubsubHandler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	// Cloud Run requires the worker to serve HTTP.
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Registry:   components.Registry,
		Checks:     components.Checks(),
		CacheStats: components.History.CacheStats,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.Timeout(10 * time.Second))
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, prefetch.MetricsSnapshot())
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- pubsubHandler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
