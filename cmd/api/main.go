// Package main provides the entrypoint for the histocast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/api"
	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/auth"
	"github.com/histocast/histocast/internal/bootstrap"
	"github.com/histocast/histocast/internal/config"
	"github.com/histocast/histocast/internal/telemetry"
	"github.com/histocast/histocast/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "histocast-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting histocast API")

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize forecast pipeline")
		os.Exit(1)
	}
	defer components.Close()

	var validator middleware.TokenValidator
	if cfg.AuthEnabled() {
		validator = auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
		})
		log.Info().Msg("API token authentication enabled")
	} else if cfg.IsProduction() {
		log.Warn().Msg("JWT_SIGNING_KEY not set - prediction API is open")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		ServiceName:       serviceName,
		Logger:            log,
		Metrics:           metrics,
		Predictor:         components.Predictor,
		PredictionTimeout: cfg.PredictionTimeout,
		Auth:              validator,
		RateLimit: middleware.RateLimitConfig{
			RequestLimit: cfg.RateLimit,
			WindowLength: time.Minute,
		},
		Registry:   components.Registry,
		Checks:     components.Checks(),
		CacheStats: components.History.CacheStats,
		RequireTLS: cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Cold predictions fan out to many upstream fetches.
		WriteTimeout: cfg.PredictionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Prune history windows that can no longer be served even as stale.
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go pruneHistory(pruneCtx, components.Repository, cfg.StaleIfErrorTTL, log)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func pruneHistory(ctx context.Context, repo weather.Repository, maxAge time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteFetchedBefore(ctx, time.Now().Add(-maxAge))
			if err != nil {
				log.Warn().Err(err).Msg("history prune failed")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("pruned history windows")
			}
		}
	}
}
