// Package bootstrap assembles the history and forecasting components shared
// by the histocast binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/api/handler"
	"github.com/histocast/histocast/internal/config"
	"github.com/histocast/histocast/internal/database"
	"github.com/histocast/histocast/internal/forecast"
	"github.com/histocast/histocast/internal/provider/resilience"
	"github.com/histocast/histocast/internal/weather"
	"github.com/histocast/histocast/internal/weather/power"
)

// Components are the wired runtime dependencies.
type Components struct {
	Registry   *resilience.Registry
	Repository weather.Repository
	History    *weather.Service
	Predictor  *forecast.Predictor

	// Pool is set only when the history cache is Postgres-backed.
	Pool *pgxpool.Pool
}

// Build connects the history cache selected by cfg, the POWER client and the
// predictor.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{Registry: resilience.NewRegistry()}

	var repo weather.Repository
	switch cfg.HistoryCache {
	case config.CachePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		c.Pool = pool
		repo = weather.NewPostgresRepository(pool)
	case config.CacheNone:
		repo = weather.NopRepository{}
	default:
		repo = weather.NewInMemoryRepository()
	}

	rc := resilience.DefaultClientConfig(power.ProviderName)
	rc.Timeout = cfg.POWERTimeout
	rc.Logger = logger
	httpClient := resilience.NewClient(rc)
	c.Registry.Register(httpClient)

	provider := power.NewClient(power.ClientConfig{
		BaseURL:      cfg.POWERBaseURL,
		TimeStandard: cfg.POWERTimeStandard,
		HTTPClient:   httpClient,
		Logger:       logger,
	})

	c.Repository = repo
	c.History = weather.NewService(weather.ServiceConfig{
		Provider:        provider,
		Repository:      repo,
		Logger:          logger,
		CacheTTL:        cfg.CacheTTL,
		StaleIfErrorTTL: cfg.StaleIfErrorTTL,
	})

	fc := cfg.Forecast
	fc.Source = c.History
	fc.Logger = logger
	c.Predictor = forecast.NewPredictor(fc)

	logger.Info().
		Str("history_cache", cfg.HistoryCache).
		Str("time_standard", cfg.POWERTimeStandard).
		Msg("forecast pipeline initialized")

	return c, nil
}

// Checks returns the readiness checks for the wired dependencies.
func (c *Components) Checks() []handler.DependencyCheck {
	if c.Pool == nil {
		return nil
	}
	return []handler.DependencyCheck{
		{Name: "postgres", Check: c.Pool.Ping},
	}
}

// Close releases the database pool, if any.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
