package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/metrics"
)

// Provider defines the interface for historical weather data providers.
type Provider interface {
	// FetchHourly fetches hourly observations for a location between start and end (inclusive days).
	FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (*HourlySeries, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the history service.
type ServiceConfig struct {
	// Provider is the upstream historical data provider.
	Provider Provider

	// Repository stores fetched windows. If nil, an in-memory repository is used.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a stored window is served without refetching (default: 7 days).
	// Reanalysis data is occasionally revised, so windows are not kept forever.
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.01).
	// Points within the same grid cell share cached windows.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale windows on provider errors (default: 30 days).
	StaleIfErrorTTL time.Duration
}

// Service provides historical hourly observations with caching.
type Service struct {
	provider        Provider
	repo            Repository
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	stale  atomic.Int64
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 7 * 24 * time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.01 // ~1km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * 24 * time.Hour
	}

	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}

	return &Service{
		provider:        cfg.Provider,
		repo:            repo,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// Name returns the upstream provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// FetchHourly returns hourly observations for a location and day range.
// Uses a stored window if available and not expired.
func (s *Service) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (*HourlySeries, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	key := s.windowKey(lat, lon, start, end)

	cached, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrWindowNotFound) {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("history repository lookup failed")
	}
	if cached != nil && time.Now().Before(cached.FetchedAt.Add(s.cacheTTL)) {
		s.hits.Add(1)
		metrics.HistoryCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}

	s.misses.Add(1)
	metrics.HistoryCacheLookups.WithLabelValues("miss").Inc()

	return s.fetch(ctx, lat, lon, start, end, key, cached)
}

// fetch calls the provider and stores the result.
func (s *Service) fetch(ctx context.Context, lat, lon float64, start, end time.Time, key WindowKey, cached *HourlySeries) (*HourlySeries, error) {
	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Time("start", start).
		Time("end", end).
		Str("provider", s.provider.Name()).
		Msg("fetching history from provider")

	began := time.Now()
	series, err := s.provider.FetchHourly(ctx, lat, lon, start, end)
	metrics.HistoryFetchLatency.WithLabelValues(s.provider.Name()).Observe(time.Since(began).Seconds())
	if err != nil {
		metrics.HistoryFetchesTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Time("start", start).
			Msg("failed to fetch history")

		if cached != nil && time.Now().Before(cached.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.stale.Add(1)
			metrics.HistoryCacheLookups.WithLabelValues("stale").Inc()
			s.logger.Warn().
				Time("fetched_at", cached.FetchedAt).
				Msg("serving stale history window due to provider error")
			return cached, nil
		}

		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	metrics.HistoryFetchesTotal.WithLabelValues(s.provider.Name(), "ok").Inc()

	if series.FetchedAt.IsZero() {
		series.FetchedAt = time.Now()
	}

	if err := s.repo.Put(ctx, key, series); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("failed to store history window")
	}

	return series, nil
}

// windowKey generates a cache key for a location and range.
// Groups nearby points into grid cells to reduce API calls.
func (s *Service) windowKey(lat, lon float64, start, end time.Time) WindowKey {
	return WindowKey{
		GridLat: math.Floor(lat/s.cacheGridSize) * s.cacheGridSize,
		GridLon: math.Floor(lon/s.cacheGridSize) * s.cacheGridSize,
		Start:   truncateDay(start),
		End:     truncateDay(end),
	}
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Stale:    s.stale.Load(),
		Provider: s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Stale    int64
	Provider string
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
