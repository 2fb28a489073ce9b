// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/database"
	"github.com/histocast/histocast/internal/forecast"
)

// History cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CachePostgres = "postgres"
)

// Config is the full process configuration shared by the binaries.
type Config struct {
	Port        string
	Environment string

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// HistoryCache selects the history window repository: none, memory or postgres.
	HistoryCache    string
	CacheTTL        time.Duration
	StaleIfErrorTTL time.Duration

	POWERBaseURL      string
	POWERTimeStandard string
	POWERTimeout      time.Duration

	Forecast forecast.Config

	PredictionTimeout time.Duration

	// RateLimit is the number of prediction requests allowed per client IP per minute.
	RateLimit int

	PubSubProjectID    string
	PubSubSubscription string

	Database database.Config
}

// Load reads an optional .env file and then the environment, applying defaults.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info().Err(err).Msg("no .env file loaded")
	}

	p := &parser{}
	cfg := &Config{
		Port:        getenvDefault("APP_PORT", "8080"),
		Environment: getenvDefault("APP_ENV", "development"),

		OTelEnabled:     p.bool("OTEL_ENABLED", false),
		OTLPEndpoint:    getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: p.float("OTEL_SAMPLE_RATIO", 1),

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     getenvDefault("JWT_ISSUER", "histocast"),
		JWTAudience:   getenvDefault("JWT_AUDIENCE", "histocast-api"),

		HistoryCache:    strings.ToLower(getenvDefault("HISTORY_CACHE", CacheMemory)),
		CacheTTL:        p.duration("HISTORY_CACHE_TTL", 7*24*time.Hour),
		StaleIfErrorTTL: p.duration("HISTORY_STALE_IF_ERROR_TTL", 30*24*time.Hour),

		POWERBaseURL:      getenvDefault("POWER_BASE_URL", "https://power.larc.nasa.gov"),
		POWERTimeStandard: strings.ToUpper(getenvDefault("POWER_TIME_STANDARD", "LST")),
		POWERTimeout:      p.duration("POWER_TIMEOUT", 30*time.Second),

		Forecast: forecast.Config{
			YearsBack:         p.int("FORECAST_YEARS_BACK", forecast.DefaultYearsBack),
			EnsembleSize:      p.int("FORECAST_ENSEMBLE_SIZE", forecast.DefaultEnsembleSize),
			DayWindow:         p.int("FORECAST_DAY_WINDOW", forecast.DefaultDayWindow),
			VarianceThreshold: p.float("FORECAST_VARIANCE_THRESHOLD", forecast.DefaultVarianceThreshold),
			Seed:              p.uint("FORECAST_SEED", forecast.DefaultSeed),
			Concurrency:       p.int("FORECAST_CONCURRENCY", forecast.DefaultConcurrency),
		},

		PredictionTimeout: p.duration("PREDICTION_TIMEOUT", 2*time.Minute),
		RateLimit:         p.int("RATE_LIMIT_PER_MINUTE", 30),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getenvDefault("PUBSUB_SUBSCRIPTION", "histocast-jobs"),

		Database: database.ConfigFromEnv(),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.HistoryCache {
	case CacheNone, CacheMemory, CachePostgres:
	default:
		return fmt.Errorf("invalid HISTORY_CACHE %q: want none, memory or postgres", c.HistoryCache)
	}
	switch c.POWERTimeStandard {
	case "LST", "UTC":
	default:
		return fmt.Errorf("invalid POWER_TIME_STANDARD %q: want LST or UTC", c.POWERTimeStandard)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATIO %v: want [0, 1]", c.OTelSampleRatio)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %d", c.RateLimit)
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether API token validation is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSigningKey != ""
}

// parser records the first malformed value it sees.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) uint(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
