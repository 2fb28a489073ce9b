// Package api provides the HTTP API for histocast.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/api/handler"
	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/api/response"
	"github.com/histocast/histocast/internal/auth"
	"github.com/histocast/histocast/internal/provider/resilience"
	"github.com/histocast/histocast/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	// Predictor serves POST /v1/predictions (required).
	Predictor         handler.Predictor
	PredictionTimeout time.Duration

	// Auth validates bearer tokens. When nil the API is open.
	Auth middleware.TokenValidator

	// RateLimit applies to prediction requests (default: middleware.PredictionRateLimit).
	RateLimit middleware.RateLimitConfig

	Registry   *resilience.Registry
	Checks     []handler.DependencyCheck
	CacheStats func() weather.CacheStats

	RequireTLS bool

	// MetricsHandler serves GET /metrics (default: promhttp.Handler()).
	MetricsHandler http.Handler
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "histocast-api"
	}
	rateLimit := cfg.RateLimit
	if rateLimit.RequestLimit == 0 {
		rateLimit = middleware.PredictionRateLimit
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewProblem(
			models.ProblemTypeNotFound,
			"Method not allowed",
			http.StatusMethodNotAllowed,
			middleware.GetRequestID(r.Context()),
		).WithDetail(r.Method+" is not supported on "+r.URL.Path))
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Registry:   cfg.Registry,
		Checks:     cfg.Checks,
		CacheStats: cfg.CacheStats,
	})
	predictionHandler := handler.NewPredictionHandler(handler.PredictionHandlerConfig{
		Predictor: cfg.Predictor,
		Logger:    cfg.Logger,
		Timeout:   cfg.PredictionTimeout,
	})

	requireToken := func(scope string) func(http.Handler) http.Handler {
		if cfg.Auth == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.Auth(cfg.Auth, scope)
	}

	r.Handle("/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(requireToken("")).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/predictions", func(r chi.Router) {
			r.Use(requireToken(auth.ScopePredict))
			r.Use(middleware.RateLimitByClient(rateLimit))
			r.Use(middleware.RequireJSON)
			r.Post("/", predictionHandler.CreatePrediction)
		})
	})

	return r
}
