package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/histocast/histocast/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// PredictionRateLimit is the default limit for prediction requests. Each
// prediction may fan out to many upstream history fetches.
var PredictionRateLimit = RateLimitConfig{
	RequestLimit: 30,
	WindowLength: time.Minute,
}

// RateLimitByIP limits requests per client IP. Run chi's RealIP middleware
// first so proxies are accounted for.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

// RateLimitByClient limits requests per authenticated API client, falling
// back to the client IP for anonymous requests.
func RateLimitByClient(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByClientOrIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

func keyByClientOrIP(r *http.Request) (string, error) {
	if client := GetClientID(r.Context()); client != "" {
		return "client:" + client, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitHandler writes an RFC7807 problem when the limit is exceeded.
func limitHandler(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
