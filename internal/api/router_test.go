package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histocast/histocast/internal/api"
	"github.com/histocast/histocast/internal/api/handler"
	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/auth"
	"github.com/histocast/histocast/internal/forecast"
	"github.com/histocast/histocast/internal/provider/resilience"
	"github.com/histocast/histocast/internal/weather"
)

type fakePredictor struct {
	mu   sync.Mutex
	reqs []forecast.Request
	err  error
}

func (f *fakePredictor) Predict(ctx context.Context, req forecast.Request) (*forecast.Prediction, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &forecast.Prediction{
		Metadata: forecast.Metadata{
			Location:     weather.Location{Lat: req.Lat, Lon: req.Lon},
			TargetDate:   req.TargetDate.Format(time.DateOnly),
			EnsembleSize: 3,
			Components:   2,
			YearsUsed:    []int{2022, 2023, 2024},
			SamplesUsed:  15,
		},
		PrecipitationProbability: 0.1,
		Ensemble: []weather.Values{
			{Temperature: 21}, {Temperature: 22}, {Temperature: 23},
		},
	}
	p.Stats.Temperature = forecast.Summary{Mean: 22, Median: 22, P5: 21, P95: 23, Unit: "°C"}
	p.Stats.CloudCover.Mean = 10
	p.Stats.WindSpeed.Mean = 2
	p.Stats.Humidity.Mean = 50
	return p, nil
}

func (f *fakePredictor) last() forecast.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "histocast",
		Audience:   "histocast-api",
	})
}

func generateTestToken(t *testing.T, scopes ...string) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken("test-client", time.Hour, scopes...)
	require.NoError(t, err)
	return token
}

func newTestRouter(cfg api.RouterConfig) http.Handler {
	cfg.Version = "test"
	cfg.BuildTime = "2026-01-01T00:00:00Z"
	cfg.Logger = zerolog.New(io.Discard)
	if cfg.Predictor == nil {
		cfg.Predictor = &fakePredictor{}
	}
	return api.NewRouter(cfg)
}

func postPrediction(t *testing.T, router http.Handler, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	healthy := handler.DependencyCheck{Name: "history-cache", Check: func(context.Context) error { return nil }}
	failing := handler.DependencyCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("ready", func(t *testing.T) {
		router := newTestRouter(api.RouterConfig{Checks: []handler.DependencyCheck{healthy}})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("dependency down", func(t *testing.T) {
		router := newTestRouter(api.RouterConfig{Checks: []handler.DependencyCheck{healthy, failing}})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var health models.Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, "connection refused", health.Details["postgres"])
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register(resilience.NewClient(resilience.ClientConfig{Name: "nasa-power"}))

	router := newTestRouter(api.RouterConfig{
		Auth:     testJWTService(),
		Registry: registry,
		CacheStats: func() weather.CacheStats {
			return weather.CacheStats{Provider: "nasa-power", Hits: 4, Misses: 1}
		},
	})

	t.Run("requires token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("reports providers and cache", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+generateTestToken(t))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var status models.SystemStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, models.HealthStatusOK, status.Status)
		require.Len(t, status.Providers, 1)
		assert.Equal(t, "nasa-power", status.Providers[0].Provider)
		assert.Equal(t, "closed", status.Providers[0].CircuitState)
		require.NotNil(t, status.Cache)
		assert.Equal(t, int64(4), status.Cache.Hits)
	})
}

func TestRouter_CreatePrediction(t *testing.T) {
	predictor := &fakePredictor{}
	router := newTestRouter(api.RouterConfig{Predictor: predictor})

	w := postPrediction(t, router, `{
		"lat": 0, "lon": -0.1276, "date": "2026-07-15",
		"years_back": 10, "ensemble_size": 500, "seed": 7,
		"persona": "sun_lover", "include_ensemble": true
	}`, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req := predictor.last()
	assert.Equal(t, 0.0, req.Lat)
	assert.Equal(t, -0.1276, req.Lon)
	assert.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), req.TargetDate)
	assert.Equal(t, 10, req.YearsBack)
	assert.Equal(t, 500, req.EnsembleSize)
	assert.Equal(t, uint64(7), req.Seed)

	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-07-15", resp.Metadata.TargetDate)
	assert.Equal(t, 2, resp.Metadata.Components)
	assert.InDelta(t, 22.0, resp.Predictions.Temperature.Mean, 1e-9)
	assert.Equal(t, "clear", resp.Classification.Condition.String())
	assert.Contains(t, resp.Classification.Description, "Great news! Sunny skies ahead!")
	assert.Len(t, resp.Ensemble, 3)
}

func TestRouter_CreatePrediction_OmitsEnsembleByDefault(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	w := postPrediction(t, router, `{"lat": 52.1, "lon": 5.1, "date": "2026-07-15"}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "ensemble")
	assert.Contains(t, raw, "classification")
}

func TestRouter_CreatePrediction_Validation(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing lat", `{"lon": 5, "date": "2026-07-15"}`, "lat"},
		{"lat out of range", `{"lat": 91, "lon": 5, "date": "2026-07-15"}`, "lat"},
		{"lon out of range", `{"lat": 50, "lon": -181, "date": "2026-07-15"}`, "lon"},
		{"bad date", `{"lat": 50, "lon": 5, "date": "15/07/2026"}`, "date"},
		{"ensemble too large", `{"lat": 50, "lon": 5, "date": "2026-07-15", "ensemble_size": 200000}`, "ensemble_size"},
		{"threshold above one", `{"lat": 50, "lon": 5, "date": "2026-07-15", "variance_threshold": 1.5}`, "variance_threshold"},
		{"unknown persona", `{"lat": 50, "lon": 5, "date": "2026-07-15", "persona": "storm_chaser"}`, "persona"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postPrediction(t, router, tt.body, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			require.NotEmpty(t, p.Errors)
			assert.Equal(t, tt.field, p.Errors[0].Field)
		})
	}
}

func TestRouter_CreatePrediction_MalformedBody(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	for _, body := range []string{``, `not json`, `{"lat": 1, "lon": 2, "date": "2026-07-15", "extra": true}`} {
		w := postPrediction(t, router, body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestRouter_CreatePrediction_UnsupportedMediaType(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewBufferString(`lat=1`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_CreatePrediction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid request", fmt.Errorf("%w: fetch window must be between day window and 30", forecast.ErrInvalidRequest), http.StatusBadRequest},
		{"target not past", forecast.ErrTargetNotPast, http.StatusBadRequest},
		{"alignment empty", forecast.ErrAlignmentEmpty, http.StatusUnprocessableEntity},
		{"insufficient data", forecast.ErrInsufficientData, http.StatusUnprocessableEntity},
		{"data unavailable", forecast.ErrDataUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", errors.New("eigendecomposition did not converge"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(api.RouterConfig{Predictor: &fakePredictor{err: tt.err}})

			w := postPrediction(t, router, `{"lat": 50, "lon": 5, "date": "2026-07-15"}`, "")

			assert.Equal(t, tt.status, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "/v1/predictions", p.Instance)
			assert.NotEmpty(t, p.TraceID)
		})
	}
}

func TestRouter_CreatePrediction_Auth(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Auth: testJWTService()})
	body := `{"lat": 50, "lon": 5, "date": "2026-07-15"}`

	w := postPrediction(t, router, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postPrediction(t, router, body, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postPrediction(t, router, body, generateTestToken(t, "status"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postPrediction(t, router, body, generateTestToken(t))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CreatePrediction_RateLimited(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		RateLimit: middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute},
	})
	body := `{"lat": 50, "lon": 5, "date": "2026-07-15"}`

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postPrediction(t, router, body, "").Code)
	}

	w := postPrediction(t, router, body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ProblemTypeNotFound, decodeProblem(t, w).Type)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(api.RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "histocast_prediction_duration_seconds")
}
