package response_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/api/response"
)

// requestWithContext returns a request whose context carries a request ID,
// as if it had passed through the RequestID middleware.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/ops/health")

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "OK"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "OK"})

	if got := rec.Header().Get("X-Request-Id"); got != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", got)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestBadRequest_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/predictions")

	response.BadRequest(rec, req, "validation failed", []models.FieldError{
		{Field: "lat", Message: "is required"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}
	if problem.TraceID == "" {
		t.Error("expected traceId to be set in Problem response")
	}
	if problem.Instance != "/v1/predictions" {
		t.Errorf("expected instance /v1/predictions, got %q", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "lat" {
		t.Errorf("expected one field error for lat, got %+v", problem.Errors)
	}
}

func TestProblemResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
	}{
		{"not found", response.NotFound, http.StatusNotFound},
		{"insufficient data", response.InsufficientData, http.StatusUnprocessableEntity},
		{"internal error", response.InternalError, http.StatusInternalServerError},
		{"service unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable},
		{"gateway timeout", response.GatewayTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodPost, "/v1/predictions")

			tt.write(rec, req, "detail")

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem content type, got %q", ct)
			}

			var problem models.Problem
			if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
				t.Fatalf("failed to decode Problem response: %v", err)
			}
			if problem.Status != tt.status {
				t.Errorf("expected problem status %d, got %d", tt.status, problem.Status)
			}
			if problem.TraceID == "" {
				t.Error("expected traceId to be set")
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := middleware.GetRequestID(processedReq.Context()); got != "client-request-123" {
		t.Errorf("expected client request ID to be preserved, got %q", got)
	}

	rec := httptest.NewRecorder()
	response.JSON(rec, processedReq, http.StatusOK, map[string]string{"status": "ok"})

	if got := rec.Header().Get("X-Request-Id"); got != "client-request-123" {
		t.Errorf("expected response X-Request-Id to match client's, got %q", got)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if got := middleware.GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty request ID for background context, got %q", got)
	}
}
