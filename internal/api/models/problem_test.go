package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histocast/histocast/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	fieldErrors := []models.FieldError{
		{Field: "lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"},
		{Field: "date", Message: "required", Code: "REQUIRED"},
	}

	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/predictions").
		WithErrors(fieldErrors)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/predictions", p.Instance)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "ensemble_size", Message: "must be at most 100000"},
	})
	p.Instance = "/v1/predictions"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/predictions", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ensemble_size", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		build  func(traceID, detail string) *models.Problem
		typ    string
		title  string
		status int
	}{
		{"unauthorized", models.NewUnauthorized, models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{"forbidden", models.NewForbidden, models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden},
		{"not found", models.NewNotFound, models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"media type", models.NewUnsupportedMediaType, models.ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType},
		{"insufficient data", models.NewInsufficientData, models.ProblemTypeInsufficientData, "Insufficient historical data", http.StatusUnprocessableEntity},
		{"too many requests", models.NewTooManyRequests, models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError, models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable, models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
		{"timeout", models.NewGatewayTimeout, models.ProblemTypeTimeout, "Timeout", http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.build("req_123", "detail text")
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "detail text", p.Detail)
			assert.Equal(t, "req_123", p.TraceID)
		})
	}
}
