package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/api/middleware"
	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/api/response"
	"github.com/histocast/histocast/internal/classify"
	"github.com/histocast/histocast/internal/forecast"
)

// maxPredictionBody caps the request body size.
const maxPredictionBody = 64 << 10

// Predictor runs forecasts. *forecast.Predictor implements it.
type Predictor interface {
	Predict(ctx context.Context, req forecast.Request) (*forecast.Prediction, error)
}

// PredictionHandlerConfig holds configuration for the prediction handler.
type PredictionHandlerConfig struct {
	Predictor Predictor
	Logger    zerolog.Logger

	// Timeout bounds a single prediction. Zero means no timeout beyond the request's.
	Timeout time.Duration
}

// PredictionHandler handles forecast requests.
type PredictionHandler struct {
	predictor Predictor
	logger    zerolog.Logger
	timeout   time.Duration
	validate  *validator.Validate
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(cfg PredictionHandlerConfig) *PredictionHandler {
	return &PredictionHandler{
		predictor: cfg.Predictor,
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
		validate:  newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CreatePrediction handles POST /v1/predictions.
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var body models.PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictionBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		detail := "request body must be a JSON object"
		if !errors.Is(err, io.EOF) {
			detail = fmt.Sprintf("invalid request body: %v", err)
		}
		response.BadRequest(w, r, detail, nil)
		return
	}

	if err := h.validate.Struct(&body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.BadRequest(w, r, "request validation failed", fieldErrors(verrs))
			return
		}
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	req, err := body.ForecastRequest()
	if err != nil {
		response.BadRequest(w, r, "date must be YYYY-MM-DD", nil)
		return
	}

	persona, err := classify.ParsePersona(body.Persona)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	pred, err := h.predictor.Predict(ctx, req)
	if err != nil {
		h.writePredictionError(w, r, err)
		return
	}

	report := classify.Build(pred, persona)

	h.logger.Debug().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("client", middleware.GetClientID(r.Context())).
		Str("condition", report.Condition.String()).
		Int("components", pred.Metadata.Components).
		Msg("prediction served")

	response.JSON(w, r, http.StatusOK, models.NewPredictionResponse(pred, report, body.IncludeEnsemble))
}

// writePredictionError maps forecast errors to problem responses.
func (h *PredictionHandler) writePredictionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidRequest), errors.Is(err, forecast.ErrTargetNotPast):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, forecast.ErrAlignmentEmpty), errors.Is(err, forecast.ErrInsufficientData):
		response.InsufficientData(w, r, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(w, r, "prediction did not complete in time")
	case errors.Is(err, forecast.ErrDataUnavailable):
		response.ServiceUnavailable(w, r, "historical weather data is unavailable")
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("prediction failed")
		response.InternalError(w, r, "prediction failed")
	}
}

func fieldErrors(verrs validator.ValidationErrors) []models.FieldError {
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
