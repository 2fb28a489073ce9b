package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/histocast/histocast/internal/metrics"
	"github.com/histocast/histocast/internal/telemetry"
	"github.com/histocast/histocast/internal/weather"
)

const tracerName = "github.com/histocast/histocast/internal/forecast"

// Config holds configuration for the predictor. Zero values take the
// package defaults.
type Config struct {
	// Source supplies hourly history (required).
	Source Source

	// Logger for predictor operations.
	Logger zerolog.Logger

	YearsBack         int
	EnsembleSize      int
	DayWindow         int
	VarianceThreshold float64
	Seed              uint64

	// AlphaYear is the year-distance decay rate (default: 0.5).
	AlphaYear float64

	// AlphaDay is the day-of-year distance decay rate (default: 0.2).
	AlphaDay float64

	// Concurrency bounds the number of in-flight history fetches (default: 8).
	Concurrency int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Predictor runs the forecasting pipeline.
type Predictor struct {
	source Source
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time

	defaults  Request
	alphaYear float64
	alphaDay  float64
	workers   int
}

// NewPredictor creates a new predictor.
func NewPredictor(cfg Config) *Predictor {
	defaults := Request{
		YearsBack:         cfg.YearsBack,
		EnsembleSize:      cfg.EnsembleSize,
		DayWindow:         cfg.DayWindow,
		VarianceThreshold: cfg.VarianceThreshold,
		Seed:              cfg.Seed,
	}
	if defaults.YearsBack == 0 {
		defaults.YearsBack = DefaultYearsBack
	}
	if defaults.EnsembleSize == 0 {
		defaults.EnsembleSize = DefaultEnsembleSize
	}
	if defaults.DayWindow == 0 {
		defaults.DayWindow = DefaultDayWindow
	}
	if defaults.VarianceThreshold == 0 {
		defaults.VarianceThreshold = DefaultVarianceThreshold
	}
	if defaults.Seed == 0 {
		defaults.Seed = DefaultSeed
	}

	alphaYear := cfg.AlphaYear
	if alphaYear == 0 {
		alphaYear = DefaultAlphaYear
	}
	alphaDay := cfg.AlphaDay
	if alphaDay == 0 {
		alphaDay = DefaultAlphaDay
	}
	workers := cfg.Concurrency
	if workers == 0 {
		workers = DefaultConcurrency
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Predictor{
		source:    cfg.Source,
		logger:    cfg.Logger,
		tracer:    telemetry.Tracer(tracerName),
		now:       now,
		defaults:  defaults,
		alphaYear: alphaYear,
		alphaDay:  alphaDay,
		workers:   workers,
	}
}

// Defaults returns the request defaults applied to zero-valued fields.
func (p *Predictor) Defaults() Request {
	return p.defaults
}

// Normalize fills zero-valued request fields from the predictor defaults
// and validates the result.
func (p *Predictor) Normalize(req Request) (Request, error) {
	if req.YearsBack == 0 {
		req.YearsBack = p.defaults.YearsBack
	}
	if req.EnsembleSize == 0 {
		req.EnsembleSize = p.defaults.EnsembleSize
	}
	if req.DayWindow == 0 {
		req.DayWindow = p.defaults.DayWindow
	}
	if req.FetchWindow == 0 {
		req.FetchWindow = req.DayWindow
	}
	if req.VarianceThreshold == 0 {
		req.VarianceThreshold = p.defaults.VarianceThreshold
	}
	if req.Seed == 0 {
		req.Seed = p.defaults.Seed
	}

	if err := weather.ValidateCoordinates(req.Lat, req.Lon); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.TargetDate.IsZero() {
		return req, fmt.Errorf("%w: target date is required", ErrInvalidRequest)
	}
	if req.YearsBack < 1 || req.YearsBack > maxYearsBack {
		return req, fmt.Errorf("%w: years back must be between 1 and %d", ErrInvalidRequest, maxYearsBack)
	}
	if req.EnsembleSize < 1 || req.EnsembleSize > maxEnsembleSize {
		return req, fmt.Errorf("%w: ensemble size must be between 1 and %d", ErrInvalidRequest, maxEnsembleSize)
	}
	if req.DayWindow < 1 || req.DayWindow > maxDayWindow {
		return req, fmt.Errorf("%w: day window must be between 1 and %d", ErrInvalidRequest, maxDayWindow)
	}
	if req.FetchWindow < req.DayWindow || req.FetchWindow > 2*maxDayWindow {
		return req, fmt.Errorf("%w: fetch window must be between day window and %d", ErrInvalidRequest, 2*maxDayWindow)
	}
	if req.VarianceThreshold <= 0 || req.VarianceThreshold > 1 {
		return req, fmt.Errorf("%w: variance threshold must be in (0, 1]", ErrInvalidRequest)
	}

	if req.IncludeTargetYear {
		today := truncateDay(p.now())
		if !truncateDay(req.TargetDate).Before(today) {
			return req, ErrTargetNotPast
		}
	}

	return req, nil
}

// Predict runs the full pipeline for one request.
func (p *Predictor) Predict(ctx context.Context, req Request) (pred *Prediction, err error) {
	began := time.Now()
	defer func() {
		metrics.PredictionDuration.Observe(time.Since(began).Seconds())
		metrics.PredictionsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	req, err = p.Normalize(req)
	if err != nil {
		return nil, err
	}

	target := truncateDay(req.TargetDate)
	endYear := target.Year() - 1
	if req.IncludeTargetYear {
		endYear = target.Year()
	}

	ctx, span := p.tracer.Start(ctx, "forecast.Predict", trace.WithAttributes(
		attribute.Float64("forecast.lat", req.Lat),
		attribute.Float64("forecast.lon", req.Lon),
		attribute.String("forecast.target_date", target.Format(time.DateOnly)),
		attribute.Int("forecast.years_back", req.YearsBack),
		attribute.Int("forecast.ensemble_size", req.EnsembleSize),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	logger := p.logger.With().
		Float64("lat", req.Lat).
		Float64("lon", req.Lon).
		Str("target_date", target.Format(time.DateOnly)).
		Logger()

	fetchCtx, fetchSpan := p.tracer.Start(ctx, "forecast.FetchYears")
	windows, dropped, err := FetchYears(fetchCtx, p.source, FetchPlan{
		Lat:         req.Lat,
		Lon:         req.Lon,
		Month:       target.Month(),
		Day:         target.Day(),
		EndYear:     endYear,
		YearsBack:   req.YearsBack,
		HalfWindow:  req.FetchWindow,
		Concurrency: p.workers,
	}, logger)
	fetchSpan.SetAttributes(attribute.Int("forecast.years_dropped", len(dropped)))
	telemetry.EndSpan(fetchSpan, err)
	if err != nil {
		return nil, err
	}

	agg, err := AlignDaily(windows, logger)
	if err != nil {
		return nil, err
	}

	sv, err := BuildStateVectors(agg, req.DayWindow)
	if err != nil {
		return nil, err
	}

	yearW := YearWeights(sv.Years, target.Year(), p.alphaYear)
	dayW := DayWeights(CenterDOYs(target, sv.Centers), target.YearDay(), p.alphaDay)
	weights := CombineWeights(yearW, dayW)

	_, pcaSpan := p.tracer.Start(ctx, "forecast.FitPCA")
	basis, err := FitPCA(sv.Rows(), weights, req.VarianceThreshold)
	if basis != nil {
		pcaSpan.SetAttributes(
			attribute.Int("forecast.components", basis.K()),
			attribute.Int("forecast.state_dim", basis.Dim()),
		)
	}
	telemetry.EndSpan(pcaSpan, err)
	if err != nil {
		return nil, err
	}
	metrics.PrincipalComponents.Observe(float64(basis.K()))

	members := SampleEnsemble(basis, NewStream(req.Seed), req.EnsembleSize, req.DayWindow)
	stats, rainProb := Summarize(members)

	logger.Info().
		Int("years_used", len(sv.Years)).
		Ints("years_dropped", dropped).
		Int("samples", sv.Samples()).
		Int("components", basis.K()).
		Dur("duration", time.Since(began)).
		Msg("prediction complete")

	return &Prediction{
		Metadata: Metadata{
			Location:     weather.Location{Lat: req.Lat, Lon: req.Lon},
			TargetDate:   target.Format(time.DateOnly),
			EnsembleSize: req.EnsembleSize,
			Components:   basis.K(),
			YearsUsed:    sv.Years,
			YearsDropped: dropped,
			SamplesUsed:  sv.Samples(),
		},
		Stats:                    stats,
		PrecipitationProbability: rainProb,
		Ensemble:                 members,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrTargetNotPast):
		return "invalid"
	case errors.Is(err, ErrAlignmentEmpty), errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDataUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
