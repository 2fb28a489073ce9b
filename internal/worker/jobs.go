package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/classify"
	"github.com/histocast/histocast/internal/forecast"
)

// Job types carried in JobMessage.JobType.
const (
	JobHistoryPrefetch = "history_prefetch"
	JobPrediction      = "prediction"
	JobHealthCheck     = "health_check"
)

// healthCheckLag keeps the health check window clear of the upstream's
// publication delay for recent days.
const healthCheckLag = 30 * 24 * time.Hour

// Job errors.
var (
	// ErrUnknownJob is returned for messages with an unrecognized job type.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrMalformedJob is returned when a message cannot be decoded or is
	// missing required fields.
	ErrMalformedJob = errors.New("malformed job message")

	// ErrJobNotConfigured is returned when a job's dependency was not provided.
	ErrJobNotConfigured = errors.New("job not configured")
)

// JobMessage is the JSON payload of a worker message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Date is the target date (YYYY-MM-DD). Prefetch defaults to today;
	// prediction requires it.
	Date string `json:"date,omitempty"`

	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	YearsBack    int      `json:"years_back,omitempty"`
	EnsembleSize int      `json:"ensemble_size,omitempty"`
	Seed         uint64   `json:"seed,omitempty"`
	Persona      string   `json:"persona,omitempty"`
}

// Predictor runs a single prediction.
type Predictor interface {
	Predict(ctx context.Context, req forecast.Request) (*forecast.Prediction, error)
}

// Processor executes decoded job messages. It has no Pub/Sub dependency so
// jobs can be run directly and tested without a broker.
type Processor struct {
	prefetch    *PrefetchJob
	predictor   Predictor
	source      HistorySource
	healthPoint Point
	logger      zerolog.Logger
	now         func() time.Time
}

// ProcessorConfig holds configuration for the job processor.
type ProcessorConfig struct {
	Prefetch  *PrefetchJob
	Predictor Predictor

	// Source is used by the health check.
	Source HistorySource

	// HealthPoint is the location probed by health checks.
	// Default: the first prefetch point, or London.
	HealthPoint *Point

	Logger zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewProcessor creates a new job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	healthPoint := Point{Lat: 51.5074, Lon: -0.1278}
	switch {
	case cfg.HealthPoint != nil:
		healthPoint = *cfg.HealthPoint
	case cfg.Prefetch != nil:
		if points := cfg.Prefetch.Config().AllPoints(); len(points) > 0 {
			healthPoint = points[0]
		}
	}

	return &Processor{
		prefetch:    cfg.Prefetch,
		predictor:   cfg.Predictor,
		source:      cfg.Source,
		healthPoint: healthPoint,
		logger:      cfg.Logger,
		now:         now,
	}
}

// Process decodes and runs one job message.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case JobHistoryPrefetch:
		return p.handlePrefetch(ctx, msg)
	case JobPrediction:
		return p.handlePrediction(ctx, msg)
	case JobHealthCheck:
		return p.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// Permanent reports whether a job error will recur on redelivery.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, ErrMalformedJob) ||
		errors.Is(err, ErrJobNotConfigured) ||
		errors.Is(err, forecast.ErrInvalidRequest) ||
		errors.Is(err, forecast.ErrTargetNotPast) ||
		errors.Is(err, forecast.ErrAlignmentEmpty) ||
		errors.Is(err, forecast.ErrInsufficientData) ||
		errors.Is(err, classify.ErrUnknownPersona)
}

func (p *Processor) handlePrefetch(ctx context.Context, msg JobMessage) error {
	if p.prefetch == nil {
		return fmt.Errorf("%w: %s", ErrJobNotConfigured, JobHistoryPrefetch)
	}

	var date time.Time
	if msg.Date != "" {
		d, err := time.Parse(time.DateOnly, msg.Date)
		if err != nil {
			return fmt.Errorf("%w: date: %w", ErrMalformedJob, err)
		}
		date = d
	}

	result := p.prefetch.Run(ctx, date)

	// Consider it successful if at least half of the windows were fetched.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many prefetch failures: %d/%d", result.Failed, result.TotalWindows)
	}
	return ctx.Err()
}

func (p *Processor) handlePrediction(ctx context.Context, msg JobMessage) error {
	if p.predictor == nil {
		return fmt.Errorf("%w: %s", ErrJobNotConfigured, JobPrediction)
	}
	if msg.Lat == nil || msg.Lon == nil || msg.Date == "" {
		return fmt.Errorf("%w: lat, lon and date are required", ErrMalformedJob)
	}

	date, err := time.Parse(time.DateOnly, msg.Date)
	if err != nil {
		return fmt.Errorf("%w: date: %w", ErrMalformedJob, err)
	}
	persona, err := classify.ParsePersona(msg.Persona)
	if err != nil {
		return err
	}

	pred, err := p.predictor.Predict(ctx, forecast.Request{
		Lat:          *msg.Lat,
		Lon:          *msg.Lon,
		TargetDate:   date,
		YearsBack:    msg.YearsBack,
		EnsembleSize: msg.EnsembleSize,
		Seed:         msg.Seed,
	})
	if err != nil {
		return err
	}

	report := classify.Build(pred, persona)
	p.logger.Info().
		Float64("lat", *msg.Lat).
		Float64("lon", *msg.Lon).
		Str("target_date", pred.Metadata.TargetDate).
		Str("condition", report.Condition.String()).
		Str("summary", report.Summary).
		Float64("temperature_mean", pred.Stats.Temperature.Mean).
		Float64("precipitation_probability", pred.PrecipitationProbability).
		Int("components", pred.Metadata.Components).
		Msg("prediction job completed")

	return nil
}

func (p *Processor) handleHealthCheck(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("%w: %s", ErrJobNotConfigured, JobHealthCheck)
	}

	p.logger.Debug().Msg("running health check")

	day := p.now().UTC().Add(-healthCheckLag)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	series, err := p.source.FetchHourly(ctx, p.healthPoint.Lat, p.healthPoint.Lon, day, day)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if series.Len() == 0 {
		return errors.New("health check failed: no observations returned")
	}

	p.logger.Debug().Int("observations", series.Len()).Msg("health check passed")
	return nil
}
