// Package forecast turns multi-year historical observations into a
// probabilistic prediction for one date and location using weighted PCA
// and Monte Carlo sampling in the reduced eigenspace.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/histocast/histocast/internal/weather"
)

// Forecast errors.
var (
	// ErrDataUnavailable is returned when no usable history could be fetched.
	ErrDataUnavailable = errors.New("historical data unavailable")

	// ErrAlignmentEmpty is returned when surviving years share no common day.
	ErrAlignmentEmpty = errors.New("no common days across historical years")

	// ErrInsufficientData is returned when too few samples remain for PCA.
	ErrInsufficientData = fmt.Errorf("insufficient historical samples: %w", ErrDataUnavailable)

	// ErrInvalidRequest is returned for out-of-range request parameters.
	ErrInvalidRequest = errors.New("invalid prediction request")

	// ErrTargetNotPast is returned when the target year is requested as
	// history but the target date has not happened yet.
	ErrTargetNotPast = errors.New("target date is not in the past")

	// ErrEigenDecomposition is returned when the covariance eigensolver
	// does not converge or the samples are not finite.
	ErrEigenDecomposition = errors.New("eigendecomposition did not converge")
)

// Default pipeline parameters.
const (
	DefaultYearsBack         = 15
	DefaultEnsembleSize      = 1000
	DefaultDayWindow         = 2
	DefaultVarianceThreshold = 0.95
	DefaultSeed              = 42
	DefaultAlphaYear         = 0.5
	DefaultAlphaDay          = 0.2
	DefaultConcurrency       = 8

	// RainThreshold is the daily precipitation (mm) above which a member counts as rainy.
	RainThreshold = 0.1

	maxYearsBack    = 100
	maxEnsembleSize = 100_000
	maxDayWindow    = 15
)

// Request describes a single prediction. Zero values take the predictor's defaults.
type Request struct {
	Lat        float64
	Lon        float64
	TargetDate time.Time

	// YearsBack is the number of historical years to use.
	YearsBack int

	// EnsembleSize is the number of Monte Carlo members (N).
	EnsembleSize int

	// DayWindow is the state half-window W in days, at least 1. Zero takes
	// the default.
	DayWindow int

	// FetchWindow is the fetch half-window F in days. Must be >= DayWindow.
	// Larger values yield more than one state vector per year.
	FetchWindow int

	// VarianceThreshold is the cumulative explained variance to retain, in (0, 1].
	VarianceThreshold float64

	Seed uint64

	// IncludeTargetYear uses the target year itself as history.
	// Only valid when the target date is already in the past.
	IncludeTargetYear bool
}

// Summary holds ensemble statistics for one variable.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
	Unit   string  `json:"unit"`
}

// VariableStats holds one Summary per tracked variable.
type VariableStats struct {
	Precipitation  Summary `json:"precipitation"`
	Temperature    Summary `json:"temperature"`
	Humidity       Summary `json:"humidity"`
	CloudCover     Summary `json:"cloud_cover"`
	WindSpeed      Summary `json:"wind_speed"`
	SolarRadiation Summary `json:"solar_radiation"`
	DewPoint       Summary `json:"dew_point"`
}

// Get returns the summary for the given variable.
func (s *VariableStats) Get(v weather.Variable) Summary {
	if p := s.ptr(v); p != nil {
		return *p
	}
	return Summary{}
}

// Set assigns the summary for the given variable.
func (s *VariableStats) Set(v weather.Variable, sum Summary) {
	if p := s.ptr(v); p != nil {
		*p = sum
	}
}

func (s *VariableStats) ptr(v weather.Variable) *Summary {
	switch v {
	case weather.Precipitation:
		return &s.Precipitation
	case weather.Temperature:
		return &s.Temperature
	case weather.Humidity:
		return &s.Humidity
	case weather.CloudCover:
		return &s.CloudCover
	case weather.WindSpeed:
		return &s.WindSpeed
	case weather.SolarRadiation:
		return &s.SolarRadiation
	case weather.DewPoint:
		return &s.DewPoint
	default:
		return nil
	}
}

// Metadata describes how a prediction was produced.
type Metadata struct {
	Location     weather.Location `json:"location"`
	TargetDate   string           `json:"target_date"`
	EnsembleSize int              `json:"n_ensemble"`
	Components   int              `json:"n_components"`
	YearsUsed    []int            `json:"years_used"`
	YearsDropped []int            `json:"years_dropped,omitempty"`
	SamplesUsed  int              `json:"samples_used"`
}

// Prediction is the statistical output of one prediction call.
type Prediction struct {
	Metadata Metadata      `json:"metadata"`
	Stats    VariableStats `json:"predictions"`

	// PrecipitationProbability is the fraction of members with precipitation above RainThreshold.
	PrecipitationProbability float64 `json:"precipitation_probability"`

	// Ensemble holds the clipped center-day members.
	Ensemble []weather.Values `json:"-"`
}
