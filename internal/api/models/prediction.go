package models

import (
	"time"

	"github.com/histocast/histocast/internal/classify"
	"github.com/histocast/histocast/internal/forecast"
	"github.com/histocast/histocast/internal/weather"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = time.DateOnly

// PredictionRequest is the body of POST /v1/predictions. Omitted numeric
// fields take the server defaults.
type PredictionRequest struct {
	Lat  *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon  *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Date string   `json:"date" validate:"required,datetime=2006-01-02"`

	YearsBack         int     `json:"years_back,omitempty" validate:"omitempty,min=1,max=100"`
	EnsembleSize      int     `json:"ensemble_size,omitempty" validate:"omitempty,min=1,max=100000"`
	DayWindow         int     `json:"day_window,omitempty" validate:"omitempty,min=1,max=15"`
	FetchWindow       int     `json:"fetch_window,omitempty" validate:"omitempty,min=1,max=30"`
	VarianceThreshold float64 `json:"variance_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	Seed              uint64  `json:"seed,omitempty"`
	IncludeTargetYear bool    `json:"include_target_year,omitempty"`

	Persona         string `json:"persona,omitempty" validate:"omitempty,oneof=sun_lover rain_enjoyer snow_enthusiast balanced"`
	IncludeEnsemble bool   `json:"include_ensemble,omitempty"`
}

// ForecastRequest converts the validated body into a forecast request.
func (r *PredictionRequest) ForecastRequest() (forecast.Request, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return forecast.Request{}, err
	}
	req := forecast.Request{
		TargetDate:        date,
		YearsBack:         r.YearsBack,
		EnsembleSize:      r.EnsembleSize,
		DayWindow:         r.DayWindow,
		FetchWindow:       r.FetchWindow,
		VarianceThreshold: r.VarianceThreshold,
		Seed:              r.Seed,
		IncludeTargetYear: r.IncludeTargetYear,
	}
	if r.Lat != nil {
		req.Lat = *r.Lat
	}
	if r.Lon != nil {
		req.Lon = *r.Lon
	}
	return req, nil
}

// PredictionResponse is the body returned for a completed prediction.
type PredictionResponse struct {
	Metadata                 forecast.Metadata      `json:"metadata"`
	Predictions              forecast.VariableStats `json:"predictions"`
	PrecipitationProbability float64                `json:"precipitation_probability"`
	Classification           classify.Report        `json:"classification"`
	Ensemble                 []weather.Values       `json:"ensemble,omitempty"`
}

// NewPredictionResponse assembles the response body.
func NewPredictionResponse(p *forecast.Prediction, report classify.Report, includeEnsemble bool) PredictionResponse {
	resp := PredictionResponse{
		Metadata:                 p.Metadata,
		Predictions:              p.Stats,
		PrecipitationProbability: p.PrecipitationProbability,
		Classification:           report,
	}
	if includeEnsemble {
		resp.Ensemble = p.Ensemble
	}
	return resp
}
