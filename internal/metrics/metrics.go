// Package metrics exposes Prometheus collectors for the forecasting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HistoryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histocast_history_fetches_total",
			Help: "Total historical window fetches against the upstream data provider",
		},
		[]string{"provider", "status"},
	)

	HistoryFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "histocast_history_fetch_latency_seconds",
			Help:    "Upstream historical window fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	HistoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histocast_history_cache_lookups_total",
			Help: "History cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	YearsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "histocast_years_dropped_total",
			Help: "Historical years dropped from a prediction because their fetch failed",
		},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histocast_predictions_total",
			Help: "Total predictions by outcome",
		},
		[]string{"status"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "histocast_prediction_duration_seconds",
			Help:    "End-to-end prediction latency including history fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PrincipalComponents = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "histocast_principal_components",
			Help:    "Number of principal components retained per prediction",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)
)
