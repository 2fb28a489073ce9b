package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/weather"
)

// HistorySource fetches hourly history. *weather.Service implements it and
// stores every fetched window in its cache.
type HistorySource interface {
	FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.HourlySeries, error)
}

// PrefetchJob warms the history cache for the configured targets so that
// predictions for those locations are served without upstream calls.
type PrefetchJob struct {
	config PrefetchConfig
	source HistorySource
	logger zerolog.Logger
	now    func() time.Time

	metrics *PrefetchMetrics
}

// PrefetchMetrics tracks prefetch job statistics.
type PrefetchMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	WindowsFetched    int64
	WindowsFailed     int64
	LastRunAt         time.Time
	LastRunDuration   time.Duration
	TotalRunDuration  time.Duration
	LastRunTargetDate string
}

// PrefetchJobConfig holds configuration for creating a PrefetchJob.
type PrefetchJobConfig struct {
	Config PrefetchConfig
	Source HistorySource
	Logger zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewPrefetchJob creates a new prefetch job processor.
func NewPrefetchJob(cfg PrefetchJobConfig) *PrefetchJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &PrefetchJob{
		config:  cfg.Config.withDefaults(),
		source:  cfg.Source,
		logger:  cfg.Logger,
		now:     now,
		metrics: &PrefetchMetrics{},
	}
}

// Config returns the effective configuration.
func (j *PrefetchJob) Config() PrefetchConfig {
	return j.config
}

// PrefetchResult contains the result of a prefetch run.
type PrefetchResult struct {
	TargetDate   time.Time
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalWindows int
	Successful   int
	Failed       int
	Errors       []PrefetchError
}

// PrefetchError represents a failed window fetch.
type PrefetchError struct {
	Point Point
	Start time.Time
	End   time.Time
	Error string
}

// window is one unit of work: a single year's fetch around one date.
type window struct {
	point      Point
	start, end time.Time
}

// plan returns the windows a run for date would fetch: for every point,
// every configured date and every past year, the days around that date.
func (j *PrefetchJob) plan(date time.Time) []window {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	points := j.config.AllPoints()

	windows := make([]window, 0, len(points)*j.config.Days*j.config.YearsBack)
	for _, p := range points {
		for d := 0; d < j.config.Days; d++ {
			day := date.AddDate(0, 0, d)
			for back := 1; back <= j.config.YearsBack; back++ {
				year := day.Year() - back
				target := time.Date(year, day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
				windows = append(windows, window{
					point: p,
					start: target.AddDate(0, 0, -j.config.HalfWindow),
					end:   target.AddDate(0, 0, j.config.HalfWindow),
				})
			}
		}
	}
	return windows
}

// Run prefetches history for date. A zero date means today.
func (j *PrefetchJob) Run(ctx context.Context, date time.Time) *PrefetchResult {
	if date.IsZero() {
		date = j.now().UTC()
	}

	startTime := time.Now()
	windows := j.plan(date)
	result := &PrefetchResult{
		TargetDate:   date,
		StartTime:    startTime,
		TotalWindows: len(windows),
	}

	j.logger.Info().
		Str("target_date", date.Format(time.DateOnly)).
		Int("total_windows", result.TotalWindows).
		Int("concurrency", j.config.Concurrency).
		Msg("starting history prefetch job")

	work := make(chan window, len(windows))
	results := make(chan windowResult, len(windows))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.prefetchWorker(ctx, work, results)
		}()
	}

	for _, w := range windows {
		work <- w
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for wr := range results {
		if wr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, PrefetchError{
			Point: wr.window.point,
			Start: wr.window.start,
			End:   wr.window.end,
			Error: wr.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.TotalWindows-result.Successful-result.Failed).
		Msg("history prefetch job completed")

	return result
}

type windowResult struct {
	window window
	err    error
}

func (j *PrefetchJob) prefetchWorker(ctx context.Context, work <-chan window, results chan<- windowResult) {
	for w := range work {
		select {
		case <-ctx.Done():
			return
		default:
			results <- windowResult{window: w, err: j.fetch(ctx, w)}
		}
	}
}

func (j *PrefetchJob) fetch(ctx context.Context, w window) error {
	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.source.FetchHourly(fetchCtx, w.point.Lat, w.point.Lon, w.start, w.end)
	if err != nil {
		j.logger.Debug().
			Err(err).
			Float64("lat", w.point.Lat).
			Float64("lon", w.point.Lon).
			Str("start", w.start.Format(time.DateOnly)).
			Msg("prefetch window failed")
	}
	return err
}

func (j *PrefetchJob) updateMetrics(result *PrefetchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.WindowsFetched += int64(result.Successful)
	j.metrics.WindowsFailed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalRunDuration += result.Duration
	j.metrics.LastRunTargetDate = result.TargetDate.Format(time.DateOnly)
}

// GetMetrics returns a copy of the current metrics.
func (j *PrefetchJob) GetMetrics() PrefetchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrefetchMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		WindowsFetched:    j.metrics.WindowsFetched,
		WindowsFailed:     j.metrics.WindowsFailed,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalRunDuration:  j.metrics.TotalRunDuration,
		LastRunTargetDate: j.metrics.LastRunTargetDate,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrefetchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":           m.TotalRuns,
		"windows_fetched":      m.WindowsFetched,
		"windows_failed":       m.WindowsFailed,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_run_duration":   m.TotalRunDuration.String(),
		"last_run_target_date": m.LastRunTargetDate,
	}
}
