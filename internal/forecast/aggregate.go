package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/histocast/histocast/internal/metrics"
	"github.com/histocast/histocast/internal/weather"
)

// Source supplies hourly historical observations.
type Source interface {
	FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.HourlySeries, error)
}

// YearWindow is the fetched history around the target calendar date for one year.
type YearWindow struct {
	Year   int
	Target time.Time
	Series *weather.HourlySeries
}

// FetchPlan describes which years and days to fetch.
type FetchPlan struct {
	Lat, Lon    float64
	Month       time.Month
	Day         int
	EndYear     int
	YearsBack   int
	HalfWindow  int
	Concurrency int
}

// Years returns the planned years in ascending order.
func (p FetchPlan) Years() []int {
	years := make([]int, 0, p.YearsBack)
	for y := p.EndYear - p.YearsBack + 1; y <= p.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// FetchYears fetches every planned year concurrently, at most Concurrency
// at a time. Years whose fetch fails or returns nothing are dropped and
// reported. Surviving windows are returned in year order.
func FetchYears(ctx context.Context, src Source, plan FetchPlan, logger zerolog.Logger) (windows []YearWindow, dropped []int, err error) {
	years := plan.Years()
	slots := make([]*weather.HourlySeries, len(years))

	limit := plan.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, year := range years {
		target := time.Date(year, plan.Month, plan.Day, 0, 0, 0, 0, time.UTC)
		g.Go(func() error {
			start := target.AddDate(0, 0, -plan.HalfWindow)
			end := target.AddDate(0, 0, plan.HalfWindow)

			series, err := src.FetchHourly(ctx, plan.Lat, plan.Lon, start, end)
			if err != nil {
				logger.Warn().Err(err).Int("year", year).Msg("dropping year: history fetch failed")
				return nil
			}
			if series.Len() == 0 {
				logger.Warn().Int("year", year).Msg("dropping year: no observations")
				return nil
			}
			slots[i] = series
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for i, year := range years {
		if slots[i] == nil {
			dropped = append(dropped, year)
			metrics.YearsDropped.Inc()
			continue
		}
		windows = append(windows, YearWindow{
			Year:   year,
			Target: time.Date(year, plan.Month, plan.Day, 0, 0, 0, 0, time.UTC),
			Series: slots[i],
		})
	}

	if len(windows) == 0 {
		return nil, dropped, ErrDataUnavailable
	}
	return windows, dropped, nil
}

// DailyAggregates holds per-year daily means restricted to the day offsets
// common to every year. Data is indexed [year][day].
type DailyAggregates struct {
	Years   []int
	Offsets []int
	Data    [][]weather.Values
}

// dayOffset returns the number of calendar days between t's date and target.
func dayOffset(t, target time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(d.Sub(target).Hours() / 24))
}

// dailyMeans averages hourly observations per calendar day, skipping NaN.
// A variable with no readings on a day stays NaN.
func dailyMeans(w YearWindow) map[int]weather.Values {
	type acc struct {
		sum [weather.NumVariables]float64
		n   [weather.NumVariables]int
	}
	days := make(map[int]*acc)

	for _, obs := range w.Series.Observations {
		off := dayOffset(obs.Time, w.Target)
		a, ok := days[off]
		if !ok {
			a = &acc{}
			days[off] = a
		}
		for _, v := range weather.AllVariables() {
			x := obs.Values.Get(v)
			if math.IsNaN(x) {
				continue
			}
			a.sum[v] += x
			a.n[v]++
		}
	}

	out := make(map[int]weather.Values, len(days))
	for off, a := range days {
		vals := weather.MissingValues()
		for _, v := range weather.AllVariables() {
			if a.n[v] > 0 {
				vals.Set(v, a.sum[v]/float64(a.n[v]))
			}
		}
		out[off] = vals
	}
	return out
}

// AlignDaily aggregates every window to daily means, keeps only the day
// offsets present in all windows, and imputes remaining gaps with the
// variable's mean across all years and days.
func AlignDaily(windows []YearWindow, logger zerolog.Logger) (*DailyAggregates, error) {
	if len(windows) == 0 {
		return nil, ErrDataUnavailable
	}

	perYear := make([]map[int]weather.Values, len(windows))
	for i, w := range windows {
		perYear[i] = dailyMeans(w)
	}

	var common []int
	for off := range perYear[0] {
		inAll := true
		for _, days := range perYear[1:] {
			if _, ok := days[off]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, off)
		}
	}
	if len(common) == 0 {
		return nil, ErrAlignmentEmpty
	}
	sort.Ints(common)

	agg := &DailyAggregates{
		Years:   make([]int, len(windows)),
		Offsets: common,
		Data:    make([][]weather.Values, len(windows)),
	}
	for i, w := range windows {
		agg.Years[i] = w.Year
		agg.Data[i] = make([]weather.Values, len(common))
		for j, off := range common {
			agg.Data[i][j] = perYear[i][off]
		}
	}

	impute(agg, logger)
	return agg, nil
}

func impute(agg *DailyAggregates, logger zerolog.Logger) {
	for _, v := range weather.AllVariables() {
		var sum float64
		var n int
		for _, days := range agg.Data {
			for _, vals := range days {
				if x := vals.Get(v); !math.IsNaN(x) {
					sum += x
					n++
				}
			}
		}

		fill := 0.0
		if n > 0 {
			fill = sum / float64(n)
		} else {
			logger.Warn().Str("variable", v.String()).Msg("no observations for variable; imputing zero")
		}

		for i := range agg.Data {
			for j := range agg.Data[i] {
				if math.IsNaN(agg.Data[i][j].Get(v)) {
					agg.Data[i][j].Set(v, fill)
				}
			}
		}
	}
}
