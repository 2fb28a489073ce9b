package forecast_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/histocast/histocast/internal/weather"
)

// fakeSource produces deterministic synthetic hourly history.
type fakeSource struct {
	mu        sync.Mutex
	calls     int
	inFlight  int
	maxFlight int
	delay     time.Duration

	// failYears makes fetches for these years fail.
	failYears map[int]bool

	// skipDays drops all hours of the given dates.
	skipDays map[string]bool

	// values overrides the generated values when set.
	values func(t time.Time, rng *rand.Rand) weather.Values
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		failYears: make(map[int]bool),
		skipDays:  make(map[string]bool),
	}
}

func (f *fakeSource) FetchHourly(_ context.Context, lat, lon float64, start, end time.Time) (*weather.HourlySeries, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	// The window is centered on the target date.
	if f.failYears[start.Add(end.Sub(start)/2).Year()] {
		return nil, errors.New("upstream failure")
	}

	series := &weather.HourlySeries{
		Location: weather.Location{Lat: lat, Lon: lon},
		Start:    start,
		End:      end,
		Source:   "fake",
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if f.skipDays[day.Format(time.DateOnly)] {
			continue
		}
		rng := rand.New(rand.NewPCG(uint64(day.Year()), uint64(day.YearDay())))
		for h := 0; h < 24; h++ {
			t := day.Add(time.Duration(h) * time.Hour)
			var vals weather.Values
			if f.values != nil {
				vals = f.values(t, rng)
			} else {
				vals = syntheticValues(t, rng)
			}
			series.Observations = append(series.Observations, weather.Observation{Time: t, Values: vals})
		}
	}
	return series, nil
}

func (f *fakeSource) stats() (calls, maxFlight int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.maxFlight
}

func syntheticValues(t time.Time, rng *rand.Rand) weather.Values {
	season := math.Sin(2 * math.Pi * float64(t.YearDay()) / 365)
	diurnal := math.Sin(2 * math.Pi * float64(t.Hour()) / 24)
	temp := 15 + 10*season + 4*diurnal + rng.NormFloat64()*2
	return weather.Values{
		Precipitation:  math.Max(0, rng.NormFloat64()*2),
		Temperature:    temp,
		Humidity:       60 + rng.NormFloat64()*10,
		CloudCover:     50 + rng.NormFloat64()*20,
		WindSpeed:      4 + math.Abs(rng.NormFloat64()*2),
		SolarRadiation: math.Max(0, 300*diurnal+rng.NormFloat64()*30),
		DewPoint:       temp - 5 + rng.NormFloat64(),
	}
}
