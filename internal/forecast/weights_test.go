package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"

	"github.com/histocast/histocast/internal/forecast"
)

func TestYearWeights(t *testing.T) {
	years := []int{2015, 2016, 2017, 2018, 2019}
	w := forecast.YearWeights(years, 2020, 0.5)

	assert.InDelta(t, 1.0, floats.Sum(w), 1e-12)
	for i := 1; i < len(w); i++ {
		assert.Greater(t, w[i], w[i-1], "closer years weigh more")
	}
	// Adjacent years differ by exp(0.5)
	assert.InDelta(t, 1.6487212707, w[4]/w[3], 1e-9)
}

func TestDayWeights(t *testing.T) {
	w := forecast.DayWeights([]int{180, 181, 182, 183, 184}, 182, 0.2)

	assert.InDelta(t, 1.0, floats.Sum(w), 1e-12)
	assert.Equal(t, floats.Max(w), w[2])
	assert.InDelta(t, w[1], w[3], 1e-15)
	assert.InDelta(t, w[0], w[4], 1e-15)
}

func TestDayWeights_LinearAcrossNewYear(t *testing.T) {
	// Jan 1 is 364 days from Dec 31 on a linear day-of-year scale.
	w := forecast.DayWeights([]int{364, 365, 1}, 365, 0.2)
	assert.Less(t, w[2], 1e-10)
}

func TestCombineWeights(t *testing.T) {
	yw := forecast.YearWeights([]int{2018, 2019}, 2020, 0.5)
	dw := forecast.DayWeights([]int{10, 11, 12}, 11, 0.2)

	c := forecast.CombineWeights(yw, dw)
	assert.Len(t, c, 6)
	assert.InDelta(t, 1.0, floats.Sum(c), 1e-12)

	for i := range yw {
		for j := range dw {
			assert.InDelta(t, yw[i]*dw[j], c[i*len(dw)+j], 1e-15)
		}
	}
}

func TestCenterDOYs(t *testing.T) {
	target := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	doys := forecast.CenterDOYs(target, []int{-1, 0, 1})
	assert.Equal(t, []int{365, 366, 1}, doys)
}
