package forecast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histocast/histocast/internal/forecast"
	"github.com/histocast/histocast/internal/weather"
)

func testAggregates(offsets []int) *forecast.DailyAggregates {
	agg := &forecast.DailyAggregates{
		Years:   []int{2018, 2019},
		Offsets: offsets,
		Data:    make([][]weather.Values, 2),
	}
	for y := range agg.Years {
		agg.Data[y] = make([]weather.Values, len(offsets))
		for d, off := range offsets {
			vals := make([]float64, weather.NumVariables)
			for v := range vals {
				vals[v] = float64(y*1000 + off*10 + v)
			}
			agg.Data[y][d] = weather.ValuesFromSlice(vals)
		}
	}
	return agg
}

func TestBuildStateVectors(t *testing.T) {
	agg := testAggregates([]int{-2, -1, 0, 1, 2})

	sv, err := forecast.BuildStateVectors(agg, 1)
	require.NoError(t, err)

	assert.Equal(t, 3*weather.NumVariables, sv.Dim())
	assert.Equal(t, []int{-1, 0, 1}, sv.Centers)
	assert.Equal(t, 6, sv.Samples())
	require.Len(t, sv.Rows(), 6)

	// Year 2019, center 0: days -1, 0, 1 in order.
	vec := sv.Vectors[1][1]
	require.Len(t, vec, 21)
	assert.Equal(t, 1000.0-10, vec[0])
	assert.Equal(t, 1000.0+6, vec[13])
	assert.Equal(t, 1000.0+10+6, vec[20])

	// Rows are year-major.
	assert.Equal(t, sv.Vectors[1][0], sv.Rows()[3])
}

func TestBuildStateVectors_GapsExcludeCenters(t *testing.T) {
	agg := testAggregates([]int{-3, -2, -1, 0, 2, 3})

	sv, err := forecast.BuildStateVectors(agg, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{-2, -1}, sv.Centers)
}

func TestBuildStateVectors_NoValidCenter(t *testing.T) {
	agg := testAggregates([]int{-2, -1, 0, 1})

	_, err := forecast.BuildStateVectors(agg, 2)
	assert.ErrorIs(t, err, forecast.ErrInsufficientData)
}

func TestStateDim(t *testing.T) {
	assert.Equal(t, 35, forecast.StateDim(2))
	assert.Equal(t, 7, forecast.StateDim(0))
}
