package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/histocast/histocast/internal/weather"
)

// Summarize computes per-variable statistics over the ensemble and the
// probability of precipitation above RainThreshold.
func Summarize(members []weather.Values) (VariableStats, float64) {
	var stats VariableStats
	if len(members) == 0 {
		return stats, 0
	}

	column := make([]float64, len(members))
	for _, v := range weather.AllVariables() {
		for i, m := range members {
			column[i] = m.Get(v)
		}
		stats.Set(v, summarizeColumn(column, v.Unit()))
	}

	rainy := 0
	for _, m := range members {
		if m.Precipitation > RainThreshold {
			rainy++
		}
	}

	return stats, float64(rainy) / float64(len(members))
}

func summarizeColumn(xs []float64, unit string) Summary {
	mean, variance := stat.PopMeanVariance(xs, nil)

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	return Summary{
		Mean:   mean,
		Median: Percentile(sorted, 50),
		Std:    math.Sqrt(variance),
		P5:     Percentile(sorted, 5),
		P95:    Percentile(sorted, 95),
		Unit:   unit,
	}
}

// Percentile returns the p-th percentile (0-100) of sorted data using
// linear interpolation between closest ranks: h = (n-1)*p/100.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}

	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
