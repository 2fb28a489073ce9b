package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// YearWeights returns exp(-alpha*|year-target|) normalized to sum to one.
func YearWeights(years []int, targetYear int, alpha float64) []float64 {
	w := make([]float64, len(years))
	for i, y := range years {
		w[i] = math.Exp(-alpha * math.Abs(float64(y-targetYear)))
	}
	normalize(w)
	return w
}

// DayWeights returns exp(-alpha*|doy-targetDOY|) normalized to sum to one.
// Distance is linear in day-of-year, so days across the new year boundary
// from the target are weighted as if they were a year apart.
func DayWeights(doys []int, targetDOY int, alpha float64) []float64 {
	w := make([]float64, len(doys))
	for i, d := range doys {
		w[i] = math.Exp(-alpha * math.Abs(float64(d-targetDOY)))
	}
	normalize(w)
	return w
}

// CombineWeights returns the outer product of year and day weights
// flattened in [year, day] order, normalized to sum to one.
func CombineWeights(yearW, dayW []float64) []float64 {
	out := make([]float64, 0, len(yearW)*len(dayW))
	for _, yw := range yearW {
		for _, dw := range dayW {
			out = append(out, yw*dw)
		}
	}
	normalize(out)
	return out
}

// CenterDOYs returns the day-of-year, in the target year, of each center offset.
func CenterDOYs(target time.Time, centers []int) []int {
	doys := make([]int, len(centers))
	for i, c := range centers {
		doys[i] = target.AddDate(0, 0, c).YearDay()
	}
	return doys
}

func normalize(w []float64) {
	if sum := floats.Sum(w); sum > 0 {
		floats.Scale(1/sum, w)
	}
}
