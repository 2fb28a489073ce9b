package forecast

import (
	"github.com/histocast/histocast/internal/weather"
)

// StateVectors holds the flattened multi-day windows used as PCA samples.
// Vectors is indexed [year][center] and each vector has Dim entries laid
// out day-major, then variable.
type StateVectors struct {
	HalfWindow int
	Years      []int
	Centers    []int
	Vectors    [][][]float64
}

// Dim returns the state vector dimension (2W+1)*NumVariables.
func (s *StateVectors) Dim() int {
	return StateDim(s.HalfWindow)
}

// Samples returns the number of state vectors.
func (s *StateVectors) Samples() int {
	return len(s.Years) * len(s.Centers)
}

// Rows returns all vectors flattened in [year, center] order.
func (s *StateVectors) Rows() [][]float64 {
	rows := make([][]float64, 0, s.Samples())
	for _, perYear := range s.Vectors {
		rows = append(rows, perYear...)
	}
	return rows
}

// StateDim returns the state vector dimension for half-window w.
func StateDim(w int) int {
	return (2*w + 1) * weather.NumVariables
}

// BuildStateVectors concatenates 2W+1 consecutive daily aggregates around
// every center offset whose full window is present. Boundary days are
// excluded, never padded.
func BuildStateVectors(agg *DailyAggregates, w int) (*StateVectors, error) {
	index := make(map[int]int, len(agg.Offsets))
	for i, off := range agg.Offsets {
		index[off] = i
	}

	var centers []int
	for _, c := range agg.Offsets {
		complete := true
		for d := c - w; d <= c+w; d++ {
			if _, ok := index[d]; !ok {
				complete = false
				break
			}
		}
		if complete {
			centers = append(centers, c)
		}
	}
	if len(centers) == 0 {
		return nil, ErrInsufficientData
	}

	dim := StateDim(w)
	sv := &StateVectors{
		HalfWindow: w,
		Years:      append([]int(nil), agg.Years...),
		Centers:    centers,
		Vectors:    make([][][]float64, len(agg.Years)),
	}

	for y := range agg.Years {
		sv.Vectors[y] = make([][]float64, len(centers))
		for ci, c := range centers {
			vec := make([]float64, 0, dim)
			for d := c - w; d <= c+w; d++ {
				vec = append(vec, agg.Data[y][index[d]].Slice()...)
			}
			sv.Vectors[y][ci] = vec
		}
	}

	return sv, nil
}
