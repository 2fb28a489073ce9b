package forecast

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// varianceEpsilon guards the explained-variance ratio against a zero total.
const varianceEpsilon = 1e-16

// eigenFloorRatio sets the smallest retained eigenvalue relative to the total variance.
const eigenFloorRatio = 1e-8

// Basis is a truncated weighted principal component basis.
type Basis struct {
	// Mean is the weighted sample mean.
	Mean []float64

	// Eigenvalues are the K retained variances, descending and floored.
	Eigenvalues []float64

	// Vectors holds the K retained eigenvectors as columns (dim x K).
	Vectors *mat.Dense

	// Spectrum is the full eigenvalue spectrum, descending, before truncation.
	Spectrum []float64

	// Cumulative is the cumulative explained variance ratio over Spectrum.
	Cumulative []float64

	TotalVariance float64
}

// K returns the number of retained components.
func (b *Basis) K() int {
	return len(b.Eigenvalues)
}

// Dim returns the state dimension.
func (b *Basis) Dim() int {
	return len(b.Mean)
}

// Reconstruct maps eigenspace coordinates z (length K) back to state space: mu + V*z.
func (b *Basis) Reconstruct(z []float64) []float64 {
	out := make([]float64, b.Dim())
	b.ReconstructInto(out, z)
	return out
}

// ReconstructInto writes mu + V*z into dst, which must have length Dim.
func (b *Basis) ReconstructInto(dst, z []float64) {
	copy(dst, b.Mean)
	for k, zk := range z {
		if zk == 0 {
			continue
		}
		for i := range dst {
			dst[i] += b.Vectors.At(i, k) * zk
		}
	}
}

// FitPCA computes the weighted mean and covariance of rows, eigendecomposes
// the covariance and keeps the smallest number of components whose
// cumulative explained variance reaches threshold.
func FitPCA(rows [][]float64, weights []float64, threshold float64) (*Basis, error) {
	n := len(rows)
	if n < 2 {
		return nil, ErrInsufficientData
	}
	if len(weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d samples", ErrInvalidRequest, len(weights), n)
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, ErrInsufficientData
	}

	w := append([]float64(nil), weights...)
	sum := floats.Sum(w)
	if sum <= 0 {
		return nil, fmt.Errorf("%w: weights sum to %g", ErrInvalidRequest, sum)
	}
	floats.Scale(1/sum, w)

	mu := make([]float64, dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: ragged sample %d", ErrInvalidRequest, i)
		}
		if !finite(row) {
			return nil, fmt.Errorf("%w: sample %d has non-finite values", ErrEigenDecomposition, i)
		}
		floats.AddScaled(mu, w[i], row)
	}

	// Centered samples scaled by sqrt(w) so that Xwᵀ·Xw = (X-μ)ᵀ diag(w) (X-μ).
	xw := mat.NewDense(n, dim, nil)
	centered := make([]float64, dim)
	for i, row := range rows {
		floats.SubTo(centered, row, mu)
		floats.Scale(math.Sqrt(w[i]), centered)
		xw.SetRow(i, centered)
	}

	var cov mat.Dense
	cov.Mul(xw.T(), xw)

	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sym.SetSym(i, j, 0.5*(cov.At(i, j)+cov.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, ErrEigenDecomposition
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// EigenSym returns ascending eigenvalues; order descending.
	order := make([]int, dim)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	spectrum := make([]float64, dim)
	for i, idx := range order {
		// Round-off can leave tiny negatives on a PSD matrix.
		spectrum[i] = max(values[idx], 0)
	}

	total := floats.Sum(spectrum)
	cumulative := make([]float64, dim)
	var running float64
	for i, v := range spectrum {
		running += v / (total + varianceEpsilon)
		cumulative[i] = running
	}

	k := SelectComponents(cumulative, threshold)

	floor := eigenFloorRatio
	if total > 0 {
		floor = eigenFloorRatio * total
	}

	eigenvalues := make([]float64, k)
	basis := mat.NewDense(dim, k, nil)
	for j := 0; j < k; j++ {
		eigenvalues[j] = max(spectrum[j], floor)
		src := order[j]
		for i := 0; i < dim; i++ {
			basis.Set(i, j, vectors.At(i, src))
		}
	}

	return &Basis{
		Mean:          mu,
		Eigenvalues:   eigenvalues,
		Vectors:       basis,
		Spectrum:      spectrum,
		Cumulative:    cumulative,
		TotalVariance: total,
	}, nil
}

// SelectComponents returns the minimal K with cumulative[K-1] >= threshold,
// clamped to [1, len(cumulative)].
func SelectComponents(cumulative []float64, threshold float64) int {
	idx := sort.Search(len(cumulative), func(i int) bool {
		return cumulative[i] >= threshold
	})
	k := idx + 1
	return min(max(k, 1), len(cumulative))
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
