package forecast

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/histocast/histocast/internal/weather"
)

// NewStream returns the random stream owned by one prediction call.
func NewStream(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// SampleEnsemble draws n members in eigenspace, z_k ~ Normal(0, sqrt(λ_k)),
// projects them back through the basis and keeps the center day of the
// 2W+1 day window. Values outside a variable's physical bounds are clipped.
func SampleEnsemble(basis *Basis, rng *rand.Rand, n, halfWindow int) []weather.Values {
	k := basis.K()
	normals := make([]distuv.Normal, k)
	for j, lambda := range basis.Eigenvalues {
		normals[j] = distuv.Normal{Mu: 0, Sigma: math.Sqrt(lambda), Src: rng}
	}

	lo := halfWindow * weather.NumVariables
	hi := lo + weather.NumVariables

	members := make([]weather.Values, n)
	z := make([]float64, k)
	state := make([]float64, basis.Dim())
	for m := range members {
		for j := range normals {
			z[j] = normals[j].Rand()
		}
		basis.ReconstructInto(state, z)

		center := state[lo:hi]
		for i, v := range weather.AllVariables() {
			center[i] = v.Clip(center[i])
		}
		members[m] = weather.ValuesFromSlice(center)
	}
	return members
}
