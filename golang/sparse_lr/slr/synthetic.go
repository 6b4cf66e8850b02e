package slr

import (
	"math/rand"

	"github.com/cockroachdb/errors"
)

const (
	syntheticIntercept = -3.0
	syntheticBetaMax   = 1.5
)

//SyntheticSeeds seed the independent random streams of CreateTestData.
type SyntheticSeeds struct {
	Columns int64
	Betas   int64
	Data    int64
	Weights int64
}

//DefaultSyntheticSeeds are the seeds used by the driver when the config omits them.
var DefaultSyntheticSeeds = SyntheticSeeds{Columns: 8, Betas: 16, Data: 32, Weights: 64}

//MakeBetas draws a coefficient vector of size numBetas: intercept -3 and features uniform in [1, 2).
func MakeBetas(numBetas int, seed int64) []float64 {
	rn := rand.New(rand.NewSource(seed))
	betas := make([]float64, numBetas)
	for i := 1; i < numBetas; i++ {
		betas[i] = (rn.Float64() - 0.5) + syntheticBetaMax
	}
	betas[0] = syntheticIntercept
	return betas
}

//CreateTestData generates numObservations observations with about sparsePct*numFeatures gaussian features
//each, 50 to 99 trials and the expected number of successes under the MakeBetas coefficients.
func CreateTestData(numObservations, numFeatures int, sparsePct float64, seeds SyntheticSeeds) ([]Observation, []float64, error) {
	if numObservations < 1 || numFeatures < 1 {
		return nil, nil, errors.Wrapf(ErrInvalidParameter, "%d observations of %d features", numObservations, numFeatures)
	}
	if sparsePct < 0 || sparsePct > 1 {
		return nil, nil, errors.Wrapf(ErrInvalidParameter, "sparse pct %g outside of [0, 1]", sparsePct)
	}
	nonZero := int(sparsePct * float64(numFeatures))

	colRn := rand.New(rand.NewSource(seeds.Columns))
	dataRn := rand.New(rand.NewSource(seeds.Data))
	weightRn := rand.New(rand.NewSource(seeds.Weights))
	betas := MakeBetas(numFeatures+1, seeds.Betas)

	observations := make([]Observation, numObservations)
	for i := range observations {
		var x SparseVector
		for j := 0; j < nonZero; j++ {
			x.Set(colRn.Intn(numFeatures), dataRn.NormFloat64())
		}
		trials := 50 + weightRn.Intn(50)
		successes := float64(trials) * Sigmoid(linearPredictor(betas, x))
		observations[i] = NewObservation(x, successes, trials)
	}
	return observations, betas, nil
}
