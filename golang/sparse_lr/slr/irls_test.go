package slr

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetasDotXi(t *testing.T) {
	betas := []float64{0.75, 1, 2, 3}
	dot := must(t)
	assert.Equal(t, 0.75, dot(BetasDotXi(betas, SparseVector{})))
	assert.Equal(t, 0.75+2*2+0.5*3, dot(BetasDotXi(betas, sparseFromPairs(1, 2, 2, 0.5))))

	_, err := BetasDotXi(betas, sparseFromPairs(3, 1))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = BetasDotXi(nil, SparseVector{})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func sparseFromPairs(pairs ...float64) SparseVector {
	var x SparseVector
	for k := 0; k < len(pairs); k += 2 {
		x.Set(int(pairs[k]), pairs[k+1])
	}
	return x
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 0, Sigmoid(math.Inf(-1)), 1e-300)
	assert.InDelta(t, 1, Sigmoid(math.Inf(1)), 1e-15)
	assert.InDelta(t, 1/(1+math.Exp(-2)), Sigmoid(2), 1e-15)
}

func TestClampProb(t *testing.T) {
	assert.Equal(t, ProbEpsilon, ClampProb(0))
	assert.Equal(t, 1-ProbEpsilon, ClampProb(1))
	assert.Equal(t, 0.3, ClampProb(0.3))
}

func TestComputeWorkingSet(t *testing.T) {
	observations := []Observation{
		NewObservation(sparseFromPairs(0, 1), 3, 4),
		NewObservation(SparseVector{}, 0, 0),
		NewObservation(sparseFromPairs(1, 2), 2, 2),
	}
	betas := []float64{0, 0, 50}
	ws := NewWorkingSet(len(observations))
	ComputeWorkingSet(wholeRange(observations), betas, ws)

	assert.Equal(t, 1.0, ws.Mi[0])
	assert.Equal(t, 1.0, ws.Zi[0])

	assert.Equal(t, 0.0, ws.Mi[1])
	assert.Equal(t, 0.0, ws.Zi[1])

	assert.Positive(t, ws.Mi[2])
	assert.False(t, math.IsInf(ws.Zi[2], 0) || math.IsNaN(ws.Zi[2]))
}

func TestComputeWorkingSetWritesOnlyItsRange(t *testing.T) {
	observations := []Observation{
		NewObservation(SparseVector{}, 1, 4),
		NewObservation(SparseVector{}, 1, 4),
		NewObservation(SparseVector{}, 1, 4),
	}
	ws := NewWorkingSet(3)
	ComputeWorkingSet(DatasetRange[Observation]{Begin: 1, End: 2, dataset: observations}, []float64{0}, ws)
	assert.Equal(t, []float64{0, 1, 0}, ws.Mi)
}

func TestCheckObservations(t *testing.T) {
	observations := threeObservations(t)
	assert.NoError(t, checkObservations(observations, 10))
	assert.True(t, errors.Is(checkObservations(observations, 9), ErrShapeMismatch))

	negative := []Observation{NewObservation(SparseVector{}, 0, -1)}
	assert.True(t, errors.Is(checkObservations(negative, 1), ErrInvalidParameter))
}

func TestCheckObservationsSuccessCounts(t *testing.T) {
	for _, successes := range []float64{-1, 4.5, math.NaN()} {
		observations := []Observation{NewObservation(SparseVector{}, successes, 4)}
		assert.True(t, errors.Is(checkObservations(observations, 0), ErrInvalidParameter), "successes %g", successes)
	}
	zeroTrials := []Observation{NewObservation(SparseVector{}, 1, 0)}
	assert.True(t, errors.Is(checkObservations(zeroTrials, 0), ErrInvalidParameter))

	bounds := []Observation{
		NewObservation(SparseVector{}, 0, 4),
		NewObservation(SparseVector{}, 4, 4),
		NewObservation(SparseVector{}, 0, 0),
	}
	assert.NoError(t, checkObservations(bounds, 0))
}

func TestTrainingEntropy(t *testing.T) {
	observations := threeObservations(t)
	entropy, err := TrainingEntropy(observations, make([]float64, 11))
	require.NoError(t, err)
	assert.InDelta(t, 30*math.Log(2), entropy, 1e-12)

	_, err = TrainingEntropy(observations, make([]float64, 5))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
