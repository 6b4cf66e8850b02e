package slr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sparseOf(t *testing.T, indices ...int) SparseVector {
	t.Helper()
	values := make([]float64, len(indices))
	for k, index := range indices {
		values[k] = float64(index)
	}
	x, err := NewSparseVector(indices, values)
	require.NoError(t, err)
	return x
}

//threeObservations has feature values equal to their indices.
func threeObservations(t *testing.T) []Observation {
	return []Observation{
		NewObservation(sparseOf(t, 1, 2, 3, 4), 5, 10),
		NewObservation(sparseOf(t, 6, 7, 8, 9), 5, 10),
		NewObservation(sparseOf(t, 3, 4, 5, 6, 7), 0, 10),
	}
}

var threeObservationsCovariance = [][]float64{
	{0, 0, 1, 2, 6, 8, 5, 12, 14, 8, 9},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 0, 0, 2, 3, 4, 0, 0, 0, 0, 0},
	{2, 0, 2, 0, 6, 8, 0, 0, 0, 0, 0},
	{6, 0, 3, 6, 0, 24, 15, 18, 21, 0, 0},
	{8, 0, 4, 8, 24, 0, 20, 24, 28, 0, 0},
	{5, 0, 0, 0, 15, 20, 0, 30, 35, 0, 0},
	{12, 0, 0, 0, 18, 24, 30, 0, 84, 48, 54},
	{14, 0, 0, 0, 21, 28, 35, 84, 0, 56, 63},
	{8, 0, 0, 0, 0, 0, 0, 48, 56, 0, 72},
	{9, 0, 0, 0, 0, 0, 0, 54, 63, 72, 0},
}

//integerObservations have integer features, trials and successes.
func integerObservations(t *testing.T, n, numFeatures int) []Observation {
	t.Helper()
	observations := make([]Observation, n)
	for i := range observations {
		var x SparseVector
		for j := 0; j < numFeatures; j++ {
			if (i+j)%3 != 0 {
				x.Append(j, float64((i*7+j*3)%5+1))
			}
		}
		trials := 2 + i%4
		observations[i] = NewObservation(x, float64(i%(trials+1)), trials)
	}
	return observations
}

func newTestPool(t *testing.T, threadsNum int) *Pool {
	t.Helper()
	pool := NewPool(threadsNum, nil)
	t.Cleanup(func() { require.NoError(t, pool.Close(time.Second)) })
	return pool
}

//must unwraps a (value, error) pair failing the test on error.
func must(t *testing.T) func(float64, error) float64 {
	return func(value float64, err error) float64 {
		t.Helper()
		require.NoError(t, err)
		return value
	}
}
