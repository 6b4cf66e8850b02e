package slr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func unitWorkingSet(n int) WorkingSet {
	ws := NewWorkingSet(n)
	for i := range ws.Mi {
		ws.Mi[i] = 1
		ws.Zi[i] = float64(i + 1)
	}
	return ws
}

func TestCovarianceOfThreeObservations(t *testing.T) {
	observations := threeObservations(t)
	ws := unitWorkingSet(len(observations))
	stats := StatisticsFromWorkingSet(wholeRange(observations), ws, 10, TotalWeights(observations))

	expected := mat.NewDense(11, 11, nil)
	for i, row := range threeObservationsCovariance {
		expected.SetRow(i, row)
	}
	assert.True(t, mat.Equal(expected, stats.Covariance), "covariance\n%v", mat.Formatted(stats.Covariance))
	assert.True(t, mat.Equal(stats.Covariance, stats.Covariance.T()))
	for j := 0; j < 11; j++ {
		assert.Zero(t, stats.Covariance.At(j, j))
	}
}

func TestPerCoordinateTerms(t *testing.T) {
	observations := threeObservations(t)
	ws := unitWorkingSet(len(observations))
	stats := StatisticsFromWorkingSet(wholeRange(observations), ws, 10, TotalWeights(observations))

	assert.Equal(t, 30.0, stats.TotalWeight)
	assert.InDelta(t, 3.0/30, stats.A[0], 1e-15)
	assert.InDelta(t, (1.0+2+3)/30, stats.CStatic[0], 1e-15)
	assert.Zero(t, stats.A[1])
	// feature 3 appears in the first and the third observation
	assert.InDelta(t, (9.0+9)/30, stats.A[4], 1e-15)
	assert.InDelta(t, (3.0*1+3*3)/30, stats.CStatic[4], 1e-15)
}

func TestShardedStatisticsMatchSerialExactly(t *testing.T) {
	observations := integerObservations(t, 23, 6)
	ws := unitWorkingSet(len(observations))
	for i := range ws.Mi {
		ws.Mi[i] = float64(1 + i%3)
		ws.Zi[i] = float64(i%5 - 2)
	}
	totalWeight := TotalWeights(observations)
	serial := StatisticsFromWorkingSet(wholeRange(observations), ws, 6, totalWeight)

	pool := newTestPool(t, 3)
	for shards := 1; shards <= 5; shards++ {
		ranges, err := SplitIntoRanges(observations, shards)
		require.NoError(t, err)
		sharded, err := StatisticsSharded(context.Background(), pool, ranges, ws, 6, totalWeight)
		require.NoError(t, err)

		assert.Equal(t, serial.A, sharded.A, "shards %d", shards)
		assert.Equal(t, serial.CStatic, sharded.CStatic, "shards %d", shards)
		assert.True(t, mat.Equal(serial.Covariance, sharded.Covariance), "shards %d", shards)
	}
}

func TestStatisticsShardedFailingShard(t *testing.T) {
	observations := integerObservations(t, 9, 4)
	ranges, err := SplitIntoRanges(observations, 3)
	require.NoError(t, err)
	pool := newTestPool(t, 2)

	stats, err := StatisticsSharded(context.Background(), pool, ranges, unitWorkingSet(2), 4, TotalWeights(observations))
	assert.True(t, errors.Is(err, ErrTaskFailed), "error %v", err)
	assert.Nil(t, stats)

	stats, err = StatisticsSharded(context.Background(), pool, nil, unitWorkingSet(2), 4, 1)
	assert.True(t, errors.Is(err, ErrEmptyDataset))
	assert.Nil(t, stats)
}

func TestComputeStatisticsShardedMatchesSerial(t *testing.T) {
	observations, _, err := CreateTestData(120, 8, 0.5, DefaultSyntheticSeeds)
	require.NoError(t, err)
	betas := MakeBetas(9, 3)
	serial, err := ComputeStatistics(observations, 8, betas)
	require.NoError(t, err)

	pool := newTestPool(t, 4)
	ranges, err := SplitIntoRanges(observations, 7)
	require.NoError(t, err)
	sharded, err := ComputeStatisticsSharded(context.Background(), pool, ranges, 8, betas)
	require.NoError(t, err)

	assert.InDeltaSlice(t, serial.A, sharded.A, 1e-9)
	assert.InDeltaSlice(t, serial.CStatic, sharded.CStatic, 1e-9)
	assert.True(t, mat.EqualApprox(serial.Covariance, sharded.Covariance, 1e-9))
}

func TestComputeStatisticsErrors(t *testing.T) {
	observations := threeObservations(t)
	_, err := ComputeStatistics(nil, 10, make([]float64, 11))
	assert.True(t, errors.Is(err, ErrEmptyDataset))
	_, err = ComputeStatistics(observations, 10, make([]float64, 10))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = ComputeStatistics(observations, 8, make([]float64, 9))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	zeroWeight := []Observation{NewObservation(SparseVector{}, 0, 0)}
	_, err = ComputeStatistics(zeroWeight, 0, []float64{0})
	assert.True(t, errors.Is(err, ErrEmptyDataset))
}
