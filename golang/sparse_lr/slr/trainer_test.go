package slr

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticParams(t *testing.T, numObservations, numFeatures int) TrainParams {
	t.Helper()
	observations, _, err := CreateTestData(numObservations, numFeatures, 0.5, DefaultSyntheticSeeds)
	require.NoError(t, err)
	scale, err := LambdaScaleFactors(observations, numFeatures)
	require.NoError(t, err)
	return TrainParams{
		Observations:  observations,
		NumFeatures:   numFeatures,
		Betas:         make([]float64, numFeatures+1),
		Alpha:         0.7,
		Lambda:        0.01,
		ScaleFactors:  scale,
		Tolerance:     1e-9,
		MaxIterations: 500,
	}
}

func TestTrainParamsValidate(t *testing.T) {
	params := syntheticParams(t, 20, 4)
	require.NoError(t, params.Validate())

	broken := params
	broken.ScaleFactors = broken.ScaleFactors[:3]
	assert.True(t, errors.Is(broken.Validate(), ErrShapeMismatch))

	broken = params
	broken.Betas = make([]float64, 4)
	assert.True(t, errors.Is(broken.Validate(), ErrShapeMismatch))

	broken = params
	broken.NumFeatures = 2
	broken.Betas = make([]float64, 3)
	broken.ScaleFactors = []float64{1, 1}
	assert.True(t, errors.Is(broken.Validate(), ErrShapeMismatch), "feature index beyond the coefficient vector")

	broken = params
	broken.Alpha = 1.5
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidParameter))

	broken = params
	broken.Tolerance = 0
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidParameter))

	broken = params
	broken.MaxIterations = 0
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidParameter))

	broken = params
	broken.Observations = nil
	assert.True(t, errors.Is(broken.Validate(), ErrEmptyDataset))

	broken = params
	broken.Observations = append([]Observation(nil), params.Observations...)
	broken.Observations[0] = NewObservation(SparseVector{}, 3, 2)
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidParameter), "more successes than trials")
}

func TestSerialTrainerConverges(t *testing.T) {
	params := syntheticParams(t, 100, 6)
	result, err := NewSerialTrainer(nil).Train(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, result.Status)
	assert.Less(t, result.Iterations, params.MaxIterations)
	assert.LessOrEqual(t, result.MaxAbsDiffPct, params.Tolerance)
	require.Len(t, result.Records, result.Iterations)
	assert.Equal(t, result.Betas, result.Records[len(result.Records)-1].Betas)
	assert.InDelta(t, must(t)(TrainingEntropy(params.Observations, result.Betas)), result.Entropy, 1e-9)
	for i, record := range result.Records {
		assert.Equal(t, i+1, record.Iteration)
	}
	assert.Equal(t, result.Iterations, result.Records[len(result.Records)-1].Iteration)
	assert.Equal(t, params.Lambda, result.Lambda)
	assert.Equal(t, make([]float64, 7), params.Betas, "starting coefficients are not modified")
}

func TestTrainerIterationCap(t *testing.T) {
	params := syntheticParams(t, 60, 5)
	params.MaxIterations = 2
	params.Tolerance = 1e-300
	result, err := NewSerialTrainer(nil).Train(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, StatusMaxIterations, result.Status)
	assert.Len(t, result.Records, 2)
}

func TestTrainerAllZeroSolution(t *testing.T) {
	observations := []Observation{
		NewObservation(sparseFromPairs(0, 1), 2, 4),
		NewObservation(sparseFromPairs(1, 2), 3, 6),
		NewObservation(sparseFromPairs(0, 1, 1, 1), 1, 2),
	}
	params := TrainParams{
		Observations:  observations,
		NumFeatures:   2,
		Betas:         make([]float64, 3),
		Alpha:         1,
		Lambda:        1e6,
		ScaleFactors:  []float64{1, 1},
		Tolerance:     1e-6,
		MaxIterations: 100,
	}
	result, err := NewSerialTrainer(nil).Train(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, StatusAllZero, result.Status)
	assert.Equal(t, 1, result.Iterations)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Records[0].Iteration)
	assert.Equal(t, AllZeroSentinel, result.MaxAbsDiffPct)
	assert.Equal(t, []float64{0, 0, 0}, result.Betas)
}

func TestParallelTrainerMatchesSerial(t *testing.T) {
	params := syntheticParams(t, 150, 8)
	serial, err := NewSerialTrainer(nil).Train(context.Background(), params)
	require.NoError(t, err)

	pool := newTestPool(t, 4)
	for _, threads := range []int{1, 3, 4, 1000} {
		parallel, err := NewParallelTrainer(pool, threads, nil).Train(context.Background(), params)
		require.NoError(t, err)
		assert.InDeltaSlice(t, serial.Betas, parallel.Betas, 1e-6, "threads %d", threads)
		assert.InEpsilon(t, serial.Entropy, parallel.Entropy, 1e-9)
		assert.Equal(t, serial.Status, parallel.Status)
	}
}

func TestParallelTrainerErrors(t *testing.T) {
	params := syntheticParams(t, 20, 4)
	_, err := NewParallelTrainer(nil, 2, nil).Train(context.Background(), params)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	pool := newTestPool(t, 2)
	_, err = NewParallelTrainer(pool, 0, nil).Train(context.Background(), params)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	closed := NewPool(1, nil)
	require.NoError(t, closed.Close(time.Second))
	_, err = NewParallelTrainer(closed, 2, nil).Train(context.Background(), params)
	assert.True(t, errors.Is(err, ErrPoolClosed))
}
