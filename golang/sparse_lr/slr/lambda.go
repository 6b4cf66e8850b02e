package slr

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

//LambdaGrid returns size decreasing penalties exp(-(i*step + start)) with step = (end-start)/(size-1).
func LambdaGrid(size int, start, end float64) []float64 {
	if size <= 0 {
		return nil
	}
	step := 0.0
	if size > 1 {
		step = (end - start) / float64(size-1)
	}
	grid := make([]float64, size)
	for i := range grid {
		grid[i] = math.Exp(-(float64(i)*step + start))
	}
	return grid
}

//WithUnregularized appends the unregularized fit lambda = 0 to grid.
func WithUnregularized(grid []float64) []float64 {
	return append(append(make([]float64, 0, len(grid)+1), grid...), 0)
}

//LambdaScaleFactors weights each feature by the share of successes among the observations containing it.
//Features never associated with a success get 1/totalWeight.
func LambdaScaleFactors(observations []Observation, numFeatures int) ([]float64, error) {
	if err := checkObservations(observations, numFeatures); err != nil {
		return nil, err
	}
	totalWeight := TotalWeights(observations)
	if totalWeight == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "total weight is zero")
	}
	successes := make([]float64, numFeatures)
	for i := range observations {
		for _, e := range observations[i].X.entries {
			successes[e.Index] += observations[i].Successes
		}
	}
	scale := make([]float64, numFeatures)
	for j, s := range successes {
		if s == 0 {
			scale[j] = 1 / totalWeight
		} else {
			scale[j] = s / totalWeight
		}
	}
	return scale, nil
}

//UniformScaleFactors returns numFeatures ones.
func UniformScaleFactors(numFeatures int) []float64 {
	scale := make([]float64, numFeatures)
	for j := range scale {
		scale[j] = 1
	}
	return scale
}

func lambdaTitle(alpha, lambda float64) string {
	return fmt.Sprintf("alpha=%g lambda=%g", alpha, lambda)
}
