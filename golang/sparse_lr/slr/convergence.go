package slr

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

//Status tells why a training call stopped.
type Status int

const (
	//StatusConverged means the normalized change dropped within tolerance.
	StatusConverged Status = iota
	//StatusAllZero means every coefficient is zero, which is reported as converged by the sentinel.
	StatusAllZero
	//StatusMaxIterations means the iteration cap was hit first.
	StatusMaxIterations
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusAllZero:
		return "all_zero"
	case StatusMaxIterations:
		return "max_iterations"
	}
	return "unknown"
}

//AllZeroSentinel is the convergence metric of an all zero coefficient vector.
const AllZeroSentinel = -math.MaxFloat64

//MaxAbsDiffPct returns max|newBetas-oldBetas| divided by the L1 norm of newBetas,
//or AllZeroSentinel when that norm is zero.
func MaxAbsDiffPct(oldBetas, newBetas []float64) (float64, error) {
	if len(oldBetas) != len(newBetas) {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d old and %d new coefficients", len(oldBetas), len(newBetas))
	}
	sumAbs := floats.Norm(newBetas, 1)
	if sumAbs == 0 {
		return AllZeroSentinel, nil
	}
	maxDiff := 0.0
	for j := range newBetas {
		if d := math.Abs(newBetas[j] - oldBetas[j]); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff / sumAbs, nil
}

//HasConverged compares a convergence metric with the tolerance.
func HasConverged(maxAbsDiffPct, tolerance float64) bool {
	return maxAbsDiffPct <= tolerance
}

func stopStatus(maxAbsDiffPct, tolerance float64) (Status, bool) {
	switch {
	case maxAbsDiffPct == AllZeroSentinel:
		return StatusAllZero, true
	case HasConverged(maxAbsDiffPct, tolerance):
		return StatusConverged, true
	}
	return StatusMaxIterations, false
}
