package slr

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

//NewtonResult is the outcome of FitNewton.
type NewtonResult struct {
	Betas      []float64
	Iterations int
	Converged  bool
}

//solveLinearSystem solves (hess + ridge*I') delta = grad where I' skips the intercept.
func solveLinearSystem(hess *mat.Dense, grad []float64, ridge float64) ([]float64, error) {
	d, _ := hess.Dims()
	lhs := mat.DenseCopyOf(hess)
	for i := 1; i < d; i++ {
		lhs.Set(i, i, lhs.At(i, i)+ridge)
	}
	rhs := mat.NewDense(d, 1, append([]float64(nil), grad...))
	var out mat.Dense
	if err := out.Solve(lhs, rhs); err != nil {
		return nil, errors.Wrap(err, "newton system")
	}
	return mat.Col(nil, 0, &out), nil
}

//FitNewton fits a ridge penalized logistic regression with full Newton steps on a dense Hessian.
//It is meant for small problems and serves as a reference solution.
func FitNewton(observations []Observation, numFeatures int, ridge, tolerance float64, maxIterations int) (*NewtonResult, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyDataset
	}
	if ridge < 0 || !(tolerance > 0) || maxIterations < 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "ridge %g, tolerance %g, max iterations %d", ridge, tolerance, maxIterations)
	}
	if err := checkObservations(observations, numFeatures); err != nil {
		return nil, err
	}

	size := numFeatures + 1
	betas := make([]float64, size)
	hess := mat.NewDense(size, size, nil)
	grad := make([]float64, size)
	xi := make([]float64, size)
	result := &NewtonResult{Betas: betas}

	for result.Iterations < maxIterations {
		hess.Zero()
		for j := range grad {
			grad[j] = -ridge * betas[j]
		}
		grad[0] = 0
		for i := range observations {
			obs := &observations[i]
			p := Sigmoid(linearPredictor(betas, obs.X))
			trials := float64(obs.Trials)
			w := trials * p * (1 - p)
			residual := obs.Successes - trials*p

			for j := range xi {
				xi[j] = 0
			}
			xi[0] = 1
			for _, e := range obs.X.entries {
				xi[e.Index+1] = e.Value
			}
			for j := 0; j < size; j++ {
				if xi[j] == 0 {
					continue
				}
				grad[j] += residual * xi[j]
				for k := 0; k < size; k++ {
					if xi[k] != 0 {
						hess.Set(j, k, hess.At(j, k)+w*xi[j]*xi[k])
					}
				}
			}
		}

		delta, err := solveLinearSystem(hess, grad, ridge)
		if err != nil {
			return nil, err
		}
		old := append([]float64(nil), betas...)
		for j := range betas {
			betas[j] += delta[j]
		}
		result.Iterations++
		change, err := MaxAbsDiffPct(old, betas)
		if err != nil {
			return nil, err
		}
		if HasConverged(change, tolerance) {
			result.Converged = true
			break
		}
	}
	return result, nil
}
