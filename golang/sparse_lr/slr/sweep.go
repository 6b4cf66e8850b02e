package slr

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

//Penalty is the elastic net penalty lambda*(alpha*L1 + (1-alpha)*L2) with per feature scale factors.
type Penalty struct {
	Alpha        float64
	Lambda       float64
	ScaleFactors []float64

	l1, l2 []float64
}

//NewPenalty validates the parameters and precomputes the per feature thresholds.
func NewPenalty(alpha, lambda float64, scaleFactors []float64, numFeatures int) (*Penalty, error) {
	if alpha < 0 || alpha > 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "alpha %g outside of [0, 1]", alpha)
	}
	if lambda < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "negative lambda %g", lambda)
	}
	if len(scaleFactors) != numFeatures {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d scale factors for %d features", len(scaleFactors), numFeatures)
	}
	p := &Penalty{
		Alpha:        alpha,
		Lambda:       lambda,
		ScaleFactors: scaleFactors,
		l1:           make([]float64, numFeatures),
		l2:           make([]float64, numFeatures),
	}
	for j, scale := range scaleFactors {
		p.l1[j] = lambda * alpha * scale
		p.l2[j] = lambda * (1 - alpha) * scale
	}
	return p, nil
}

//SoftThreshold shrinks c toward zero by t.
func SoftThreshold(c, t float64) float64 {
	switch {
	case c < -t:
		return c + t
	case c > t:
		return c - t
	}
	return 0
}

//Sweep performs one coordinate descent pass over all coordinates, updating coef in place.
//Coordinate j sees the values already written for coordinates below j.
func Sweep(stats *Statistics, coef []float64, penalty *Penalty) error {
	if stats == nil || stats.Covariance == nil || penalty == nil {
		return errors.Wrap(ErrInvalidParameter, "sweep without statistics or penalty")
	}
	size := stats.Size()
	if len(stats.CStatic) != size {
		return errors.Wrapf(ErrShapeMismatch, "%d per coordinate terms and %d static terms", size, len(stats.CStatic))
	}
	if r, c := stats.Covariance.Dims(); r != size || c != size {
		return errors.Wrapf(ErrShapeMismatch, "%dx%d covariance for %d coordinates", r, c, size)
	}
	if len(coef) != size {
		return errors.Wrapf(ErrShapeMismatch, "%d coefficients for %d coordinates", len(coef), size)
	}
	if len(penalty.l1) != size-1 || len(penalty.l2) != size-1 {
		return errors.Wrapf(ErrShapeMismatch, "penalty for %d features, statistics for %d", len(penalty.l1), size-1)
	}
	cov := stats.Covariance.RawMatrix()
	for j := 0; j < size; j++ {
		if stats.A[j] == 0 {
			coef[j] = 0
			continue
		}
		denom := stats.A[j]
		if j > 0 {
			denom += penalty.l2[j-1]
		}
		if denom == 0 {
			continue
		}
		row := cov.Data[j*cov.Stride : j*cov.Stride+size]
		cj := stats.CStatic[j] - floats.Dot(row, coef)/stats.TotalWeight
		if j == 0 {
			coef[0] = cj / denom
			continue
		}
		coef[j] = SoftThreshold(cj, penalty.l1[j-1]) / denom
	}
	return nil
}
