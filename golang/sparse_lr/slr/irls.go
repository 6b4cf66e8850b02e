package slr

import (
	"math"

	"github.com/cockroachdb/errors"
)

//ProbEpsilon bounds predicted probabilities away from 0 and 1.
const ProbEpsilon = 1e-15

//Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

//ClampProb clamps p to [ProbEpsilon, 1-ProbEpsilon].
func ClampProb(p float64) float64 {
	return math.Max(ProbEpsilon, math.Min(1-ProbEpsilon, p))
}

//BetasDotXi evaluates the linear predictor betas[0] + sum x[j]*betas[j+1].
//betas must cover the intercept and every index of x.
func BetasDotXi(betas []float64, x SparseVector) (float64, error) {
	if len(betas) == 0 || x.MaxIndex() >= len(betas)-1 {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d coefficients for feature %d", len(betas), x.MaxIndex())
	}
	return linearPredictor(betas, x), nil
}

func linearPredictor(betas []float64, x SparseVector) float64 {
	eta := betas[0]
	for _, e := range x.entries {
		eta += e.Value * betas[e.Index+1]
	}
	return eta
}

//WorkingSet holds the IRLS working weights Mi and working responses Zi of an observation array.
type WorkingSet struct {
	Mi []float64
	Zi []float64
}

//NewWorkingSet allocates a working set for n observations.
func NewWorkingSet(n int) WorkingSet {
	return WorkingSet{Mi: make([]float64, n), Zi: make([]float64, n)}
}

//ComputeWorkingSet fills ws for the observations of r using coefficients betas.
//Only the positions [r.Begin, r.End) of ws are written.
func ComputeWorkingSet(r DatasetRange[Observation], betas []float64, ws WorkingSet) {
	observations := r.Dataset()
	for it := r.Indices(); it.HasNext(); {
		i := it.GetNext()
		obs := &observations[i]
		eta := linearPredictor(betas, obs.X)
		if obs.Trials == 0 {
			ws.Mi[i] = 0
			ws.Zi[i] = eta
			continue
		}
		p := Sigmoid(eta)
		pc := ClampProb(p)
		trials := float64(obs.Trials)
		mi := trials * pc * (1 - pc)
		ws.Mi[i] = mi
		ws.Zi[i] = eta + (obs.Successes-trials*p)/mi
	}
}

//checkObservations verifies the counts of every observation and that every feature index
//fits the coefficient vector.
func checkObservations(observations []Observation, numFeatures int) error {
	for i := range observations {
		obs := &observations[i]
		if obs.Trials < 0 {
			return errors.Wrapf(ErrInvalidParameter, "observation %d has %d trials", i, obs.Trials)
		}
		if !(obs.Successes >= 0 && obs.Successes <= float64(obs.Trials)) {
			return errors.Wrapf(ErrInvalidParameter, "observation %d has %g successes out of %d trials", i, obs.Successes, obs.Trials)
		}
	}
	return checkFeatureIndices(observations, numFeatures)
}

func checkFeatureIndices(observations []Observation, numFeatures int) error {
	for i := range observations {
		x := observations[i].X
		if !x.IsEmpty() && x.entries[0].Index < 0 {
			return errors.Wrapf(ErrShapeMismatch, "observation %d has negative feature %d", i, x.entries[0].Index)
		}
		if maxIndex := x.MaxIndex(); maxIndex >= numFeatures {
			return errors.Wrapf(ErrShapeMismatch, "observation %d has feature %d, only %d features", i, maxIndex, numFeatures)
		}
	}
	return nil
}

//checkCoefficients verifies that betas holds the intercept and a coefficient for every feature of observations.
func checkCoefficients(observations []Observation, betas []float64) error {
	if len(betas) == 0 {
		return errors.Wrap(ErrShapeMismatch, "no coefficients")
	}
	return checkFeatureIndices(observations, len(betas)-1)
}

//TrainingEntropy is the summed cross entropy of the clamped predictions against observed
//successes and failures.
func TrainingEntropy(observations []Observation, betas []float64) (float64, error) {
	if err := checkCoefficients(observations, betas); err != nil {
		return 0, err
	}
	return trainingEntropy(observations, betas), nil
}

func trainingEntropy(observations []Observation, betas []float64) float64 {
	entropy := 0.0
	for i := range observations {
		entropy += observationEntropy(&observations[i], betas)
	}
	return entropy
}

func observationEntropy(obs *Observation, betas []float64) float64 {
	pc := ClampProb(Sigmoid(linearPredictor(betas, obs.X)))
	return -obs.Successes*math.Log(pc) - (float64(obs.Trials)-obs.Successes)*math.Log(1-pc)
}
