package slr

import "fmt"

//Observation is one training example: a sparse feature vector without the intercept,
//the number of trials and the number of successes among them.
type Observation struct {
	X         SparseVector
	Successes float64
	Trials    int
}

//NewObservation creates an observation with the given number of trials.
func NewObservation(x SparseVector, successes float64, trials int) Observation {
	return Observation{X: x, Successes: successes, Trials: trials}
}

//NewUnitObservation creates an observation with a single trial.
func NewUnitObservation(x SparseVector, successes float64) Observation {
	return NewObservation(x, successes, 1)
}

func (o Observation) String() string {
	return fmt.Sprintf("Observation{x=%v, successes=%g, trials=%d}", o.X, o.Successes, o.Trials)
}

//TotalWeights sums the trials of all observations.
func TotalWeights(observations []Observation) float64 {
	total := 0.0
	for _, o := range observations {
		total += float64(o.Trials)
	}
	return total
}

//TotalSuccesses sums the successes of all observations.
func TotalSuccesses(observations []Observation) float64 {
	total := 0.0
	for _, o := range observations {
		total += o.Successes
	}
	return total
}

//NumFeaturesOf returns one more than the largest feature index found in observations.
func NumFeaturesOf(observations []Observation) int {
	n := 0
	for _, o := range observations {
		if m := o.X.MaxIndex() + 1; m > n {
			n = m
		}
	}
	return n
}
