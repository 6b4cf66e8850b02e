package slr

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

//IterationRecord is a snapshot taken after one coordinate descent sweep.
type IterationRecord struct {
	//Iteration is the number of sweeps done, starting from 1.
	Iteration     int
	Alpha         float64
	Lambda        float64
	MaxAbsDiffPct float64
	Entropy       float64
	Betas         []float64
	Elapsed       time.Duration
}

//PhaseTimings collects wall time spent in the phases of one training call.
type PhaseTimings struct {
	IRLS       time.Duration
	Statistics time.Duration
	Sweeps     time.Duration
	Total      time.Duration
}

//Result is the outcome of one training call for a single (alpha, lambda) pair.
type Result struct {
	Alpha         float64
	Lambda        float64
	Betas         []float64
	Iterations    int
	MaxAbsDiffPct float64
	Entropy       float64
	Status        Status
	Timings       PhaseTimings
	Records       []IterationRecord
}

//Predict returns the probability of success for every observation.
func (r *Result) Predict(observations []Observation) ([]float64, error) {
	return Predict(r.Betas, observations)
}

//Predict returns sigmoid(eta) for every observation.
func Predict(betas []float64, observations []Observation) ([]float64, error) {
	if err := checkCoefficients(observations, betas); err != nil {
		return nil, err
	}
	prediction := make([]float64, len(observations))
	for i := range observations {
		prediction[i] = Sigmoid(linearPredictor(betas, observations[i].X))
	}
	return prediction, nil
}

//MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

//UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusConverged, StatusAllZero, StatusMaxIterations} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return errors.Wrapf(ErrMalformedInput, "unknown status %q", text)
}

//SaveResults writes results to filename as indented JSON.
func SaveResults(filename string, results []*Result) (err error) {
	dest, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", filename)
	}
	defer func() { err = errors.CombineErrors(err, dest.Close()) }()

	repr, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal results")
	}
	_, err = dest.Write(repr)
	return errors.Wrapf(err, "write %s", filename)
}

//LoadResults reads results saved by SaveResults.
func LoadResults(filename string) (results []*Result, err error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer func() { err = errors.CombineErrors(err, source.Close()) }()

	if err := json.NewDecoder(source).Decode(&results); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s", filename), ErrMalformedInput)
	}
	return results, nil
}

//LearningCurvesDump is the per lambda training entropy by sweep.
type LearningCurvesDump struct {
	Titles []string
	Values [][]float64
}

//NewLearningCurvesDump collects the entropy curves of results, one title per lambda.
func NewLearningCurvesDump(results []*Result) LearningCurvesDump {
	dump := LearningCurvesDump{Titles: make([]string, 0, len(results)), Values: make([][]float64, 0, len(results))}
	for _, result := range results {
		dump.Titles = append(dump.Titles, lambdaTitle(result.Alpha, result.Lambda))
		curve := make([]float64, len(result.Records))
		for k, record := range result.Records {
			curve[k] = record.Entropy
		}
		dump.Values = append(dump.Values, curve)
	}
	return dump
}

//DumpLearningCurves writes the learning curves of results to filename as JSON.
func DumpLearningCurves(filename string, results []*Result) (err error) {
	destination, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer func() { err = errors.CombineErrors(err, destination.Close()) }()

	bytesResult, err := json.MarshalIndent(NewLearningCurvesDump(results), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal learning curves")
	}
	_, err = destination.Write(bytesResult)
	return errors.Wrapf(err, "write %s", filename)
}
