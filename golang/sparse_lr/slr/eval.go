package slr

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
)

//Entropy is the summed cross entropy of the clamped predictions.
func Entropy(observations []Observation, betas []float64) (float64, error) {
	return EntropyScaled(observations, betas, 1)
}

//EntropyNormalized is Entropy divided by the total number of trials.
func EntropyNormalized(observations []Observation, betas []float64) (float64, error) {
	s, err := scaledSums(observations, betas, 1)
	if err != nil {
		return 0, err
	}
	return s.entropy / s.trials, nil
}

//EntropyScaled is Entropy with every prediction multiplied by c before clamping.
func EntropyScaled(observations []Observation, betas []float64, c float64) (float64, error) {
	s, err := scaledSums(observations, betas, c)
	if err != nil {
		return 0, err
	}
	return s.entropy, nil
}

//Bias is (predicted successes - actual successes) / actual successes,
//math.MaxFloat64 when there are no successes.
func Bias(observations []Observation, betas []float64) (float64, error) {
	return BiasScaled(observations, betas, 1)
}

//BiasScaled is Bias with every prediction multiplied by c.
func BiasScaled(observations []Observation, betas []float64, c float64) (float64, error) {
	s, err := scaledSums(observations, betas, c)
	if err != nil {
		return 0, err
	}
	return s.bias(), nil
}

//PredRatio is the mean prediction over successes divided by the mean prediction over failures.
//It is zero when either side is empty.
func PredRatio(observations []Observation, betas []float64) (float64, error) {
	return PredRatioScaled(observations, betas, 1)
}

//PredRatioScaled is PredRatio with every prediction multiplied by c.
func PredRatioScaled(observations []Observation, betas []float64, c float64) (float64, error) {
	s, err := scaledSums(observations, betas, c)
	if err != nil {
		return 0, err
	}
	return s.predRatio(), nil
}

//ScaleFactor is actual successes divided by predicted successes, zero when nothing is predicted.
func ScaleFactor(observations []Observation, betas []float64) (float64, error) {
	s, err := scaledSums(observations, betas, 1)
	if err != nil {
		return 0, err
	}
	return s.scaleFactor(), nil
}

func scaledSums(observations []Observation, betas []float64, c float64) (evalSums, error) {
	var s evalSums
	if err := checkCoefficients(observations, betas); err != nil {
		return s, err
	}
	s.addScaled(observations, betas, c)
	return s, nil
}

//ModelErrorMetrics are the evaluation metrics of one trained model.
type ModelErrorMetrics struct {
	Lambda            float64
	ScaleFactor       float64
	PredRatio         float64
	Bias              float64
	EntropyNormalized float64
}

type evalSums struct {
	entropy       float64
	trials        float64
	predicted     float64
	successes     float64
	failures      float64
	successesProb float64
	failuresProb  float64
}

func (s *evalSums) addScaled(observations []Observation, betas []float64, c float64) {
	for i := range observations {
		obs := &observations[i]
		prob := c * Sigmoid(linearPredictor(betas, obs.X))
		pred := ClampProb(prob)
		trials := float64(obs.Trials)
		fails := trials - obs.Successes
		s.entropy += -obs.Successes*math.Log(pred) - fails*math.Log(1-pred)
		s.trials += trials
		s.predicted += prob * trials
		s.successes += obs.Successes
		s.failures += fails
		s.successesProb += obs.Successes * prob
		s.failuresProb += fails * prob
	}
}

func (s *evalSums) merge(other evalSums) {
	s.entropy += other.entropy
	s.trials += other.trials
	s.predicted += other.predicted
	s.successes += other.successes
	s.failures += other.failures
	s.successesProb += other.successesProb
	s.failuresProb += other.failuresProb
}

func (s *evalSums) bias() float64 {
	if s.successes == 0 {
		return math.MaxFloat64
	}
	return (s.predicted - s.successes) / s.successes
}

func (s *evalSums) predRatio() float64 {
	if s.successes == 0 || s.failuresProb == 0 {
		return 0
	}
	return (s.successesProb / s.successes) / (s.failuresProb / s.failures)
}

func (s *evalSums) scaleFactor() float64 {
	if s.predicted == 0 {
		return 0
	}
	return s.successes / s.predicted
}

func (s *evalSums) metrics(lambda float64) ModelErrorMetrics {
	return ModelErrorMetrics{
		Lambda:            lambda,
		ScaleFactor:       s.scaleFactor(),
		PredRatio:         s.predRatio(),
		Bias:              s.bias(),
		EntropyNormalized: s.entropy / s.trials,
	}
}

//EvaluateResults computes ModelErrorMetrics of every result over observations split into threadsNum shards.
//The metrics are returned in the order of results.
func EvaluateResults(ctx context.Context, pool *Pool, threadsNum int, observations []Observation, results []*Result) ([]ModelErrorMetrics, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyDataset
	}
	if threadsNum < 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "threads number must be positive, got %d", threadsNum)
	}
	for r, result := range results {
		if err := checkCoefficients(observations, result.Betas); err != nil {
			return nil, errors.Wrapf(err, "result %d", r)
		}
	}
	shards, err := SplitIntoRanges(observations, shardCount(threadsNum, len(observations)))
	if err != nil {
		return nil, err
	}

	partial := make([][]evalSums, len(shards))
	tasks := make([]Task, len(shards))
	for k := range shards {
		k := k
		tasks[k] = TaskFunc(func(ctx context.Context) error {
			partial[k] = make([]evalSums, len(results))
			for r, result := range results {
				partial[k][r].addScaled(shards[k].Items(), result.Betas, 1)
			}
			return nil
		})
	}
	if err := pool.RunAll(ctx, tasks); err != nil {
		return nil, errors.Wrap(err, "evaluation phase")
	}

	metrics := make([]ModelErrorMetrics, len(results))
	for r, result := range results {
		var total evalSums
		for k := range shards {
			total.merge(partial[k][r])
		}
		metrics[r] = total.metrics(result.Lambda)
	}
	return metrics, nil
}
