package slr

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

//TrainParams collect the arguments of one training call.
type TrainParams struct {
	Observations  []Observation
	NumFeatures   int
	Betas         []float64
	Alpha         float64
	Lambda        float64
	ScaleFactors  []float64
	Tolerance     float64
	MaxIterations int
}

//Validate checks the shapes and domains of the parameters.
func (p TrainParams) Validate() error {
	if len(p.Observations) == 0 {
		return ErrEmptyDataset
	}
	if p.NumFeatures < 0 {
		return errors.Wrapf(ErrInvalidParameter, "negative number of features %d", p.NumFeatures)
	}
	if len(p.Betas) != p.NumFeatures+1 {
		return errors.Wrapf(ErrShapeMismatch, "%d starting coefficients for %d features", len(p.Betas), p.NumFeatures)
	}
	if len(p.ScaleFactors) != p.NumFeatures {
		return errors.Wrapf(ErrShapeMismatch, "%d scale factors for %d features", len(p.ScaleFactors), p.NumFeatures)
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return errors.Wrapf(ErrInvalidParameter, "alpha %g outside of [0, 1]", p.Alpha)
	}
	if p.Lambda < 0 {
		return errors.Wrapf(ErrInvalidParameter, "negative lambda %g", p.Lambda)
	}
	if !(p.Tolerance > 0) {
		return errors.Wrapf(ErrInvalidParameter, "tolerance must be positive, got %g", p.Tolerance)
	}
	if p.MaxIterations < 1 {
		return errors.Wrapf(ErrInvalidParameter, "max iterations must be positive, got %d", p.MaxIterations)
	}
	return checkObservations(p.Observations, p.NumFeatures)
}

//Trainer fits coefficients for one (alpha, lambda) pair starting from TrainParams.Betas.
type Trainer interface {
	Train(ctx context.Context, params TrainParams) (*Result, error)
}

//SerialTrainer runs the whole training call on the calling goroutine.
type SerialTrainer struct {
	Logger *zap.Logger
}

//NewSerialTrainer creates a single threaded trainer.
func NewSerialTrainer(logger *zap.Logger) *SerialTrainer {
	return &SerialTrainer{Logger: logger}
}

//Train implements Trainer.
func (t *SerialTrainer) Train(ctx context.Context, params TrainParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger := orNop(t.Logger)
	start := time.Now()
	var timings PhaseTimings

	all := wholeRange(params.Observations)
	ws := NewWorkingSet(len(params.Observations))
	ComputeWorkingSet(all, params.Betas, ws)
	timings.IRLS = time.Since(start)

	phaseStart := time.Now()
	stats := StatisticsFromWorkingSet(all, ws, params.NumFeatures, TotalWeights(params.Observations))
	timings.Statistics = time.Since(phaseStart)

	entropy := func(betas []float64) (float64, error) {
		return trainingEntropy(params.Observations, betas), nil
	}
	return runSweeps(params, stats, entropy, start, timings, logger)
}

//ParallelTrainer shards the IRLS step and the statistics over a worker pool.
//The sweeps always run on the calling goroutine.
type ParallelTrainer struct {
	Pool       *Pool
	ThreadsNum int
	Logger     *zap.Logger
}

//NewParallelTrainer creates a trainer that splits the observations into threadsNum shards.
func NewParallelTrainer(pool *Pool, threadsNum int, logger *zap.Logger) *ParallelTrainer {
	return &ParallelTrainer{Pool: pool, ThreadsNum: threadsNum, Logger: logger}
}

//Train implements Trainer.
func (t *ParallelTrainer) Train(ctx context.Context, params TrainParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if t.Pool == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "parallel trainer without a pool")
	}
	if t.ThreadsNum < 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "threads number must be positive, got %d", t.ThreadsNum)
	}
	logger := orNop(t.Logger)
	start := time.Now()
	var timings PhaseTimings

	shards, err := SplitIntoRanges(params.Observations, shardCount(t.ThreadsNum, len(params.Observations)))
	if err != nil {
		return nil, err
	}

	ws, err := ComputeWorkingSetSharded(ctx, t.Pool, shards, params.Betas)
	if err != nil {
		return nil, err
	}
	timings.IRLS = time.Since(start)

	phaseStart := time.Now()
	stats, err := StatisticsSharded(ctx, t.Pool, shards, ws, params.NumFeatures, TotalWeights(params.Observations))
	if err != nil {
		return nil, err
	}
	timings.Statistics = time.Since(phaseStart)

	entropy := func(betas []float64) (float64, error) {
		return shardedEntropy(ctx, t.Pool, shards, betas)
	}
	return runSweeps(params, stats, entropy, start, timings, logger)
}

func shardedEntropy(ctx context.Context, pool *Pool, shards []DatasetRange[Observation], betas []float64) (float64, error) {
	partial := make([]float64, len(shards))
	tasks := make([]Task, len(shards))
	for k := range shards {
		k := k
		tasks[k] = TaskFunc(func(ctx context.Context) error {
			partial[k] = trainingEntropy(shards[k].Items(), betas)
			return nil
		})
	}
	if err := pool.RunAll(ctx, tasks); err != nil {
		return 0, errors.Wrap(err, "entropy phase")
	}
	total := 0.0
	for _, value := range partial {
		total += value
	}
	return total, nil
}

func runSweeps(
	params TrainParams,
	stats *Statistics,
	entropyOf func([]float64) (float64, error),
	start time.Time,
	timings PhaseTimings,
	logger *zap.Logger,
) (*Result, error) {
	penalty, err := NewPenalty(params.Alpha, params.Lambda, params.ScaleFactors, params.NumFeatures)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Alpha:  params.Alpha,
		Lambda: params.Lambda,
		Betas:  append([]float64(nil), params.Betas...),
		Status: StatusMaxIterations,
	}
	oldBetas := make([]float64, len(result.Betas))
	sweepsStart := time.Now()

	for result.Iterations < params.MaxIterations {
		copy(oldBetas, result.Betas)
		if err := Sweep(stats, result.Betas, penalty); err != nil {
			return nil, err
		}

		if result.MaxAbsDiffPct, err = MaxAbsDiffPct(oldBetas, result.Betas); err != nil {
			return nil, err
		}
		if result.Entropy, err = entropyOf(result.Betas); err != nil {
			return nil, err
		}
		result.Records = append(result.Records, IterationRecord{
			Iteration:     result.Iterations + 1,
			Alpha:         params.Alpha,
			Lambda:        params.Lambda,
			MaxAbsDiffPct: result.MaxAbsDiffPct,
			Entropy:       result.Entropy,
			Betas:         append([]float64(nil), result.Betas...),
			Elapsed:       time.Since(start),
		})
		logger.Debug("sweep",
			zap.Int("iteration", result.Iterations+1),
			zap.Float64("max_abs_diff_pct", result.MaxAbsDiffPct),
			zap.Float64("entropy", result.Entropy))
		result.Iterations++

		status, stop := stopStatus(result.MaxAbsDiffPct, params.Tolerance)
		result.Status = status
		if stop {
			break
		}
	}

	timings.Sweeps = time.Since(sweepsStart)
	timings.Total = time.Since(start)
	result.Timings = timings
	logger.Info("training finished",
		zap.Float64("alpha", params.Alpha),
		zap.Float64("lambda", params.Lambda),
		zap.Int("iterations", result.Iterations),
		zap.Stringer("status", result.Status),
		zap.Float64("entropy", result.Entropy),
		zap.Duration("irls", timings.IRLS),
		zap.Duration("statistics", timings.Statistics),
		zap.Duration("sweeps", timings.Sweeps))
	return result, nil
}
