package slr

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

//LRParams collect arguments required to construct an LR.
type LRParams struct {
	Observations  []Observation
	NumFeatures   int
	InitialBetas  []float64
	Alpha         float64
	LambdaGrid    []float64
	ScaleFactors  []float64
	Tolerance     float64
	MaxIterations int
	IRLSRounds    int
	Trainer       Trainer
	Logger        *zap.Logger
}

//LR walks a lambda grid calling a Trainer for every lambda.
type LR struct {
	params         LRParams
	totalSuccesses float64
	totalWeights   float64
	initialBetas   []float64
	logger         *zap.Logger
}

//NewLR creates an orchestrator. Missing initial coefficients are zeros with the intercept
//set to the log odds of the global success rate.
func NewLR(params LRParams) (*LR, error) {
	if len(params.Observations) == 0 {
		return nil, ErrEmptyDataset
	}
	if params.Trainer == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "no trainer")
	}
	if params.IRLSRounds == 0 {
		params.IRLSRounds = 1
	}
	if params.IRLSRounds < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "negative number of irls rounds %d", params.IRLSRounds)
	}
	lr := &LR{
		params:         params,
		totalSuccesses: TotalSuccesses(params.Observations),
		totalWeights:   TotalWeights(params.Observations),
		logger:         orNop(params.Logger).Named("lr"),
	}
	if lr.totalWeights == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "total weight is zero")
	}
	if params.InitialBetas == nil {
		lr.initialBetas = make([]float64, params.NumFeatures+1)
		lr.initialBetas[0] = lr.GuessInitialIntercept()
	} else {
		if len(params.InitialBetas) != params.NumFeatures+1 {
			return nil, errors.Wrapf(ErrShapeMismatch, "%d initial coefficients for %d features", len(params.InitialBetas), params.NumFeatures)
		}
		lr.initialBetas = append([]float64(nil), params.InitialBetas...)
	}
	return lr, nil
}

//TotalSuccesses returns the sum of successes over the observations.
func (lr *LR) TotalSuccesses() float64 {
	return lr.totalSuccesses
}

//TotalWeights returns the sum of trials over the observations.
func (lr *LR) TotalWeights() float64 {
	return lr.totalWeights
}

//InitialBetas returns a copy of the starting coefficients.
func (lr *LR) InitialBetas() []float64 {
	return append([]float64(nil), lr.initialBetas...)
}

//GuessInitialIntercept returns log(ctr/(1-ctr)) for the global success rate ctr.
func (lr *LR) GuessInitialIntercept() float64 {
	ctr := lr.totalSuccesses / lr.totalWeights
	return math.Log(ctr / (1 - ctr))
}

//CalculateBetas trains one model per lambda of the grid. With warmStart every call starts from the
//previous solution, otherwise from the initial coefficients.
func (lr *LR) CalculateBetas(ctx context.Context, warmStart bool) ([]*Result, error) {
	results := make([]*Result, 0, len(lr.params.LambdaGrid))
	var previous *Result
	for _, lambda := range lr.params.LambdaGrid {
		start := lr.initialBetas
		if warmStart && previous != nil {
			start = previous.Betas
		}
		result, err := lr.CalculateBetasAt(ctx, start, lambda)
		if err != nil {
			return nil, errors.Wrapf(err, "lambda %g", lambda)
		}
		results = append(results, result)
		previous = result
	}
	return results, nil
}

//CalculateBetasAt trains a model for a single lambda starting from startBetas.
//Every IRLS round after the first restarts the trainer from the previous round's coefficients.
func (lr *LR) CalculateBetasAt(ctx context.Context, startBetas []float64, lambda float64) (*Result, error) {
	params := TrainParams{
		Observations:  lr.params.Observations,
		NumFeatures:   lr.params.NumFeatures,
		Betas:         append([]float64(nil), startBetas...),
		Alpha:         lr.params.Alpha,
		Lambda:        lambda,
		ScaleFactors:  lr.params.ScaleFactors,
		Tolerance:     lr.params.Tolerance,
		MaxIterations: lr.params.MaxIterations,
	}

	var result *Result
	for round := 0; round < lr.params.IRLSRounds; round++ {
		next, err := lr.params.Trainer.Train(ctx, params)
		if err != nil {
			return nil, err
		}
		if result != nil {
			next.Records = append(result.Records, next.Records...)
			next.Timings.Total += result.Timings.Total
		}
		result = next
		change, err := MaxAbsDiffPct(params.Betas, result.Betas)
		if err != nil {
			return nil, err
		}
		lr.logger.Debug("irls round",
			zap.Int("round", round),
			zap.Float64("lambda", lambda),
			zap.Float64("change", change))
		if HasConverged(change, lr.params.Tolerance) {
			break
		}
		params.Betas = result.Betas
	}
	return result, nil
}
