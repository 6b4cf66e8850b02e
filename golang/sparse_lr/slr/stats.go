package slr

import (
	"context"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//Statistics are the sufficient statistics of one IRLS step.
//A and CStatic are normalized by TotalWeight, Covariance is not. Coordinate 0 is the intercept.
type Statistics struct {
	A           []float64
	CStatic     []float64
	Covariance  *mat.Dense
	TotalWeight float64
}

//Size returns the number of coordinates including the intercept.
func (s *Statistics) Size() int {
	return len(s.A)
}

//accumulateTerms adds the raw per coordinate terms of r to a and c.
func accumulateTerms(r DatasetRange[Observation], ws WorkingSet, a, c []float64) {
	observations := r.Dataset()
	for it := r.Indices(); it.HasNext(); {
		i := it.GetNext()
		mi, zi := ws.Mi[i], ws.Zi[i]
		a[0] += mi
		c[0] += mi * zi
		for _, e := range observations[i].X.entries {
			j := e.Index + 1
			a[j] += mi * e.Value * e.Value
			c[j] += mi * e.Value * zi
		}
	}
}

//accumulateCovariance adds the weighted cross products of r to the row major size x size matrix cov.
//The diagonal is never written.
func accumulateCovariance(r DatasetRange[Observation], ws WorkingSet, cov []float64, size int) {
	observations := r.Dataset()
	for it := r.Indices(); it.HasNext(); {
		i := it.GetNext()
		mi := ws.Mi[i]
		entries := observations[i].X.entries
		for p, ep := range entries {
			j := ep.Index + 1
			v := mi * ep.Value
			cov[j] += v
			cov[j*size] += v
			for _, eq := range entries[p+1:] {
				k := eq.Index + 1
				w := v * eq.Value
				cov[j*size+k] += w
				cov[k*size+j] += w
			}
		}
	}
}

func normalize(a, c []float64, totalWeight float64) {
	floats.Scale(1/totalWeight, a)
	floats.Scale(1/totalWeight, c)
}

//ComputeStatistics runs the IRLS step and accumulates the sufficient statistics on the calling goroutine.
func ComputeStatistics(observations []Observation, numFeatures int, betas []float64) (*Statistics, error) {
	totalWeight, err := checkStatisticsInput(observations, numFeatures, betas)
	if err != nil {
		return nil, err
	}
	all := wholeRange(observations)
	ws := NewWorkingSet(len(observations))
	ComputeWorkingSet(all, betas, ws)
	return StatisticsFromWorkingSet(all, ws, numFeatures, totalWeight), nil
}

func wholeRange(observations []Observation) DatasetRange[Observation] {
	return DatasetRange[Observation]{Begin: 0, End: len(observations), dataset: observations}
}

//StatisticsFromWorkingSet accumulates and normalizes the statistics of all from a computed working set.
func StatisticsFromWorkingSet(all DatasetRange[Observation], ws WorkingSet, numFeatures int, totalWeight float64) *Statistics {
	size := numFeatures + 1
	stats := &Statistics{
		A:           make([]float64, size),
		CStatic:     make([]float64, size),
		Covariance:  mat.NewDense(size, size, nil),
		TotalWeight: totalWeight,
	}
	accumulateTerms(all, ws, stats.A, stats.CStatic)
	normalize(stats.A, stats.CStatic, totalWeight)
	accumulateCovariance(all, ws, stats.Covariance.RawMatrix().Data, size)
	return stats
}

//ComputeStatisticsSharded does the same work as ComputeStatistics over the given shards on the pool.
//Each phase ends with a barrier; shard results are summed in shard order and normalized afterwards.
func ComputeStatisticsSharded(ctx context.Context, pool *Pool, shards []DatasetRange[Observation], numFeatures int, betas []float64) (*Statistics, error) {
	if len(shards) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no shards")
	}
	observations := shards[0].Dataset()
	totalWeight, err := checkStatisticsInput(observations, numFeatures, betas)
	if err != nil {
		return nil, err
	}

	ws, err := ComputeWorkingSetSharded(ctx, pool, shards, betas)
	if err != nil {
		return nil, err
	}
	return StatisticsSharded(ctx, pool, shards, ws, numFeatures, totalWeight)
}

//ComputeWorkingSetSharded runs ComputeWorkingSet for every shard on the pool.
//Shards write disjoint positions of the shared working set.
func ComputeWorkingSetSharded(ctx context.Context, pool *Pool, shards []DatasetRange[Observation], betas []float64) (WorkingSet, error) {
	ws := NewWorkingSet(len(shards[0].Dataset()))
	tasks := make([]Task, len(shards))
	for k := range shards {
		shard := shards[k]
		tasks[k] = TaskFunc(func(ctx context.Context) error {
			ComputeWorkingSet(shard, betas, ws)
			return nil
		})
	}
	if err := pool.RunAll(ctx, tasks); err != nil {
		return WorkingSet{}, errors.Wrap(err, "irls phase")
	}
	return ws, nil
}

//StatisticsSharded accumulates raw per shard statistics on the pool and merges them in shard order.
//The covariance partials live in one (shards, size, size) tensor which is reduced along the shard axis.
//The result equals the serial statistics bit for bit only when the partial sums are exact,
//for example on integer valued data. Otherwise the two agree up to rounding.
func StatisticsSharded(ctx context.Context, pool *Pool, shards []DatasetRange[Observation], ws WorkingSet, numFeatures int, totalWeight float64) (*Statistics, error) {
	if len(shards) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no shards")
	}
	size := numFeatures + 1
	partialA := make([][]float64, len(shards))
	partialC := make([][]float64, len(shards))
	partialCov := tensor.New(tensor.WithShape(len(shards), size, size), tensor.Of(tensor.Float64))
	slabs := partialCov.Float64s()

	tasks := make([]Task, len(shards))
	for k := range shards {
		k := k
		tasks[k] = TaskFunc(func(ctx context.Context) error {
			partialA[k] = make([]float64, size)
			partialC[k] = make([]float64, size)
			accumulateTerms(shards[k], ws, partialA[k], partialC[k])
			accumulateCovariance(shards[k], ws, slabs[k*size*size:(k+1)*size*size], size)
			return nil
		})
	}
	if err := pool.RunAll(ctx, tasks); err != nil {
		return nil, errors.Wrap(err, "statistics phase")
	}

	merged, err := partialCov.Sum(0)
	if err != nil {
		return nil, errors.Wrap(err, "merge covariance")
	}
	stats := &Statistics{
		A:           make([]float64, size),
		CStatic:     make([]float64, size),
		Covariance:  mat.NewDense(size, size, merged.Float64s()),
		TotalWeight: totalWeight,
	}
	for k := range shards {
		floats.Add(stats.A, partialA[k])
		floats.Add(stats.CStatic, partialC[k])
	}
	normalize(stats.A, stats.CStatic, totalWeight)
	return stats, nil
}

func checkStatisticsInput(observations []Observation, numFeatures int, betas []float64) (float64, error) {
	if len(observations) == 0 {
		return 0, ErrEmptyDataset
	}
	if numFeatures < 0 {
		return 0, errors.Wrapf(ErrInvalidParameter, "negative number of features %d", numFeatures)
	}
	if len(betas) != numFeatures+1 {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d coefficients for %d features", len(betas), numFeatures)
	}
	if err := checkObservations(observations, numFeatures); err != nil {
		return 0, err
	}
	totalWeight := TotalWeights(observations)
	if totalWeight == 0 {
		return 0, errors.Wrap(ErrEmptyDataset, "total weight is zero")
	}
	return totalWeight, nil
}
