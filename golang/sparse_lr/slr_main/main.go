package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tarstars/sparse_elastic_lr/golang/sparse_lr/slr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const poolShutdownTimeout = 10 * time.Second

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	slr.HandleError(err)
	defer func() { slr.HandleError(file.Close()) }()

	decoder := yaml.NewDecoder(file)
	slr.HandleError(decoder.Decode(out))
}

//DataConfig points either to a tsv file or to a triple of npy files.
type DataConfig struct {
	FileNameTSV       string `yaml:"filename_tsv"`
	FileNameFeatures  string `yaml:"filename_features"`
	FileNameTrials    string `yaml:"filename_trials"`
	FileNameSuccesses string `yaml:"filename_successes"`
}

func (dc DataConfig) load() ([]slr.Observation, int) {
	if dc.FileNameTSV != "" {
		zap.L().Info("load tsv", zap.String("file", dc.FileNameTSV))
		observations, numFeatures, err := slr.ReadTSVFile(dc.FileNameTSV)
		slr.HandleError(err)
		return observations, numFeatures
	}
	zap.L().Info("load npy", zap.String("features", dc.FileNameFeatures))
	observations, numFeatures, err := slr.ReadNpyObservations(dc.FileNameFeatures, dc.FileNameTrials, dc.FileNameSuccesses)
	slr.HandleError(err)
	return observations, numFeatures
}

type TestConfig struct {
	Description string     `yaml:"description"`
	Data        DataConfig `yaml:"data"`
}

type TrainConfig struct {
	Data                    DataConfig   `yaml:"data"`
	Tests                   []TestConfig `yaml:"tests"`
	FileNameResults         string       `yaml:"filename_results"`
	FileNameCoefficientPath string       `yaml:"filename_coefficient_path"`
	Alpha                   float64      `yaml:"alpha"`
	LambdaGridSize          int          `yaml:"lambda_grid_size"`
	LambdaGridStart         float64      `yaml:"lambda_grid_start"`
	LambdaGridEnd           float64      `yaml:"lambda_grid_end"`
	Unregularized           bool         `yaml:"unregularized"`
	UniformScaleFactors     bool         `yaml:"uniform_scale_factors"`
	WarmStart               bool         `yaml:"warm_start"`
	Tolerance               float64      `yaml:"tolerance"`
	MaxIterations           int          `yaml:"max_iterations"`
	IRLSRounds              int          `yaml:"irls_rounds"`
	ThreadsNum              int          `yaml:"threads_num"`
}

func newTrainer(pool *slr.Pool, threadsNum int) slr.Trainer {
	if threadsNum > 1 {
		return slr.NewParallelTrainer(pool, threadsNum, zap.L())
	}
	return slr.NewSerialTrainer(zap.L())
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)
	if trainConfig.ThreadsNum < 1 {
		trainConfig.ThreadsNum = 1
	}

	observations, numFeatures := trainConfig.Data.load()

	grid := slr.LambdaGrid(trainConfig.LambdaGridSize, trainConfig.LambdaGridStart, trainConfig.LambdaGridEnd)
	if trainConfig.Unregularized {
		grid = slr.WithUnregularized(grid)
	}

	scaleFactors := slr.UniformScaleFactors(numFeatures)
	if !trainConfig.UniformScaleFactors {
		var err error
		scaleFactors, err = slr.LambdaScaleFactors(observations, numFeatures)
		slr.HandleError(err)
	}

	pool := slr.NewPool(trainConfig.ThreadsNum, zap.L())
	defer func() { slr.HandleError(pool.Close(poolShutdownTimeout)) }()

	lr, err := slr.NewLR(slr.LRParams{
		Observations:  observations,
		NumFeatures:   numFeatures,
		Alpha:         trainConfig.Alpha,
		LambdaGrid:    grid,
		ScaleFactors:  scaleFactors,
		Tolerance:     trainConfig.Tolerance,
		MaxIterations: trainConfig.MaxIterations,
		IRLSRounds:    trainConfig.IRLSRounds,
		Trainer:       newTrainer(pool, trainConfig.ThreadsNum),
		Logger:        zap.L(),
	})
	slr.HandleError(err)

	ctx := context.Background()
	results, err := lr.CalculateBetas(ctx, trainConfig.WarmStart)
	slr.HandleError(err)

	for _, testConfig := range trainConfig.Tests {
		testObservations, _ := testConfig.Data.load()
		metrics, err := slr.EvaluateResults(ctx, pool, trainConfig.ThreadsNum, testObservations, results)
		slr.HandleError(err)
		for _, m := range metrics {
			zap.L().Info("test metrics",
				zap.String("description", testConfig.Description),
				zap.Float64("lambda", m.Lambda),
				zap.Float64("entropy_normalized", m.EntropyNormalized),
				zap.Float64("bias", m.Bias),
				zap.Float64("pred_ratio", m.PredRatio),
				zap.Float64("scale_factor", m.ScaleFactor))
		}
	}

	slr.HandleError(slr.SaveResults(trainConfig.FileNameResults, results))
	if trainConfig.FileNameCoefficientPath != "" && len(results) > 0 {
		slr.HandleError(slr.WriteNpy(trainConfig.FileNameCoefficientPath, slr.CoefficientPath(results)))
	}
}

func loadResult(fileNameResults string, resultIndex int) *slr.Result {
	results, err := slr.LoadResults(fileNameResults)
	slr.HandleError(err)
	if resultIndex < 0 || resultIndex >= len(results) {
		slr.HandleError(errors.Newf("result index %d outside of %d results", resultIndex, len(results)))
	}
	return results[resultIndex]
}

type PredictConfig struct {
	Data               DataConfig `yaml:"data"`
	FileNameResults    string     `yaml:"filename_results"`
	ResultIndex        int        `yaml:"result_index"`
	FileNamePrediction string     `yaml:"filename_prediction"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	observations, _ := predictConfig.Data.load()
	result := loadResult(predictConfig.FileNameResults, predictConfig.ResultIndex)

	prediction, err := result.Predict(observations)
	slr.HandleError(err)
	slr.HandleError(slr.WriteNpy(predictConfig.FileNamePrediction, mat.NewDense(len(prediction), 1, prediction)))
}

type LcurveConfig struct {
	Data                  DataConfig `yaml:"data"`
	FileNameResults       string     `yaml:"filename_results"`
	ResultIndex           int        `yaml:"result_index"`
	LearningCurveFileName string     `yaml:"filename_learning_curve"`
}

//lcurve evaluates the normalized entropy of every sweep of one result on the given data.
func lcurve(srcConfig string) {
	var lcurveConfig LcurveConfig
	decodeConfig(srcConfig, &lcurveConfig)

	observations, _ := lcurveConfig.Data.load()
	result := loadResult(lcurveConfig.FileNameResults, lcurveConfig.ResultIndex)
	if len(result.Records) == 0 {
		slr.HandleError(errors.New("result has no iteration records"))
	}

	learningCurve := mat.NewDense(len(result.Records), 1, nil)
	for k, record := range result.Records {
		entropy, err := slr.EntropyNormalized(observations, record.Betas)
		slr.HandleError(err)
		learningCurve.Set(k, 0, entropy)
	}
	slr.HandleError(slr.WriteNpy(lcurveConfig.LearningCurveFileName, learningCurve))
}

type EvaluateConfig struct {
	Data            DataConfig `yaml:"data"`
	FileNameResults string     `yaml:"filename_results"`
	FileNameMetrics string     `yaml:"filename_metrics"`
	ThreadsNum      int        `yaml:"threads_num"`
}

type metricsRecord struct {
	Lambda            float64 `yaml:"lambda"`
	ScaleFactor       float64 `yaml:"scale_factor"`
	PredRatio         float64 `yaml:"pred_ratio"`
	Bias              float64 `yaml:"bias"`
	EntropyNormalized float64 `yaml:"entropy_normalized"`
}

func evaluate(srcConfig string) {
	var evaluateConfig EvaluateConfig
	decodeConfig(srcConfig, &evaluateConfig)
	if evaluateConfig.ThreadsNum < 1 {
		evaluateConfig.ThreadsNum = runtime.NumCPU()
	}

	observations, _ := evaluateConfig.Data.load()
	results, err := slr.LoadResults(evaluateConfig.FileNameResults)
	slr.HandleError(err)

	pool := slr.NewPool(evaluateConfig.ThreadsNum, zap.L())
	defer func() { slr.HandleError(pool.Close(poolShutdownTimeout)) }()

	metrics, err := slr.EvaluateResults(context.Background(), pool, evaluateConfig.ThreadsNum, observations, results)
	slr.HandleError(err)

	records := make([]metricsRecord, len(metrics))
	for k, m := range metrics {
		records[k] = metricsRecord(m)
	}

	dst, err := os.Create(evaluateConfig.FileNameMetrics)
	slr.HandleError(err)
	defer func() { slr.HandleError(dst.Close()) }()
	encoder := yaml.NewEncoder(dst)
	slr.HandleError(encoder.Encode(records))
	slr.HandleError(encoder.Close())
}

type GraphConfig struct {
	Data            DataConfig `yaml:"data"`
	FileNameResults string     `yaml:"filename_results"`
	ResultIndex     int        `yaml:"result_index"`
	Threshold       float64    `yaml:"threshold"`
	FigureType      string     `yaml:"figure_type"`
	FileNameFigure  string     `yaml:"filename_figure"`
}

//graph renders the feature interactions of the weighted covariance matrix at the coefficients of one result.
func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	observations, numFeatures := graphConfig.Data.load()
	result := loadResult(graphConfig.FileNameResults, graphConfig.ResultIndex)

	stats, err := slr.ComputeStatistics(observations, numFeatures, result.Betas)
	slr.HandleError(err)
	slr.HandleError(slr.RenderCovarianceGraph(stats.Covariance, graphConfig.Threshold, graphConfig.FigureType, graphConfig.FileNameFigure))
}

type ModelLearningCurvesConfig struct {
	FileNameResults        string `yaml:"filename_results"`
	FilenameLearningCurves string `yaml:"filename_learning_curves"`
}

func getLearningCurves(srcConfig string) {
	var modelLearningCurves ModelLearningCurvesConfig
	decodeConfig(srcConfig, &modelLearningCurves)

	results, err := slr.LoadResults(modelLearningCurves.FileNameResults)
	slr.HandleError(err)
	slr.HandleError(slr.DumpLearningCurves(modelLearningCurves.FilenameLearningCurves, results))
}

type SyntheticConfig struct {
	NumObservations int     `yaml:"num_observations"`
	NumFeatures     int     `yaml:"num_features"`
	SparsePct       float64 `yaml:"sparse_pct"`
	Seeds           *struct {
		Columns int64 `yaml:"columns"`
		Betas   int64 `yaml:"betas"`
		Data    int64 `yaml:"data"`
		Weights int64 `yaml:"weights"`
	} `yaml:"seeds"`
	FileNameTSV   string `yaml:"filename_tsv"`
	FileNameBetas string `yaml:"filename_betas"`
}

func synthetic(srcConfig string) {
	var syntheticConfig SyntheticConfig
	decodeConfig(srcConfig, &syntheticConfig)

	seeds := slr.DefaultSyntheticSeeds
	if s := syntheticConfig.Seeds; s != nil {
		seeds = slr.SyntheticSeeds{Columns: s.Columns, Betas: s.Betas, Data: s.Data, Weights: s.Weights}
	}
	observations, betas, err := slr.CreateTestData(syntheticConfig.NumObservations, syntheticConfig.NumFeatures, syntheticConfig.SparsePct, seeds)
	slr.HandleError(err)

	slr.HandleError(slr.WriteTSVFile(syntheticConfig.FileNameTSV, observations, syntheticConfig.NumFeatures))
	if syntheticConfig.FileNameBetas != "" {
		slr.HandleError(slr.WriteNpy(syntheticConfig.FileNameBetas, mat.NewDense(len(betas), 1, betas)))
	}
	entropy, err := slr.EntropyNormalized(observations, betas)
	slr.HandleError(err)
	zap.L().Info("synthetic data written",
		zap.Int("observations", len(observations)),
		zap.Float64("entropy_at_true_betas", entropy))
}

func newLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	runMode := flag.String("mode", "train", "one of 'train', 'predict', 'lcurve', 'evaluate', 'graph', 'get_learning_curves' or 'synthetic'")
	config := flag.String("config", "slr_config.yaml", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")
	verbose := flag.Bool("verbose", false, "development logging with per sweep diagnostics")

	flag.Parse()

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	modes := map[string]func(string){
		"train":               train,
		"predict":             predict,
		"lcurve":              lcurve,
		"evaluate":            evaluate,
		"graph":               graph,
		"get_learning_curves": getLearningCurves,
		"synthetic":           synthetic,
	}
	mode, ok := modes[*runMode]
	if !ok {
		slr.HandleError(errors.Newf("unknown mode %q", *runMode))
	}
	mode(*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		slr.HandleError(err)
		defer func() { slr.HandleError(f.Close()) }()
		runtime.GC()
		slr.HandleError(errors.Wrap(pprof.WriteHeapProfile(f), "could not write memory profile"))
	}
}
