// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/tarstars/sparse_elastic_lr/golang/sparse_lr/slr"
	"go.uber.org/zap"
)

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	models            = make(map[uint64]*slr.Result)

	lastErrorMu sync.Mutex
	lastError   string
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeModel(r *slr.Result) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	models[handle] = r
	nextHandle++
	return handle
}

func fetchModel(handle uint64) (*slr.Result, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	model, ok := models[handle]
	if !ok {
		return nil, errors.New("invalid model handle")
	}
	return model, nil
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(models, uint64(handle))
}

func sliceFromPtr[T any, P any](ptr *P, length int) ([]T, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	return unsafe.Slice((*T)(unsafe.Pointer(ptr)), length), nil
}

//buildFeatures reads the rows of a CSR feature matrix.
func buildFeatures(indptrPtr *C.int, indicesPtr *C.int, valuesPtr *C.double, rows C.int) ([]slr.SparseVector, error) {
	if rows <= 0 {
		return nil, errors.New("rows must be positive")
	}
	n := int(rows)
	indptr, err := sliceFromPtr[int32](indptrPtr, n+1)
	if err != nil {
		return nil, errors.Wrap(err, "indptr")
	}
	nnz := int(indptr[n])
	indices, err := sliceFromPtr[int32](indicesPtr, nnz)
	if err != nil {
		return nil, errors.Wrap(err, "indices")
	}
	values, err := sliceFromPtr[float64](valuesPtr, nnz)
	if err != nil {
		return nil, errors.Wrap(err, "values")
	}

	features := make([]slr.SparseVector, n)
	for i := 0; i < n; i++ {
		begin, end := int(indptr[i]), int(indptr[i+1])
		if begin < 0 || end < begin || end > nnz {
			return nil, errors.Newf("row %d: broken indptr [%d, %d)", i, begin, end)
		}
		rowIndices := make([]int, end-begin)
		for k := range rowIndices {
			rowIndices[k] = int(indices[begin+k])
		}
		features[i], err = slr.NewSparseVector(rowIndices, append([]float64(nil), values[begin:end]...))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}
	return features, nil
}

func buildObservations(
	indptrPtr *C.int,
	indicesPtr *C.int,
	valuesPtr *C.double,
	rows C.int,
	trialsPtr *C.int,
	successesPtr *C.double,
) ([]slr.Observation, error) {
	features, err := buildFeatures(indptrPtr, indicesPtr, valuesPtr, rows)
	if err != nil {
		return nil, err
	}
	trials, err := sliceFromPtr[int32](trialsPtr, len(features))
	if err != nil {
		return nil, errors.Wrap(err, "trials")
	}
	successes, err := sliceFromPtr[float64](successesPtr, len(features))
	if err != nil {
		return nil, errors.Wrap(err, "successes")
	}
	observations := make([]slr.Observation, len(features))
	for i, x := range features {
		observations[i] = slr.NewObservation(x, successes[i], int(trials[i]))
	}
	return observations, nil
}

//export TrainModel
func TrainModel(
	indptrPtr *C.int,
	indicesPtr *C.int,
	valuesPtr *C.double,
	rows C.int,
	numFeatures C.int,
	trialsPtr *C.int,
	successesPtr *C.double,
	alpha C.double,
	lambda C.double,
	tolerance C.double,
	maxIterations C.int,
	irlsRounds C.int,
	threadsNum C.int,
) C.ulonglong {
	setLastError(nil)

	observations, err := buildObservations(indptrPtr, indicesPtr, valuesPtr, rows, trialsPtr, successesPtr)
	if err != nil {
		setLastError(err)
		return 0
	}

	scaleFactors, err := slr.LambdaScaleFactors(observations, int(numFeatures))
	if err != nil {
		setLastError(err)
		return 0
	}

	logger := zap.NewNop()
	var trainer slr.Trainer = slr.NewSerialTrainer(logger)
	if threadsNum > 1 {
		pool := slr.NewPool(int(threadsNum), logger)
		defer func() { _ = pool.Close(time.Second) }()
		trainer = slr.NewParallelTrainer(pool, int(threadsNum), logger)
	}

	lr, err := slr.NewLR(slr.LRParams{
		Observations:  observations,
		NumFeatures:   int(numFeatures),
		Alpha:         float64(alpha),
		LambdaGrid:    []float64{float64(lambda)},
		ScaleFactors:  scaleFactors,
		Tolerance:     float64(tolerance),
		MaxIterations: int(maxIterations),
		IRLSRounds:    int(irlsRounds),
		Trainer:       trainer,
		Logger:        logger,
	})
	if err != nil {
		setLastError(err)
		return 0
	}

	results, err := lr.CalculateBetas(context.Background(), false)
	if err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeModel(results[0]))
}

//export GetNumCoefficients
func GetNumCoefficients(handle C.ulonglong) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return -1
	}
	return C.int(len(model.Betas))
}

//export GetCoefficients
func GetCoefficients(handle C.ulonglong, outputPtr *C.double, length C.int) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if int(length) != len(model.Betas) {
		setLastError(errors.Newf("buffer of %d for %d coefficients", int(length), len(model.Betas)))
		return 2
	}
	out, err := sliceFromPtr[float64](outputPtr, int(length))
	if err != nil {
		setLastError(err)
		return 3
	}
	copy(out, model.Betas)
	return 0
}

//export GetStatus
func GetStatus(handle C.ulonglong) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return -1
	}
	return C.int(model.Status)
}

//export PredictProba
func PredictProba(
	handle C.ulonglong,
	indptrPtr *C.int,
	indicesPtr *C.int,
	valuesPtr *C.double,
	rows C.int,
	outputPtr *C.double,
) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}

	features, err := buildFeatures(indptrPtr, indicesPtr, valuesPtr, rows)
	if err != nil {
		setLastError(err)
		return 2
	}
	observations := make([]slr.Observation, len(features))
	for i, x := range features {
		observations[i] = slr.NewUnitObservation(x, 0)
	}
	prediction, err := model.Predict(observations)
	if err != nil {
		setLastError(err)
		return 3
	}

	out, err := sliceFromPtr[float64](outputPtr, len(prediction))
	if err != nil {
		setLastError(err)
		return 4
	}
	copy(out, prediction)
	return 0
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err := slr.SaveResults(C.GoString(path), []*slr.Result{model}); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char) C.ulonglong {
	setLastError(nil)
	results, err := slr.LoadResults(C.GoString(path))
	if err != nil {
		setLastError(err)
		return 0
	}
	if len(results) == 0 {
		setLastError(errors.New("no models in file"))
		return 0
	}
	return C.ulonglong(storeModel(results[0]))
}

//export RenderCovarianceGraph
func RenderCovarianceGraph(
	handle C.ulonglong,
	indptrPtr *C.int,
	indicesPtr *C.int,
	valuesPtr *C.double,
	rows C.int,
	trialsPtr *C.int,
	successesPtr *C.double,
	threshold C.double,
	figureType *C.char,
	path *C.char,
) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	observations, err := buildObservations(indptrPtr, indicesPtr, valuesPtr, rows, trialsPtr, successesPtr)
	if err != nil {
		setLastError(err)
		return 2
	}
	stats, err := slr.ComputeStatistics(observations, len(model.Betas)-1, model.Betas)
	if err != nil {
		setLastError(err)
		return 3
	}
	goFigureType := C.GoString(figureType)
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if err := slr.RenderCovarianceGraph(stats.Covariance, float64(threshold), goFigureType, C.GoString(path)); err != nil {
		setLastError(err)
		return 4
	}
	return 0
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
