package slr

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//ReadTSV parses observations, one per line: numFeatures, trials, successes and (index,value) pairs,
//separated by tabs. The number of features of the last line wins.
func ReadTSV(r io.Reader) (observations []Observation, numFeatures int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		obs, n, err := parseTSVLine(line)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "line %d", lineNumber)
		}
		observations = append(observations, obs)
		numFeatures = n
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "scan observations")
	}
	if err := checkObservations(observations, numFeatures); err != nil {
		return nil, 0, err
	}
	return observations, numFeatures, nil
}

func parseTSVLine(line string) (obs Observation, numFeatures int, err error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return obs, 0, errors.Wrapf(ErrMalformedInput, "%d fields, at least 3 expected", len(parts))
	}
	if numFeatures, err = strconv.Atoi(parts[0]); err != nil {
		return obs, 0, errors.Mark(errors.Wrap(err, "number of features"), ErrMalformedInput)
	}
	if obs.Trials, err = strconv.Atoi(parts[1]); err != nil {
		return obs, 0, errors.Mark(errors.Wrap(err, "trials"), ErrMalformedInput)
	}
	if obs.Successes, err = strconv.ParseFloat(parts[2], 64); err != nil {
		return obs, 0, errors.Mark(errors.Wrap(err, "successes"), ErrMalformedInput)
	}
	for _, pair := range parts[3:] {
		if len(pair) < 2 || pair[0] != '(' || pair[len(pair)-1] != ')' {
			return obs, 0, errors.Wrapf(ErrMalformedInput, "feature %q is not an (index,value) pair", pair)
		}
		fields := strings.Split(pair[1:len(pair)-1], ",")
		if len(fields) != 2 {
			return obs, 0, errors.Wrapf(ErrMalformedInput, "feature %q is not an (index,value) pair", pair)
		}
		index, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return obs, 0, errors.Mark(errors.Wrapf(err, "feature index in %q", pair), ErrMalformedInput)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return obs, 0, errors.Mark(errors.Wrapf(err, "feature value in %q", pair), ErrMalformedInput)
		}
		if index < 0 {
			return obs, 0, errors.Wrapf(ErrShapeMismatch, "negative feature index %d", index)
		}
		obs.X.Append(index, value)
	}
	return obs, numFeatures, nil
}

//WriteTSV writes observations in the format read by ReadTSV.
func WriteTSV(w io.Writer, observations []Observation, numFeatures int) error {
	bw := bufio.NewWriter(w)
	for i := range observations {
		obs := &observations[i]
		if _, err := fmt.Fprintf(bw, "%d\t%d\t%s", numFeatures, obs.Trials, strconv.FormatFloat(obs.Successes, 'g', -1, 64)); err != nil {
			return errors.Wrap(err, "write observation")
		}
		for _, e := range obs.X.entries {
			if _, err := fmt.Fprintf(bw, "\t(%d,%s)", e.Index, strconv.FormatFloat(e.Value, 'g', -1, 64)); err != nil {
				return errors.Wrap(err, "write feature")
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "write observation")
		}
	}
	return errors.Wrap(bw.Flush(), "flush observations")
}

//ReadTSVFile opens filename and reads it with ReadTSV.
func ReadTSVFile(filename string) (observations []Observation, numFeatures int, err error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %s", filename)
	}
	defer func() { err = errors.CombineErrors(err, source.Close()) }()
	return ReadTSV(source)
}

//WriteTSVFile creates filename and writes observations with WriteTSV.
func WriteTSVFile(filename string, observations []Observation, numFeatures int) (err error) {
	dest, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", filename)
	}
	defer func() { err = errors.CombineErrors(err, dest.Close()) }()
	return WriteTSV(dest, observations, numFeatures)
}

//ReadNpy reads a two dimensional npy file.
func ReadNpy(fileName string) (denseMat *mat.Dense, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer func() { err = errors.CombineErrors(err, f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "npy header of %s", fileName), ErrMalformedInput)
	}
	denseMat = &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "npy data of %s", fileName), ErrMalformedInput)
	}
	return denseMat, nil
}

//ReadNpyVector reads an npy file of any shape as a flat vector.
func ReadNpyVector(fileName string) (values []float64, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer func() { err = errors.CombineErrors(err, f.Close()) }()

	if err := npyio.Read(f, &values); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "npy data of %s", fileName), ErrMalformedInput)
	}
	return values, nil
}

//WriteNpy saves m to fileName.
func WriteNpy(fileName string, m mat.Matrix) (err error) {
	dst, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	defer func() { err = errors.CombineErrors(err, dst.Close()) }()
	return errors.Wrapf(npyio.Write(dst, m), "write %s", fileName)
}

//ObservationsFromDense converts a dense design matrix into sparse observations dropping zeros.
//Trials must hold integer values.
func ObservationsFromDense(features *mat.Dense, trials, successes []float64) ([]Observation, error) {
	h, w := features.Dims()
	if len(trials) != h || len(successes) != h {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d rows, %d trials, %d successes", h, len(trials), len(successes))
	}
	observations := make([]Observation, h)
	for p := 0; p < h; p++ {
		if trials[p] != math.Trunc(trials[p]) || trials[p] < 0 {
			return nil, errors.Wrapf(ErrMalformedInput, "row %d has %g trials", p, trials[p])
		}
		var x SparseVector
		for q := 0; q < w; q++ {
			x.Append(q, features.At(p, q))
		}
		observations[p] = NewObservation(x, successes[p], int(trials[p]))
	}
	return observations, nil
}

//ReadNpyObservations loads a design matrix with its trials and successes vectors.
func ReadNpyObservations(featuresFileName, trialsFileName, successesFileName string) ([]Observation, int, error) {
	features, err := ReadNpy(featuresFileName)
	if err != nil {
		return nil, 0, err
	}
	trials, err := ReadNpyVector(trialsFileName)
	if err != nil {
		return nil, 0, err
	}
	successes, err := ReadNpyVector(successesFileName)
	if err != nil {
		return nil, 0, err
	}
	observations, err := ObservationsFromDense(features, trials, successes)
	if err != nil {
		return nil, 0, err
	}
	_, numFeatures := features.Dims()
	return observations, numFeatures, nil
}

//CoefficientPath stacks the coefficients of results into a (len(results), size) matrix.
func CoefficientPath(results []*Result) *mat.Dense {
	if len(results) == 0 {
		return nil
	}
	path := mat.NewDense(len(results), len(results[0].Betas), nil)
	for r, result := range results {
		path.SetRow(r, result.Betas)
	}
	return path
}
