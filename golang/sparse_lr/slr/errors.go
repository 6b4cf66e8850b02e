package slr

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	// ErrShapeMismatch reports inconsistent array lengths or out of range feature indices.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidParameter reports a training parameter outside of its domain.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEmptyDataset reports an empty observation set or a zero total weight.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrTaskFailed reports a worker task that returned an error or panicked.
	ErrTaskFailed = errors.New("worker task failed")
	// ErrPoolClosed is returned when work is submitted to a closed pool.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolShutdownTimeout is returned by Close when the graceful wait expired.
	ErrPoolShutdownTimeout = errors.New("pool shutdown timed out")
	// ErrMalformedInput reports an unparsable data file.
	ErrMalformedInput = errors.New("malformed input")
)

//HandleError logs a non-nil error and terminates the process. It is meant for drivers only.
func HandleError(err error) {
	if err != nil {
		zap.L().Error("fatal error", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
