package slr

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//Task is a unit of work executed by a Pool worker.
type Task interface {
	Run(ctx context.Context) error
}

//TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context) error

//Run calls f(ctx).
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type poolJob struct {
	ctx  context.Context
	task Task
	done chan<- error
}

//Pool is a fixed set of worker goroutines consuming a shared task queue.
//The creator owns its lifetime and must call Close.
type Pool struct {
	threadsNum int
	jobs       chan poolJob
	quit       chan struct{}
	group      *errgroup.Group
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger

	closeOnce sync.Once
}

//NewPool starts threadsNum workers.
func NewPool(threadsNum int, logger *zap.Logger) *Pool {
	if threadsNum < 1 {
		threadsNum = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		threadsNum: threadsNum,
		jobs:       make(chan poolJob),
		quit:       make(chan struct{}),
		group:      &errgroup.Group{},
		ctx:        ctx,
		cancel:     cancel,
		logger:     orNop(logger).Named("pool"),
	}
	for w := 0; w < threadsNum; w++ {
		p.group.Go(p.work)
	}
	p.logger.Debug("pool started", zap.Int("workers", threadsNum))
	return p
}

//ThreadsNum returns the number of workers.
func (p *Pool) ThreadsNum() int {
	return p.threadsNum
}

func (p *Pool) work() error {
	for {
		select {
		case <-p.quit:
			return nil
		case job := <-p.jobs:
			job.done <- p.execute(job)
		}
	}
}

func (p *Pool) execute(job poolJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("task panicked: %v", r), ErrTaskFailed)
		}
	}()
	if job.ctx.Err() != nil {
		return job.ctx.Err()
	}
	if err := job.task.Run(job.ctx); err != nil {
		return errors.Mark(err, ErrTaskFailed)
	}
	return nil
}

//RunAll submits every task and blocks until all of them completed. The first failure
//aborts the wait: tasks not yet started are skipped and the error is returned.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.ctx.Done():
			cancel()
		case <-phaseCtx.Done():
		}
	}()

	done := make(chan error, len(tasks))
	submitted := 0
	received := 0
	var firstErr error

	for _, task := range tasks {
		job := poolJob{ctx: phaseCtx, task: task, done: done}
	submit:
		for {
			select {
			case p.jobs <- job:
				submitted++
				break submit
			case err := <-done:
				received++
				if err != nil {
					firstErr = err
					break submit
				}
			case <-p.quit:
				firstErr = ErrPoolClosed
				break submit
			case <-phaseCtx.Done():
				firstErr = phaseCtx.Err()
				break submit
			}
		}
		if firstErr != nil {
			break
		}
	}

	for firstErr == nil && received < submitted {
		select {
		case err := <-done:
			received++
			if err != nil {
				firstErr = err
			}
		case <-phaseCtx.Done():
			firstErr = phaseCtx.Err()
		}
	}

	if firstErr != nil {
		p.logger.Warn("phase aborted",
			zap.Int("submitted", submitted),
			zap.Int("completed", received),
			zap.Error(firstErr))
		return firstErr
	}
	return nil
}

//Close stops accepting tasks and waits up to timeout for the running ones to finish.
//After the timeout the pool context is cancelled, which cancels every running phase.
func (p *Pool) Close(timeout time.Duration) error {
	err := ErrPoolClosed
	p.closeOnce.Do(func() {
		close(p.quit)

		finished := make(chan error, 1)
		go func() { finished <- p.group.Wait() }()

		select {
		case err = <-finished:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			p.logger.Warn("graceful shutdown expired, cancelling", zap.Duration("timeout", timeout))
			err = ErrPoolShutdownTimeout
		}
	})
	if errors.Is(err, ErrPoolClosed) {
		return nil
	}
	return err
}
