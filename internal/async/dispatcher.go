// Package async runs fire-and-forget work outside the request lifecycle.
//
// Tasks are submitted to a bounded pool of workers. A task that fails or
// panics never reaches the submitter: its error is sent to the pool's error
// channel, where a single reporter goroutine logs it.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrClosed    = errors.New("dispatcher shut down")
	ErrQueueFull = errors.New("dispatcher queue full")
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// TaskError is what a failed task reports on the error channel.
type TaskError struct {
	Name string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type job struct {
	name string
	fn   Task
}

type Dispatcher struct {
	workers int
	timeout time.Duration
	log     logrus.FieldLogger

	workCh     chan job
	errCh      chan *TaskError
	doneCh     chan struct{}
	reportedCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// NewDispatcher starts workers goroutines, each running one task at a time with
// the given per-task timeout. Tasks inherit the values of ctx but not its
// cancellation: only Shutdown cancels them.
func NewDispatcher(ctx context.Context, workers int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d := &Dispatcher{
		workers:    workers,
		timeout:    timeout,
		log:        log,
		workCh:     make(chan job, workers*16),
		errCh:      make(chan *TaskError, workers*10),
		doneCh:     make(chan struct{}),
		reportedCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				d.worker(id)
			}(i)
		}
		wg.Wait()
		close(d.errCh)
		close(d.doneCh)
	}()

	go d.report()

	return d
}

// Submit queues a task without blocking. When the queue is full the task is
// dropped and ErrQueueFull is returned.
func (d *Dispatcher) Submit(name string, fn Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.workCh <- job{name: name, fn: fn}:
		return nil
	default:
		d.log.WithField("task", name).Warn("queue full, dropping task")
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued ones to
// finish. Tasks still running after the timeout have their context cancelled.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	var err error
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.workCh)
		d.mu.Unlock()

		select {
		case <-d.doneCh:
			d.cancel()
		case <-time.After(timeout):
			d.cancel()
			err = fmt.Errorf("dispatcher shutdown timed out after %v", timeout)
		}
		<-d.reportedCh
	})
	return err
}

func (d *Dispatcher) worker(id int) {
	for j := range d.workCh {
		d.run(id, j)
	}
}

func (d *Dispatcher) run(id int, j job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"task":   j.name,
				"worker": id,
				"stack":  string(debug.Stack()),
			}).Error("panic in background task")
			d.fail(&TaskError{Name: j.name, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := j.fn(ctx); err != nil {
		d.fail(&TaskError{Name: j.name, Err: err})
	}
}

func (d *Dispatcher) fail(err *TaskError) {
	select {
	case d.errCh <- err:
	default:
		d.log.WithError(err).Warn("error channel full, dropping task error")
	}
}

func (d *Dispatcher) report() {
	defer close(d.reportedCh)
	for err := range d.errCh {
		d.log.WithField("task", err.Name).WithError(err.Err).Error("background task failed")
	}
}
