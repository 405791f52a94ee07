// Package worker runs the pipeline in the background, one run at a time.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/logger"
)

const component = "Worker"

var ErrShutdown = errors.New("worker is shut down")

// Runner is the part of the pipeline the worker drives. Checkout marks the pipeline
// running and returns the function that executes the captured run.
type Runner interface {
	SanityCheck() error
	Checkout() (func(ctx context.Context, runID string) error, error)
}

type Worker struct {
	runner    Runner
	publisher eventbus.Publisher
	logger    logger.Logger

	sem     *semaphore.Weighted
	running atomic.Bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	lastErr error
	lastRun string
}

func New(runner Runner, publisher eventbus.Publisher, log logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		runner:    runner,
		publisher: publisher,
		logger:    log,
		sem:       semaphore.NewWeighted(1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start checks the pipeline and launches a run. It returns false without error when a
// run is already in flight; the request is dropped, not queued. A configuration error
// is returned as is and no events are published for it.
//
// The pipeline is checked out before Start returns true, so edits made afterwards are
// rejected until the run ends. The run stops between steps when ctx or the worker is
// cancelled.
//
// FinishedEvent is published before the worker frees its slot. A Start issued from a
// FinishedEvent handler can therefore still report false; wait for Running to turn
// false, or call Wait, before restarting.
func (w *Worker) Start(ctx context.Context) (bool, error) {
	if err := w.runner.SanityCheck(); err != nil {
		return false, err
	}
	if !w.sem.TryAcquire(1) {
		w.logger.Debug(component, "run already in flight, start ignored", nil)
		return false, nil
	}
	if w.ctx.Err() != nil {
		w.sem.Release(1)
		return false, ErrShutdown
	}

	exec, err := w.runner.Checkout()
	if err != nil {
		w.sem.Release(1)
		return false, err
	}

	runID := uuid.NewString()
	w.mu.Lock()
	w.lastRun = runID
	w.mu.Unlock()

	w.running.Store(true)
	w.wg.Add(1)
	go w.run(ctx, runID, exec)
	return true, nil
}

func (w *Worker) run(ctx context.Context, runID string, exec func(context.Context, string) error) {
	defer w.wg.Done()

	runCtx, cancel := context.WithCancel(w.ctx)
	stop := context.AfterFunc(ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	err := exec(runCtx, runID)

	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error(component, err, map[string]interface{}{"run_id": runID})
	} else {
		w.logger.Info(component, "run finished", map[string]interface{}{"run_id": runID})
	}

	w.publisher.Publish(eventbus.FinishedEvent{RunID: runID, Err: err})
	w.running.Store(false)
	w.sem.Release(1)
}

func (w *Worker) Running() bool {
	return w.running.Load()
}

// Wait blocks until the current run, if any, has published its FinishedEvent.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// LastError is the outcome of the most recent completed run.
func (w *Worker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Worker) LastRunID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

// Shutdown cancels any run in flight and waits for it. Later starts fail.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info(component, "worker stopped", nil)
}
