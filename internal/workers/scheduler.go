package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Scheduler manages and coordinates multiple workers.
// Each worker runs in its own goroutine on a timer that is re-armed after Run
// returns, so a worker never overlaps with itself.
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool

	shutdownTimeout time.Duration
}

// NewScheduler creates a new worker scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		workers:         make([]Worker, 0),
		log:             log.With("component", "scheduler"),
		shutdownTimeout: 2 * time.Minute,
	}
}

// RegisterWorker adds a worker to the scheduler
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start begins running all registered workers. Cancelling ctx stops them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Infow("Starting worker scheduler", "workers", len(s.workers))

	for _, worker := range s.workers {
		if !worker.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", worker.Name())
			continue
		}

		s.wg.Add(1)
		go s.runWorker(worker)
	}

	return nil
}

// Stop cancels all workers and waits for the in-flight runs to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Infow("Stopping worker scheduler")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Infow("All workers stopped gracefully")
	case <-time.After(s.shutdownTimeout):
		s.log.Warnw("Worker shutdown timed out", "timeout", s.shutdownTimeout)
		shutdownErr = errors.Wrapf(errors.ErrTimeout, "shutdown timeout after %s", s.shutdownTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

// runWorker executes a single worker until the context is cancelled
func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	s.log.Infow("Worker started", "worker", worker.Name())

	// First run is immediate
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infow("Worker stopping due to context cancellation", "worker", worker.Name())
			return

		case <-timer.C:
			err := s.executeWorker(worker)
			timer.Reset(nextDelay(worker, err))
		}
	}
}

func nextDelay(worker Worker, err error) time.Duration {
	if err != nil {
		if bw, ok := worker.(BackoffWorker); ok {
			return bw.FailureBackoff()
		}
	}
	return worker.Interval()
}

// executeWorker runs a single iteration of the worker. A panic is recovered and
// reported as an error.
func (s *Scheduler) executeWorker(worker Worker) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrInternal, "worker panicked: %v", r)
			metrics.RecordWorkerPanic(worker.Name())
			s.log.Errorw("Worker panicked",
				"worker", worker.Name(),
				"panic", fmt.Sprint(r),
			)
		}
	}()

	err = worker.Run(s.ctx)
	metrics.RecordWorkerExecution(worker.Name(), time.Since(start), err)

	if err != nil {
		s.log.Errorw("Worker execution failed",
			"worker", worker.Name(),
			"error", err,
			"duration", time.Since(start),
		)
		return err
	}

	s.log.Debugw("Worker execution completed",
		"worker", worker.Name(),
		"duration", time.Since(start),
	)
	return nil
}

// GetWorkers returns a list of all registered workers
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// Health returns the health of every registered worker that reports it
func (s *Scheduler) Health() []WorkerHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkerHealth, 0, len(s.workers))
	for _, w := range s.workers {
		if hr, ok := w.(HealthReporter); ok {
			out = append(out, hr.Health())
		}
	}
	return out
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
