package workers

import (
	"context"
	"sync"
	"time"

	"marketpulse/pkg/logger"
)

// Worker defines the interface for background workers
type Worker interface {
	// Name returns the unique identifier for this worker
	Name() string

	// Run executes one iteration of the worker's task and returns.
	// The scheduler re-arms its timer only after Run returns.
	Run(ctx context.Context) error

	// Interval is the delay before the next run after a successful one
	Interval() time.Duration

	// Enabled returns whether this worker is active
	Enabled() bool
}

// BackoffWorker is a Worker that waits a different delay after a failed run
type BackoffWorker interface {
	Worker
	FailureBackoff() time.Duration
}

// HealthReporter exposes run statistics of a worker
type HealthReporter interface {
	Health() WorkerHealth
}

// WorkerHealth contains health information for a worker
type WorkerHealth struct {
	Name        string        `json:"name"`
	LastRun     time.Time     `json:"last_run"`
	LastSuccess time.Time     `json:"last_success"`
	LastError   string        `json:"last_error,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	Enabled     bool          `json:"enabled"`
}

// Healthy reports whether the last run succeeded and happened within maxAge
func (h WorkerHealth) Healthy(now time.Time, maxAge time.Duration) bool {
	if !h.Enabled {
		return true
	}
	if h.LastSuccess.IsZero() || h.LastError != "" {
		return false
	}
	return now.Sub(h.LastSuccess) <= maxAge
}

// BaseWorker provides common functionality for workers
type BaseWorker struct {
	name     string
	interval time.Duration
	backoff  time.Duration
	enabled  bool
	log      *logger.Logger

	healthMu      sync.RWMutex
	lastRun       time.Time
	lastSuccess   time.Time
	lastError     error
	runCount      int64
	errorCount    int64
	totalDuration time.Duration
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval, backoff time.Duration, enabled bool, log *logger.Logger) *BaseWorker {
	if backoff <= 0 {
		backoff = interval
	}
	return &BaseWorker{
		name:     name,
		interval: interval,
		backoff:  backoff,
		enabled:  enabled,
		log:      log.With("worker", name),
	}
}

// Name returns the worker name
func (w *BaseWorker) Name() string {
	return w.name
}

// Interval returns the run interval
func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

// FailureBackoff returns the delay used after a failed run
func (w *BaseWorker) FailureBackoff() time.Duration {
	return w.backoff
}

// Enabled returns whether the worker is enabled
func (w *BaseWorker) Enabled() bool {
	w.healthMu.RLock()
	defer w.healthMu.RUnlock()
	return w.enabled
}

// SetEnabled updates the enabled status
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()
	w.enabled = enabled
	w.log.Infow("Worker enabled state changed", "enabled", enabled)
}

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Health returns health information for the worker
func (w *BaseWorker) Health() WorkerHealth {
	w.healthMu.RLock()
	defer w.healthMu.RUnlock()

	avgDuration := time.Duration(0)
	if w.runCount > 0 {
		avgDuration = time.Duration(int64(w.totalDuration) / w.runCount)
	}

	h := WorkerHealth{
		Name:        w.name,
		LastRun:     w.lastRun,
		LastSuccess: w.lastSuccess,
		RunCount:    w.runCount,
		ErrorCount:  w.errorCount,
		AvgDuration: avgDuration,
		Enabled:     w.enabled,
	}
	if w.lastError != nil {
		h.LastError = w.lastError.Error()
	}
	return h
}

// RecordRun records a successful run
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()

	w.lastRun = time.Now()
	w.lastSuccess = w.lastRun
	w.runCount++
	w.totalDuration += duration
	w.lastError = nil
}

// RecordError records a failed run
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.errorCount++
	w.totalDuration += duration
	w.lastError = err
}
