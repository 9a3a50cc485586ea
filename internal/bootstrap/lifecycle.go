package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "marketpulse/internal/adapters/clickhouse"
	"marketpulse/internal/adapters/kafka"
	redisclient "marketpulse/internal/adapters/redis"
	"marketpulse/internal/api"
	"marketpulse/internal/api/stream"
	"marketpulse/internal/ml/ensemble"
	"marketpulse/internal/repository/sqldb"
	"marketpulse/internal/services/notify"
	"marketpulse/internal/workers"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 150 * time.Second,
	}
}

// Components are the things Shutdown stops. Nil entries are skipped.
type Components struct {
	WG           *sync.WaitGroup
	HTTPServer   *api.Server
	Scheduler    *workers.Scheduler
	Dispatcher   *notify.Dispatcher
	Hub          *stream.Hub
	Producer     *kafka.Producer
	Ensemble     *ensemble.Ensemble
	Store        *sqldb.Client
	CH           *chclient.Client
	Redis        *redisclient.Client
	ErrorTracker errors.Tracker
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted
// 2. The running cycle finishes
// 3. Queued results are delivered, then sinks close
// 4. Errors and logs are flushed
// 5. Database connections last (the cycle writes to them)
func (l *Lifecycle) Shutdown(c Components, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// Step 1: HTTP server (5s)
	if c.HTTPServer != nil {
		log.Infow("[1/7] Stopping HTTP server...")
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := c.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	// Step 2: scheduler waits for an in-flight cycle
	if c.Scheduler != nil {
		log.Infow("[2/7] Stopping background workers...")
		if err := c.Scheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Infow("✓ Workers stopped")
		}
	}

	// Step 3: drain sink queues, then disconnect dashboards
	if c.Dispatcher != nil {
		log.Infow("[3/7] Draining result sinks...")
		c.Dispatcher.Stop()
	}
	if c.Hub != nil {
		c.Hub.Close()
	}

	// Step 4: goroutines started by the container
	if c.WG != nil {
		log.Infow("[4/7] Waiting for goroutines...")
		l.waitForGoroutines(c.WG, 5*time.Second, log)
	}

	// Step 5: Kafka producer and model runtime
	log.Infow("[5/7] Closing producer and models...")
	if c.Producer != nil {
		if err := c.Producer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		}
	}
	if c.Ensemble != nil {
		c.Ensemble.Close()
	}

	// Step 6: error tracker and logs
	log.Infow("[6/7] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, c.ErrorTracker, log)
	_ = log.Sync()

	// Step 7: databases LAST
	log.Infow("[7/7] Closing database connections...")
	l.closeDatabases(c, log)

	log.Infow("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infow("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeDatabases(c Components, log *logger.Logger) {
	var errs errors.MultiError

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs.Add(errors.Wrap(err, "store"))
		}
	}
	if c.CH != nil {
		if err := c.CH.Close(); err != nil {
			errs.Add(errors.Wrap(err, "clickhouse"))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs.Add(errors.Wrap(err, "redis"))
		}
	}

	if errs.HasErrors() {
		log.Errorw("Database close errors", "error", errs.ToError())
	} else {
		log.Infow("✓ Database connections closed")
	}
}
