package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"marketpulse/internal/metrics"
	"marketpulse/internal/workers/analysis"
	"marketpulse/pkg/logger"
)

// Sink delivers cycle results to one downstream consumer
type Sink interface {
	Name() string
	Deliver(ctx context.Context, b analysis.Bundle) error
	DeliverFailure(ctx context.Context, f analysis.Failure) error
}

type event struct {
	bundle  *analysis.Bundle
	failure *analysis.Failure
}

type route struct {
	sink    Sink
	ch      chan event
	dropped atomic.Int64
}

// Dispatcher fans results out to sinks. Each sink has its own buffered queue and
// goroutine; a full queue drops the result so Publish never blocks the worker.
type Dispatcher struct {
	log             *logger.Logger
	buffer          int
	deliveryTimeout time.Duration

	mu      sync.RWMutex
	routes  []*route
	started bool
	closed  bool
	wg      sync.WaitGroup
}

var _ analysis.Publisher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with buffer slots per sink
func NewDispatcher(buffer int, log *logger.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 8
	}
	return &Dispatcher{
		log:             log.With("component", "notify"),
		buffer:          buffer,
		deliveryTimeout: 15 * time.Second,
	}
}

// Register adds a sink. Sinks registered after Start are ignored.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		d.log.Warnw("Cannot register sink after start", "sink", s.Name())
		return
	}
	d.routes = append(d.routes, &route{sink: s, ch: make(chan event, d.buffer)})
}

// Start launches one delivery goroutine per sink
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for _, r := range d.routes {
		d.wg.Add(1)
		go d.deliver(ctx, r)
	}
	d.log.Infow("Dispatcher started", "sinks", len(d.routes), "buffer", d.buffer)
}

// Publish queues a bundle for every sink
func (d *Dispatcher) Publish(b analysis.Bundle) {
	d.offer(event{bundle: &b})
}

// PublishFailure queues a failure notice for every sink
func (d *Dispatcher) PublishFailure(f analysis.Failure) {
	d.offer(event{failure: &f})
}

func (d *Dispatcher) offer(ev event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	for _, r := range d.routes {
		select {
		case r.ch <- ev:
		default:
			r.dropped.Add(1)
			metrics.BundlesDropped.WithLabelValues(r.sink.Name()).Inc()
			d.log.Warnw("Sink buffer full, dropping result", "sink", r.sink.Name(), "dropped", r.dropped.Load())
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, r *route) {
	defer d.wg.Done()

	for ev := range r.ch {
		dctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
		var err error
		if ev.bundle != nil {
			err = r.sink.Deliver(dctx, *ev.bundle)
		} else {
			err = r.sink.DeliverFailure(dctx, *ev.failure)
		}
		cancel()

		metrics.RecordDelivery(r.sink.Name(), err)
		if err != nil {
			d.log.Warnw("Sink delivery failed", "sink", r.sink.Name(), "error", err)
		}
	}
}

// Dropped returns how many results were dropped for the named sink
func (d *Dispatcher) Dropped(name string) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, r := range d.routes {
		if r.sink.Name() == name {
			return r.dropped.Load()
		}
	}
	return 0
}

// Stop closes the queues and waits for queued results to be delivered
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		close(r.ch)
	}
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}
