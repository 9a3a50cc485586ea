package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketpulse/internal/metrics"
	"marketpulse/internal/workers"
	"marketpulse/pkg/logger"
)

// Pinger is any dependency that can report connectivity
type Pinger interface {
	Health(ctx context.Context) error
}

// WorkerSource reports scheduler worker health
type WorkerSource interface {
	Health() []workers.WorkerHealth
}

// VitalsSampler reports process resource usage
type VitalsSampler interface {
	Sample(ctx context.Context) (metrics.Vitals, error)
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	deps        map[string]Pinger
	required    map[string]bool
	workers     WorkerSource
	vitals      VitalsSampler
	maxAge      time.Duration
	startTime   time.Time
	now         func() time.Time
	serviceName string
	version     string
}

// Option configures a Handler
type Option func(*Handler)

// WithDependency registers a pinged dependency. Required dependencies fail readiness.
func WithDependency(name string, p Pinger, required bool) Option {
	return func(h *Handler) {
		h.deps[name] = p
		h.required[name] = required
	}
}

// WithWorkers reports scheduler workers; a worker without a success within maxAge is stale
func WithWorkers(src WorkerSource, maxAge time.Duration) Option {
	return func(h *Handler) {
		h.workers = src
		h.maxAge = maxAge
	}
}

func WithVitals(v VitalsSampler) Option {
	return func(h *Handler) { h.vitals = v }
}

// New creates a new health check handler
func New(log *logger.Logger, serviceName, version string, opts ...Option) *Handler {
	h := &Handler{
		log:         log.With("component", "health"),
		deps:        make(map[string]Pinger),
		required:    make(map[string]bool),
		startTime:   time.Now(),
		now:         time.Now,
		serviceName: serviceName,
		version:     version,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // healthy|degraded|unhealthy
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Workers   []WorkerStatus             `json:"workers,omitempty"`
	Process   *metrics.Vitals            `json:"process,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

type WorkerStatus struct {
	workers.WorkerHealth
	OK bool `json:"healthy"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails when a required dependency is down
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.baseStatus()
	status.Checks = h.checkAll(ctx)

	code := http.StatusOK
	for name, c := range status.Checks {
		if h.required[name] && c.Status != "healthy" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}

	writeJSON(w, code, status)
}

// HandleHealth returns detailed status of dependencies, workers and the process
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.baseStatus()
	status.Checks = h.checkAll(ctx)

	degraded := false
	code := http.StatusOK
	for name, c := range status.Checks {
		if c.Status == "healthy" {
			continue
		}
		if h.required[name] {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		degraded = true
	}

	if h.workers != nil {
		now := h.now()
		for _, wh := range h.workers.Health() {
			ok := wh.Healthy(now, h.maxAge)
			if !ok {
				degraded = true
			}
			status.Workers = append(status.Workers, WorkerStatus{WorkerHealth: wh, OK: ok})
		}
	}

	if h.vitals != nil {
		if v, err := h.vitals.Sample(ctx); err == nil {
			status.Process = &v
		} else {
			h.log.Debugw("Process vitals unavailable", "error", err)
		}
	}

	if degraded && status.Status == "healthy" {
		status.Status = "degraded"
	}

	writeJSON(w, code, status)
}

func (h *Handler) baseStatus() HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
}

func (h *Handler) checkAll(ctx context.Context) map[string]ComponentHealth {
	checks := make(map[string]ComponentHealth, len(h.deps))
	for name, p := range h.deps {
		checks[name] = h.check(ctx, name, p)
	}
	return checks
}

func (h *Handler) check(ctx context.Context, name string, p Pinger) ComponentHealth {
	start := time.Now()
	err := p.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "dependency", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: elapsed.String()}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
