package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketpulse/pkg/errors"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error|panic
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketpulse_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketpulse_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Analysis cycle metrics
	CycleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_cycle_failures_total",
			Help: "Analysis cycles aborted, by error kind",
		},
		[]string{"kind"}, // kind: transient|data_quality|insufficient_data|class_imbalance|internal
	)

	CycleLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketpulse_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last completed analysis cycle",
		},
	)

	CycleStage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketpulse_cycle_stage_seconds",
			Help:    "Duration of individual analysis cycle stages",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	PredictionAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketpulse_prediction_accuracy_percent",
			Help: "Running accuracy of graded AI predictions",
		},
		[]string{"symbol"},
	)

	// Delivery metrics
	BundlesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_bundles_delivered_total",
			Help: "Result bundles handed to a sink",
		},
		[]string{"sink", "status"}, // status: success|error
	)

	BundlesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_bundles_dropped_total",
			Help: "Result bundles dropped because the sink buffer was full",
		},
		[]string{"sink"},
	)

	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"exchange", "endpoint", "status"}, // status: success|error|rate_limited
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketpulse_exchange_api_latency_seconds",
			Help:    "Exchange API call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"exchange", "endpoint"},
	)

	// Stream metrics
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketpulse_websocket_connections",
			Help: "Dashboard websocket clients currently connected",
		},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_kafka_messages_total",
			Help: "Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			WorkerExecutions,
			WorkerDuration,
			WorkerLastRun,
			CycleFailures,
			CycleLastSuccess,
			CycleStage,
			PredictionAccuracy,
			BundlesDelivered,
			BundlesDropped,
			ExchangeAPICalls,
			ExchangeAPILatency,
			WebSocketConnections,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordWorkerPanic counts a recovered worker panic
func RecordWorkerPanic(worker string) {
	WorkerExecutions.WithLabelValues(worker, "panic").Inc()
}

// RecordCycle records the outcome of one analysis cycle
func RecordCycle(err error) {
	if err == nil {
		CycleLastSuccess.SetToCurrentTime()
		return
	}
	CycleFailures.WithLabelValues(FailureKind(err)).Inc()
}

// RecordStage observes the duration of a named cycle stage
func RecordStage(stage string, started time.Time) {
	CycleStage.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// FailureKind maps an error to its taxonomy label
func FailureKind(err error) string {
	switch {
	case errors.Is(err, errors.ErrUnavailable),
		errors.Is(err, errors.ErrTimeout),
		errors.Is(err, errors.ErrRateLimitExceeded):
		return "transient"
	case errors.Is(err, errors.ErrDataQuality):
		return "data_quality"
	case errors.Is(err, errors.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, errors.ErrClassImbalance):
		return "class_imbalance"
	case errors.Is(err, errors.ErrModelState):
		return "model_state"
	default:
		return "internal"
	}
}

// RecordExchangeAPICall records an exchange API call
func RecordExchangeAPICall(exchange, endpoint string, latency time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, errors.ErrRateLimitExceeded):
		status = "rate_limited"
	case err != nil:
		status = "error"
	}

	ExchangeAPICalls.WithLabelValues(exchange, endpoint, status).Inc()
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(latency.Seconds())
}

// RecordDelivery records one sink delivery attempt
func RecordDelivery(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BundlesDelivered.WithLabelValues(sink, status).Inc()
}
