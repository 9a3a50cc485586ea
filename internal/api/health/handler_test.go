package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/metrics"
	"marketpulse/internal/workers"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Health(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

type workerList []workers.WorkerHealth

func (w workerList) Health() []workers.WorkerHealth { return w }

type fixedVitals metrics.Vitals

func (v fixedVitals) Sample(ctx context.Context) (metrics.Vitals, error) { return metrics.Vitals(v), nil }

func serve(t *testing.T, fn http.HandlerFunc) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, status
}

func TestHealthAllUp(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := New(logger.Nop(), "marketpulse", "test",
		WithDependency("store", up, true),
		WithDependency("redis", up, false),
		WithWorkers(workerList{{Name: "analysis_cycle", Enabled: true, LastSuccess: now.Add(-30 * time.Second)}}, 5*time.Minute),
		WithVitals(fixedVitals{RSSBytes: 1 << 20, CPUPercent: 3}),
	)
	h.now = func() time.Time { return now }

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["store"].Status)
	require.Len(t, status.Workers, 1)
	assert.True(t, status.Workers[0].OK)
	require.NotNil(t, status.Process)
	assert.Equal(t, uint64(1<<20), status.Process.RSSBytes)
}

func TestHealthOptionalDependencyDegrades(t *testing.T) {
	h := New(logger.Nop(), "marketpulse", "test",
		WithDependency("store", up, true),
		WithDependency("redis", down, false),
	)

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Error)

	code, status = serve(t, h.HandleReadiness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthRequiredDependencyFails(t *testing.T) {
	h := New(logger.Nop(), "marketpulse", "test", WithDependency("store", down, true))

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", status.Status)

	code, _ = serve(t, h.HandleReadiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealthStaleWorkerDegrades(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := New(logger.Nop(), "marketpulse", "test",
		WithWorkers(workerList{
			{Name: "analysis_cycle", Enabled: true, LastSuccess: now.Add(-time.Hour)},
			{Name: "idle", Enabled: false},
		}, 5*time.Minute),
	)
	h.now = func() time.Time { return now }

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", status.Status)
	require.Len(t, status.Workers, 2)
	assert.False(t, status.Workers[0].OK)
	assert.True(t, status.Workers[1].OK)
}

func TestLiveness(t *testing.T) {
	h := New(logger.Nop(), "marketpulse", "test", WithDependency("store", down, true))
	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
