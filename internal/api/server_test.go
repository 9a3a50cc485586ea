package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/api/health"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/logger"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestRoutes(t *testing.T) {
	metrics.Init()
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "stream")
	})
	h := Routes(ServerConfig{ServiceName: "marketpulse", Version: "v1", Symbol: "USDTTMN", Stream: stream},
		health.New(logger.Nop(), "marketpulse", "v1"), logger.Nop())

	code, body := get(t, h, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"service":"marketpulse","version":"v1","symbol":"USDTTMN","status":"running"}`, body)

	code, _ = get(t, h, "/live")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "marketpulse_")

	_, body = get(t, h, "/stream")
	assert.Equal(t, "stream", body)

	code, _ = get(t, h, "/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRoutesWithoutStream(t *testing.T) {
	h := Routes(ServerConfig{}, health.New(logger.Nop(), "marketpulse", "v1"), logger.Nop())
	code, _ := get(t, h, "/stream")
	assert.Equal(t, http.StatusNotFound, code)
}
