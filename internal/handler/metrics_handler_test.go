package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/service"
)

func observabilityRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/scheduler/requirements", NewSchedulerHandler().Requirements)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadyReportsFailingDependency(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	r := observabilityRouter(NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"database": ok}))
	assert.Equal(t, http.StatusOK, get(r, "/ready").Code)

	r = observabilityRouter(NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"database": ok, "cache": down}))
	w := get(r, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealthAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	r := observabilityRouter(NewMetricsHandler(metrics, nil))

	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
	w := get(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	assert.Equal(t, http.StatusServiceUnavailable, get(observabilityRouter(NewMetricsHandler(nil, nil)), "/metrics").Code)
}

func TestRequirementsListsPriorities(t *testing.T) {
	w := get(observabilityRouter(NewMetricsHandler(nil, nil)), "/scheduler/requirements")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `{"priority":1,"theorySessions":3,"labSessions":2}`)
	assert.Contains(t, body, `"08:00-08:55"`)
}
