package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceObserveGeneration(t *testing.T) {
	m := NewMetricsService()
	m.ObserveGeneration(20*time.Millisecond, 10, 1, 2)
	m.ObserveGeneration(5*time.Millisecond, 4, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `timetable_tasks_total{outcome="placed"} 14`)
	assert.Contains(t, body, `timetable_tasks_total{outcome="unassigned"} 1`)
	assert.Contains(t, body, `timetable_tasks_total{outcome="exhausted"} 2`)
	assert.Contains(t, body, `timetable_generation_seconds_count{degraded="true"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Generations)
	assert.Equal(t, uint64(1), snap.DegradedGenerations)
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/timetables/:id", http.StatusOK, 3*time.Millisecond)
	m.RecordBatchJob("DONE")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `timetable_batch_jobs_total{state="DONE"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration(time.Second, 1, 1, 1)
	m.RecordCacheOperation(true, time.Second)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
