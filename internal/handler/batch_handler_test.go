package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type batchRunnerMock struct {
	submitted dto.BatchRequest
}

func (m *batchRunnerMock) Submit(ctx context.Context, req dto.BatchRequest, actorID string) (*dto.BatchStatus, error) {
	m.submitted = req
	return &dto.BatchStatus{ID: "batch-1", Items: []dto.BatchItem{{CourseID: req.CourseIDs[0], State: dto.BatchStatePending}}}, nil
}

func (m *batchRunnerMock) Status(id string) (*dto.BatchStatus, error) {
	if id != "batch-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return &dto.BatchStatus{ID: id, Items: []dto.BatchItem{{CourseID: "c1", State: dto.BatchStateDone, TimetableID: "tt-1"}}}, nil
}

func batchRouter(svc batchRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBatchHandler(svc)
	r := gin.New()
	r.POST("/timetables/batch", h.Submit)
	r.GET("/timetables/batch/:id", h.Status)
	return r
}

func TestBatchHandlerSubmit(t *testing.T) {
	mock := &batchRunnerMock{}
	req := httptest.NewRequest(http.MethodPost, "/timetables/batch", bytes.NewBufferString(`{"courseIds":["c1","c2"],"seed":7}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	batchRouter(mock).ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/timetables/batch/batch-1", w.Header().Get("Location"))
	assert.Equal(t, []string{"c1", "c2"}, mock.submitted.CourseIDs)
	require.NotNil(t, mock.submitted.Seed)
	assert.Equal(t, int64(7), *mock.submitted.Seed)
}

func TestBatchHandlerStatus(t *testing.T) {
	r := batchRouter(&batchRunnerMock{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/batch/batch-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w).Meta["done"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/batch/other", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
