package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

type timetableManagerMock struct {
	request dto.GenerateTimetableRequest
	actor   string
	hit     bool
}

func (m *timetableManagerMock) Generate(ctx context.Context, courseID string, req dto.GenerateTimetableRequest, actorID string) (*dto.TimetableView, error) {
	if courseID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	m.request, m.actor = req, actorID
	return &dto.TimetableView{ID: "tt-1", CourseID: courseID, Version: 1, Degraded: true}, nil
}

func (m *timetableManagerMock) Get(ctx context.Context, id string) (*dto.TimetableView, bool, error) {
	return &dto.TimetableView{ID: id}, m.hit, nil
}

func (m *timetableManagerMock) ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error) {
	return []models.TimetableMeta{{ID: "tt-2", Version: 2}, {ID: "tt-1", Version: 1}}, nil
}

func (m *timetableManagerMock) Publish(ctx context.Context, id string) (*dto.TimetableView, error) {
	return nil, appErrors.Clone(appErrors.ErrNotDraft, "only draft timetables can be published")
}

func (m *timetableManagerMock) Delete(ctx context.Context, id string) error {
	return nil
}

type purgeRecorder struct {
	ids []string
}

func (p *purgeRecorder) Purge(ctx context.Context, id string) error {
	p.ids = append(p.ids, id)
	return nil
}

func timetableRouter(svc timetableManager, exports exportPurger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(svc, exports)
	r := gin.New()
	r.Use(middleware.ResponseTiming())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleHOD})
		c.Next()
	})
	r.POST("/courses/:id/timetables", h.Generate)
	r.GET("/courses/:id/timetables", h.ListByCourse)
	r.GET("/timetables/:id", h.Get)
	r.POST("/timetables/:id/publish", h.Publish)
	r.DELETE("/timetables/:id", h.Delete)
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerGenerateWithSeed(t *testing.T) {
	mock := &timetableManagerMock{}
	req := httptest.NewRequest(http.MethodPost, "/courses/b.tech_cse_5/timetables", bytes.NewBufferString(`{"seed":42}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	timetableRouter(mock, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.request.Seed)
	assert.Equal(t, int64(42), *mock.request.Seed)
	assert.Equal(t, "u-1", mock.actor)
	assert.Equal(t, true, decodeEnvelope(t, w).Meta["degraded"])
}

func TestTimetableHandlerGenerateWithoutBody(t *testing.T) {
	mock := &timetableManagerMock{}
	w := httptest.NewRecorder()
	timetableRouter(mock, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/b.tech_cse_5/timetables", nil))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, mock.request.Seed)

	w = httptest.NewRecorder()
	timetableRouter(mock, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/missing/timetables", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerGetReportsCacheHit(t *testing.T) {
	w := httptest.NewRecorder()
	timetableRouter(&timetableManagerMock{hit: true}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/tt-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w).Meta["cache_hit"])
}

func TestTimetableHandlerPublishConflict(t *testing.T) {
	w := httptest.NewRecorder()
	timetableRouter(&timetableManagerMock{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/timetables/tt-1/publish", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrNotDraft.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerListAndDelete(t *testing.T) {
	purged := &purgeRecorder{}
	r := timetableRouter(&timetableManagerMock{}, purged)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/b.tech_cse_5/timetables", nil))
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := decodeEnvelope(t, w).Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/timetables/tt-1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"tt-1"}, purged.ids)
}

type exporterMock struct {
	format, section string
	file            string
}

func (m *exporterMock) Export(ctx context.Context, id, format, section string) (*dto.ExportFile, error) {
	if format == "docx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	m.format, m.section = format, section
	return &dto.ExportFile{Filename: "Timetable_B.Tech_A_Sem5.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}, nil
}

func (m *exporterMock) CreateDownloadLink(ctx context.Context, id, format, section string) (*dto.ExportLinkResponse, error) {
	return &dto.ExportLinkResponse{URL: "/api/v1/exports/download?token=t", Token: "t", Filename: "x.csv", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *exporterMock) Download(token string) (*storage.Object, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	f, err := os.Open(m.file)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &storage.Object{ReadCloser: f, Key: "tt-1/" + filepath.Base(m.file), Size: info.Size()}, nil
}

func exportRouter(svc timetableExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(svc)
	r := gin.New()
	r.GET("/timetables/:id/export", h.Export)
	r.POST("/timetables/:id/export-link", h.CreateLink)
	r.GET("/exports/download", h.Download)
	return r
}

func TestExportHandlerSetsAttachmentHeaders(t *testing.T) {
	mock := &exporterMock{}
	w := httptest.NewRecorder()
	exportRouter(mock).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/tt-1/export?format=csv&section=A", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Timetable_B.Tech_A_Sem5.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", w.Body.String())
	assert.Equal(t, "A", mock.section)

	w = httptest.NewRecorder()
	exportRouter(mock).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/tt-1/export?format=docx", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerLinkAndDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Timetables_ALL_Sections_B.Tech_Sem5.csv")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	mock := &exporterMock{file: path}
	r := exportRouter(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/timetables/tt-1/export-link?format=csv", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/download?token=good", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payload", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Timetables_ALL_Sections_B.Tech_Sem5.csv")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/download?token=bad", nil))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/download", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
