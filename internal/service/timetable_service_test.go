package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type timetableRepoStub struct {
	mu        sync.Mutex
	items     map[string]models.Timetable
	createErr error
	lists     int
}

func newTimetableRepoStub() *timetableRepoStub {
	return &timetableRepoStub{items: map[string]models.Timetable{}}
}

func (s *timetableRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	version := 0
	for _, item := range s.items {
		if item.CourseID == timetable.CourseID && item.Version > version {
			version = item.Version
		}
	}
	timetable.ID = uuid.NewString()
	timetable.Version = version + 1
	timetable.CreatedAt = time.Date(2024, 7, 17, 9, 0, 0, 0, time.UTC)
	timetable.UpdatedAt = timetable.CreatedAt
	s.items[timetable.ID] = *timetable
	return nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (s *timetableRepoStub) ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []models.TimetableMeta
	for _, item := range s.items {
		if item.CourseID != courseID {
			continue
		}
		out = append(out, models.TimetableMeta{ID: item.ID, CourseID: item.CourseID, Version: item.Version, Status: item.Status, Seed: item.Seed, Degraded: item.Degraded, CreatedAt: item.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *timetableRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	s.items[id] = item
	return nil
}

func (s *timetableRepoStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

type timetableFixture struct {
	svc        *TimetableService
	courses    *courseRepoStub
	timetables *timetableRepoStub
	cache      *memoryCacheRepo
	metrics    *MetricsService
	courseID   string
}

func newTimetableFixture(t *testing.T, req dto.SaveCourseRequest) timetableFixture {
	t.Helper()
	courses := newCourseRepoStub()
	cacheRepo := newMemoryCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	saved, err := NewCourseService(courses, cacheSvc, nil, nil).Save(context.Background(), req, "")
	require.NoError(t, err)

	timetables := newTimetableRepoStub()
	metrics := NewMetricsService()
	svc := NewTimetableService(timetables, courses, cacheSvc, metrics, nil, TimetableConfig{})
	return timetableFixture{svc: svc, courses: courses, timetables: timetables, cache: cacheRepo, metrics: metrics, courseID: saved.ID}
}

func seedPtr(v int64) *int64 {
	return &v
}

func TestTimetableServiceGenerateStoresDraftVersions(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())
	ctx := context.Background()

	first, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(42)}, "user-1")
	require.NoError(t, err)
	second, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(42)}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, string(models.TimetableStatusDraft), first.Status)
	assert.Equal(t, int64(42), first.Seed)
	assert.Equal(t, first.Grid, second.Grid)
	assert.Equal(t, first.Stats, second.Stats)

	// 2 sections x (3 theory + 1 lab + 1 theory)
	assert.Equal(t, 10, first.Stats.TotalTasks)
	assert.Equal(t, []string{"A", "B"}, first.Grid.Sections)
	assert.Equal(t, []string{"Alice", "Bob"}, first.Grid.Teachers)
	assert.Len(t, first.Grid.SlotLabels, scheduler.DefaultSlotsPerDay)
	assert.Empty(t, first.Grid.Violations)

	stored := fx.timetables.items[first.ID]
	require.NotNil(t, stored.GeneratedBy)
	assert.Equal(t, "user-1", *stored.GeneratedBy)
	assert.Equal(t, uint64(2), fx.metrics.Snapshot().Generations)
}

func TestTimetableServiceGenerateFlagsUnassignedSubjects(t *testing.T) {
	req := sampleCourseRequest()
	req.Subjects = append(req.Subjects, dto.SubjectRequest{Name: "Ethics", Code: "HS101", Priority: 3, Type: "Theory"})
	fx := newTimetableFixture(t, req)

	view, err := fx.svc.Generate(context.Background(), fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(7)}, "")
	require.NoError(t, err)

	assert.True(t, view.Degraded)
	assert.Equal(t, 2, view.Stats.DroppedUnassigned)
	require.Len(t, view.Grid.Unplaced, 2)
	for _, item := range view.Grid.Unplaced {
		assert.Equal(t, "HS101", item.Code)
		assert.Equal(t, string(scheduler.ReasonUnassigned), item.Reason)
	}
	assert.True(t, fx.timetables.items[view.ID].Degraded)
}

func TestTimetableServiceGenerateUnknownCourse(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())

	_, err := fx.svc.Generate(context.Background(), "missing", dto.GenerateTimetableRequest{}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestTimetableServiceGenerateStoreFailure(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())
	fx.timetables.createErr = errors.New("db down")

	_, err := fx.svc.Generate(context.Background(), fx.courseID, dto.GenerateTimetableRequest{}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal))
}

func TestTimetableServiceGetUsesCache(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())
	ctx := context.Background()
	view, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(1)}, "")
	require.NoError(t, err)

	got, hit, err := fx.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, view.Grid, got.Grid)

	require.NoError(t, fx.cache.Delete(ctx, "timetable:"+view.ID))
	got, hit, err = fx.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, view.Grid, got.Grid)
	assert.Equal(t, view.Stats, got.Stats)

	_, _, err = fx.svc.Get(ctx, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestTimetableServiceListByCourse(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(int64(i))}, "")
		require.NoError(t, err)
	}

	items, err := fx.svc.ListByCourse(ctx, fx.courseID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Version)

	_, err = fx.svc.ListByCourse(ctx, fx.courseID)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.timetables.lists)

	_, err = fx.svc.ListByCourse(ctx, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestTimetableServicePublishAndDeleteRules(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())
	ctx := context.Background()
	published, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(3)}, "")
	require.NoError(t, err)
	draft, err := fx.svc.Generate(ctx, fx.courseID, dto.GenerateTimetableRequest{Seed: seedPtr(4)}, "")
	require.NoError(t, err)

	view, err := fx.svc.Publish(ctx, published.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.TimetableStatusPublished), view.Status)
	assert.False(t, fx.cache.has("timetable:"+published.ID))

	_, err = fx.svc.Publish(ctx, published.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotDraft))
	err = fx.svc.Delete(ctx, published.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotDraft))

	require.NoError(t, fx.svc.Delete(ctx, draft.ID))
	_, ok := fx.timetables.items[draft.ID]
	assert.False(t, ok)
	err = fx.svc.Delete(ctx, draft.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestTimetableServiceCourseMeta(t *testing.T) {
	fx := newTimetableFixture(t, sampleCourseRequest())

	meta, err := fx.svc.Course(context.Background(), fx.courseID)
	require.NoError(t, err)
	assert.Equal(t, CourseMeta{ID: "b.tech_cse_5", Name: "B.Tech", Branch: "CSE", Semester: "5"}, meta)
}
