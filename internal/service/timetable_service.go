package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/cache"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	applog "github.com/noah-isme/timetable-api/pkg/logger"
)

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error
	Delete(ctx context.Context, id string) error
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// TimetableConfig tunes generation and caching.
type TimetableConfig struct {
	Engine   scheduler.Config
	CacheTTL time.Duration
}

// TimetableService runs the scheduling engine for stored courses and manages
// the resulting timetable versions.
type TimetableService struct {
	timetables timetableRepository
	courses    courseFinder
	engine     *scheduler.Engine
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewTimetableService wires dependencies.
func NewTimetableService(timetables timetableRepository, courses courseFinder, cacheSvc *CacheService, metrics *MetricsService, logger *zap.Logger, cfg TimetableConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &TimetableService{
		timetables: timetables,
		courses:    courses,
		engine:     scheduler.NewEngine(cfg.Engine, logger.Named("scheduler")),
		cache:      cacheSvc,
		metrics:    metrics,
		logger:     logger,
		cacheTTL:   cfg.CacheTTL,
		now:        time.Now,
	}
}

// Generate schedules the course and stores the result as a new draft version.
// Tasks that could not be placed do not fail the call; the version is flagged
// degraded and the tasks are listed in the grid.
func (s *TimetableService) Generate(ctx context.Context, courseID string, req dto.GenerateTimetableRequest, actorID string) (*dto.TimetableView, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	input, err := ToCourseInput(course)
	if err != nil {
		return nil, err
	}

	seed := s.now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	log := applog.WithContext(ctx, s.logger).With(zap.String("course_id", course.ID), zap.Int64("seed", seed))
	start := time.Now()
	result, err := s.engine.Generate(input, rand.New(rand.NewSource(seed)))
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidInput) {
			return nil, appErrors.Invalid(err, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate timetable")
	}
	duration := time.Since(start)
	s.metrics.ObserveGeneration(duration, result.Stats.Placed, result.Stats.DroppedUnassigned, result.Stats.DroppedExhausted)

	violations := scheduler.Verify(result, s.engine.Config().MaxConsecutive)
	if len(violations) > 0 {
		log.Error("generated timetable failed verification",
			zap.Int("violations", len(violations)),
			zap.String("first", violations[0].String()),
		)
	}

	grid := BuildTimetableGrid(result, input, violations)
	stats := StatsView(result.Stats)
	gridJSON, err := json.Marshal(grid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable")
	}
	statsJSON, _ := json.Marshal(stats)

	record := &models.Timetable{
		CourseID: course.ID,
		Status:   models.TimetableStatusDraft,
		Seed:     seed,
		Degraded: !result.Complete(),
		Result:   types.JSONText(gridJSON),
		Stats:    types.JSONText(statsJSON),
	}
	if actorID != "" {
		record.GeneratedBy = &actorID
	}
	if err := s.timetables.CreateVersioned(ctx, nil, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}

	if record.Degraded {
		for _, task := range result.Unplaced {
			log.Warn("session not scheduled",
				zap.String("timetable_id", record.ID),
				zap.String("section", task.Section),
				zap.String("code", task.Code),
				zap.String("teacher", task.Teacher),
				zap.String("reason", string(task.Reason)),
			)
		}
	}
	log.Info("timetable generated",
		zap.String("timetable_id", record.ID),
		zap.Int("version", record.Version),
		zap.Int("placed", result.Stats.Placed),
		zap.Int("total", result.Stats.TotalTasks),
		zap.Duration("took", duration),
	)

	view := &dto.TimetableView{
		ID:        record.ID,
		CourseID:  record.CourseID,
		Version:   record.Version,
		Status:    string(record.Status),
		Seed:      seed,
		Degraded:  record.Degraded,
		Grid:      grid,
		Stats:     stats,
		CreatedAt: record.CreatedAt,
	}
	tag := cache.CourseTag(course.ID)
	_ = s.cache.EvictTag(ctx, tag)
	_ = s.cache.Set(ctx, cache.Key(record.ID), view, s.cacheTTL, tag)
	return view, nil
}

// Get returns a timetable, serving from cache when possible. The boolean
// reports a cache hit.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableView, bool, error) {
	key := cache.Key(id)
	var cached dto.TimetableView
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	record, err := s.find(ctx, id)
	if err != nil {
		return nil, false, err
	}
	view, err := toTimetableView(record)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, key, view, s.cacheTTL, cache.CourseTag(view.CourseID))
	return view, false, nil
}

// ListByCourse returns the stored versions of a course, newest first.
func (s *TimetableService) ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	key := cache.Key("course", courseID, "list")
	var cached []models.TimetableMeta
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	items, err := s.timetables.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	if items == nil {
		items = []models.TimetableMeta{}
	}
	_ = s.cache.Set(ctx, key, items, s.cacheTTL, cache.CourseTag(courseID))
	return items, nil
}

// Publish promotes a draft version.
func (s *TimetableService) Publish(ctx context.Context, id string) (*dto.TimetableView, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TimetableStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrNotDraft, "only draft timetables can be published")
	}
	if err := s.timetables.UpdateStatus(ctx, nil, id, models.TimetableStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	record.Status = models.TimetableStatusPublished
	s.invalidate(ctx, record)

	s.logger.Info("timetable published", zap.String("timetable_id", id), zap.String("course_id", record.CourseID))
	return toTimetableView(record)
}

// Delete removes a draft version. Published versions are kept.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrNotDraft, "published timetables cannot be deleted")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, record)
	return nil
}

// Course returns the rendering metadata of a course.
func (s *TimetableService) Course(ctx context.Context, courseID string) (CourseMeta, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return CourseMeta{}, err
	}
	return CourseMeta{ID: course.ID, Name: course.Name, Branch: course.Branch, Semester: course.Semester}, nil
}

// invalidate drops the version and every listing of its course. A nil cache
// service is a no-op.
func (s *TimetableService) invalidate(ctx context.Context, record *models.Timetable) {
	_ = s.cache.Delete(ctx, cache.Key(record.ID))
	_ = s.cache.EvictTag(ctx, cache.CourseTag(record.CourseID))
}

func (s *TimetableService) find(ctx context.Context, id string) (*models.Timetable, error) {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func toTimetableView(record *models.Timetable) (*dto.TimetableView, error) {
	view := &dto.TimetableView{
		ID:        record.ID,
		CourseID:  record.CourseID,
		Version:   record.Version,
		Status:    string(record.Status),
		Seed:      record.Seed,
		Degraded:  record.Degraded,
		CreatedAt: record.CreatedAt,
	}
	if err := unmarshalColumn(record.Result, &view.Grid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt timetable result")
	}
	if err := unmarshalColumn(record.Stats, &view.Stats); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt timetable stats")
	}
	return view, nil
}
