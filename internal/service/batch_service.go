package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

type timetableGenerator interface {
	Generate(ctx context.Context, courseID string, req dto.GenerateTimetableRequest, actorID string) (*dto.TimetableView, error)
}

// BatchConfig sizes the worker pool and batch retention.
type BatchConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	TTL        time.Duration
}

type batchJob struct {
	BatchID  string
	Index    int
	CourseID string
	Seed     *int64
	ActorID  string
}

type batchState struct {
	status    dto.BatchStatus
	expiresAt time.Time
}

// BatchService generates timetables for many courses on a worker pool. Each
// job runs the engine with its own random source.
type BatchService struct {
	generator timetableGenerator
	pool      *jobs.Pool[batchJob]
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	batches map[string]*batchState
}

// NewBatchService constructs the service; call Start before submitting.
func NewBatchService(generator timetableGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg BatchConfig) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	s := &BatchService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		ttl:       cfg.TTL,
		now:       time.Now,
		batches:   make(map[string]*batchState),
	}
	s.pool = jobs.NewPool("timetable-batch", s.handle, jobs.Options[batchJob]{
		Workers:    cfg.Workers,
		Buffer:     cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryDelay,
		OnFailure:  s.fail,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *BatchService) Start(ctx context.Context) {
	s.pool.Start(ctx)
}

// Stop waits for in-flight jobs to exit.
func (s *BatchService) Stop() {
	s.pool.Stop()
}

// Submit enqueues one generation job per course and returns the batch.
func (s *BatchService) Submit(ctx context.Context, req dto.BatchRequest, actorID string) (*dto.BatchStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid batch payload")
	}
	s.purge()

	status := dto.BatchStatus{ID: uuid.NewString(), CreatedAt: s.now().UTC()}
	seen := make(map[string]bool, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		status.Items = append(status.Items, dto.BatchItem{CourseID: id, State: dto.BatchStatePending})
	}
	if len(status.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no course ids given")
	}

	s.mu.Lock()
	s.batches[status.ID] = &batchState{status: status, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	for i, item := range status.Items {
		task := jobs.Task[batchJob]{
			ID: fmt.Sprintf("%s/%d", status.ID, i),
			Payload: batchJob{
				BatchID:  status.ID,
				Index:    i,
				CourseID: item.CourseID,
				Seed:     req.Seed,
				ActorID:  actorID,
			},
		}
		if err := s.pool.Submit(ctx, task); err != nil {
			s.update(status.ID, i, dto.BatchStateFailed, "", err.Error())
			s.logger.Error("failed to enqueue generation job", zap.String("batch_id", status.ID), zap.Error(err))
		}
	}

	s.logger.Info("timetable batch submitted", zap.String("batch_id", status.ID), zap.Int("courses", len(status.Items)))
	return s.Status(status.ID)
}

// Status returns a snapshot of a batch.
func (s *BatchService) Status(id string) (*dto.BatchStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.batches[id]
	if !ok || s.now().After(state.expiresAt) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	snapshot := state.status
	snapshot.Items = append([]dto.BatchItem(nil), state.status.Items...)
	return &snapshot, nil
}

func (s *BatchService) handle(ctx context.Context, task jobs.Task[batchJob]) error {
	payload := task.Payload
	view, err := s.generator.Generate(ctx, payload.CourseID, dto.GenerateTimetableRequest{Seed: payload.Seed}, payload.ActorID)
	if err != nil {
		// Client errors will not improve on retry.
		if appErr := appErrors.FromError(err); appErr.Status < 500 {
			s.update(payload.BatchID, payload.Index, dto.BatchStateFailed, "", appErr.Message)
			s.metrics.RecordBatchJob(dto.BatchStateFailed)
			return nil
		}
		return err
	}
	s.update(payload.BatchID, payload.Index, dto.BatchStateDone, view.ID, "")
	s.metrics.RecordBatchJob(dto.BatchStateDone)
	return nil
}

func (s *BatchService) fail(task jobs.Task[batchJob], err error) {
	payload := task.Payload
	s.update(payload.BatchID, payload.Index, dto.BatchStateFailed, "", err.Error())
	s.metrics.RecordBatchJob(dto.BatchStateFailed)
}

func (s *BatchService) update(batchID string, index int, state, timetableID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok || index < 0 || index >= len(batch.status.Items) {
		return
	}
	item := &batch.status.Items[index]
	item.State = state
	item.TimetableID = timetableID
	item.Error = message
}

func (s *BatchService) purge() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range s.batches {
		if now.After(state.expiresAt) {
			delete(s.batches, id)
		}
	}
}
