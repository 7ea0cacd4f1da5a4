package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// TimetableRepository persists versioned generated timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for its course.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Stats) == 0 {
		timetable.Stats = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	// Concurrent generations for one course race for the same version; outside
	// a caller transaction the loser simply recomputes.
	attempts := 1
	if exec == nil {
		attempts = maxVersionAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = r.insertVersioned(ctx, r.exec(exec), timetable); err == nil || !isUniqueViolation(err) {
			return err
		}
	}
	return err
}

func (r *TimetableRepository) insertVersioned(ctx context.Context, target sqlx.ExtContext, timetable *models.Timetable) error {
	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM generated_timetables WHERE course_id = $1`
	if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.CourseID); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO generated_timetables (id, course_id, version, status, seed, degraded, result, stats, generated_by, created_at, updated_at)
VALUES (:id, :course_id, :version, :status, :seed, :degraded, :result, :stats, :generated_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

const maxVersionAttempts = 3

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// FindByID loads a timetable including its result payload.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	const query = `SELECT id, course_id, version, status, seed, degraded, result, stats, generated_by, created_at, updated_at FROM generated_timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// ListByCourse returns version metadata for a course, newest first.
func (r *TimetableRepository) ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error) {
	const query = `SELECT id, course_id, version, status, seed, degraded, created_at
FROM generated_timetables WHERE course_id = $1 ORDER BY version DESC`
	var items []models.TimetableMeta
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return items, nil
}

// UpdateStatus moves a timetable to a new lifecycle status.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	const query = `UPDATE generated_timetables SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored timetable version.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM generated_timetables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
