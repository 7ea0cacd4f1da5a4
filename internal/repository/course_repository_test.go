package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

var courseRowColumns = []string{"id", "name", "branch", "semester", "sections", "subjects", "teachers", "created_by", "created_at", "updated_at"}

func TestCourseRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs("btech_cse_5", "BTech", "CSE", "5", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{
		ID:       "btech_cse_5",
		Name:     "BTech",
		Branch:   "CSE",
		Semester: "5",
		Sections: types.JSONText(`["A"]`),
		Subjects: types.JSONText(`[]`),
		Teachers: types.JSONText(`[]`),
	}
	require.NoError(t, repo.Upsert(context.Background(), course))
	assert.False(t, course.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpsertRequiresID(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	assert.Error(t, repo.Upsert(context.Background(), &models.Course{}))
	assert.Error(t, repo.Upsert(context.Background(), nil))
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseRowColumns).
		AddRow("btech_cse_5", "BTech", "CSE", "5", []byte(`["A","B"]`), []byte(`[]`), []byte(`[]`), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("btech_cse_5").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "btech_cse_5")
	require.NoError(t, err)
	assert.Equal(t, "CSE", course.Branch)
	assert.JSONEq(t, `["A","B"]`, string(course.Sections))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseRowColumns).
		AddRow("btech_cse_5", "BTech", "CSE", "5", []byte(`["A"]`), []byte(`[]`), []byte(`[]`), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE 1=1 AND (LOWER(name) LIKE $1 OR LOWER(branch) LIKE $1) AND semester = $2 ORDER BY name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%cse%", "5").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE 1=1 AND")).
		WithArgs("%cse%", "5").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{
		Search:    "CSE",
		Semester:  "5",
		Page:      2,
		PageSize:  10,
		SortBy:    "name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListFallsBackOnUnknownSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE 1=1 ORDER BY updated_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(courseRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.CourseFilter{SortBy: "id; DROP TABLE courses"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
