package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
)

// Timetable is one versioned generation run for a course.
type Timetable struct {
	ID          string          `db:"id" json:"id"`
	CourseID    string          `db:"course_id" json:"course_id"`
	Version     int             `db:"version" json:"version"`
	Status      TimetableStatus `db:"status" json:"status"`
	Seed        int64           `db:"seed" json:"seed"`
	Degraded    bool            `db:"degraded" json:"degraded"`
	Result      types.JSONText  `db:"result" json:"result"`
	Stats       types.JSONText  `db:"stats" json:"stats"`
	GeneratedBy *string         `db:"generated_by" json:"generated_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableMeta is the lightweight listing view of a timetable version.
type TimetableMeta struct {
	ID        string          `db:"id" json:"id"`
	CourseID  string          `db:"course_id" json:"course_id"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Seed      int64           `db:"seed" json:"seed"`
	Degraded  bool            `db:"degraded" json:"degraded"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
