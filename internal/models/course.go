package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Course is the stored input for one course/branch/semester: its sections,
// subjects and qualified teachers. The three lists are kept as JSON columns.
type Course struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Branch    string         `db:"branch" json:"branch"`
	Semester  string         `db:"semester" json:"semester"`
	Sections  types.JSONText `db:"sections" json:"sections"`
	Subjects  types.JSONText `db:"subjects" json:"subjects"`
	Teachers  types.JSONText `db:"teachers" json:"teachers"`
	CreatedBy *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures listing criteria for courses.
type CourseFilter struct {
	Search    string
	Semester  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
