package dto

import "time"

// SubjectRequest declares one subject taught to every section of a course.
type SubjectRequest struct {
	Name     string `json:"name" csv:"name" validate:"required"`
	Code     string `json:"code" csv:"code" validate:"required"`
	Priority int    `json:"priority" csv:"priority" validate:"required,min=1,max=3"`
	Type     string `json:"type" csv:"type" validate:"required,oneof=Theory Lab"`
}

// TeacherRequest declares a teacher and the subject names they can teach.
type TeacherRequest struct {
	Name     string   `json:"name" validate:"required"`
	Subjects []string `json:"subjects" validate:"required,min=1,dive,required"`
}

// SaveCourseRequest creates or replaces a course definition. Each sections
// entry may itself hold a comma separated list.
type SaveCourseRequest struct {
	Name     string           `json:"name" validate:"required"`
	Branch   string           `json:"branch" validate:"required"`
	Semester string           `json:"semester" validate:"required"`
	Sections []string         `json:"sections" validate:"required,min=1"`
	Subjects []SubjectRequest `json:"subjects" validate:"required,min=1,dive"`
	Teachers []TeacherRequest `json:"teachers" validate:"required,min=1,dive"`
}

// CourseResponse is the decoded view of a stored course.
type CourseResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Branch    string           `json:"branch"`
	Semester  string           `json:"semester"`
	Sections  []string         `json:"sections"`
	Subjects  []SubjectRequest `json:"subjects"`
	Teachers  []TeacherRequest `json:"teachers"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// CourseQuery filters course listings.
type CourseQuery struct {
	Search    string `form:"search"`
	Semester  string `form:"semester"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}

// ImportCourseResult summarises a CSV import.
type ImportCourseResult struct {
	Course   CourseResponse `json:"course"`
	Subjects int            `json:"subjects"`
	Teachers int            `json:"teachers"`
}
