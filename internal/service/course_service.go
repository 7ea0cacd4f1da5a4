package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/cache"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type courseRepository interface {
	Upsert(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Delete(ctx context.Context, id string) error
}

// CourseService manages the course definitions fed to the timetable engine.
type CourseService struct {
	repo      courseRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(repo courseRepository, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cacheSvc, validator: validate, logger: logger}
}

// Save validates and normalises the request, then creates or replaces the course.
func (s *CourseService) Save(ctx context.Context, req dto.SaveCourseRequest, actorID string) (*dto.CourseResponse, error) {
	normalized, err := NormalizeCourse(req, s.validator)
	if err != nil {
		return nil, err
	}

	sections, _ := json.Marshal(normalized.Sections)
	subjects, _ := json.Marshal(normalized.Subjects)
	teachers, _ := json.Marshal(normalized.Teachers)
	course := &models.Course{
		ID:       CourseID(normalized.Name, normalized.Branch, normalized.Semester),
		Name:     normalized.Name,
		Branch:   normalized.Branch,
		Semester: normalized.Semester,
		Sections: types.JSONText(sections),
		Subjects: types.JSONText(subjects),
		Teachers: types.JSONText(teachers),
	}
	if actorID != "" {
		course.CreatedBy = &actorID
	}

	if err := s.repo.Upsert(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save course")
	}
	s.invalidate(ctx, course.ID)

	s.logger.Info("course saved",
		zap.String("course_id", course.ID),
		zap.Int("sections", len(normalized.Sections)),
		zap.Int("subjects", len(normalized.Subjects)),
		zap.Int("teachers", len(normalized.Teachers)),
	)
	return toCourseResponse(course, normalized), nil
}

// Import builds a course from the request metadata plus subject and teacher CSV files.
func (s *CourseService) Import(ctx context.Context, meta dto.SaveCourseRequest, subjectsCSV, teachersCSV io.Reader, actorID string) (*dto.ImportCourseResult, error) {
	subjects, err := ParseSubjectsCSV(subjectsCSV)
	if err != nil {
		return nil, err
	}
	teachers, err := ParseTeachersCSV(teachersCSV)
	if err != nil {
		return nil, err
	}
	meta.Subjects = subjects
	meta.Teachers = teachers

	course, err := s.Save(ctx, meta, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.ImportCourseResult{Course: *course, Subjects: len(subjects), Teachers: len(teachers)}, nil
}

// Get returns a course by identifier.
func (s *CourseService) Get(ctx context.Context, id string) (*dto.CourseResponse, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeCourse(course)
	if err != nil {
		return nil, err
	}
	return toCourseResponse(course, decoded), nil
}

// List returns a page of courses.
func (s *CourseService) List(ctx context.Context, query dto.CourseQuery) ([]dto.CourseResponse, *models.Pagination, error) {
	filter := models.CourseFilter{
		Search:    strings.TrimSpace(query.Search),
		Semester:  strings.TrimSpace(query.Semester),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	items := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		decoded, err := decodeCourse(&courses[i])
		if err != nil {
			return nil, nil, err
		}
		items = append(items, *toCourseResponse(&courses[i], decoded))
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Delete removes a course together with its generated timetables.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) invalidate(ctx context.Context, courseID string) {
	_ = s.cache.EvictTag(ctx, cache.CourseTag(courseID))
}

// CourseID derives the stable course identifier, e.g. "B.Tech", "CSE & AI", "5"
// becomes "b.tech_cse-ai_5".
func CourseID(name, branch, semester string) string {
	parts := []string{name, branch, semester}
	for i, part := range parts {
		part = strings.ReplaceAll(strings.TrimSpace(part), "&", " ")
		parts[i] = strings.ToLower(strings.Join(strings.Fields(part), "-"))
	}
	return strings.Join(parts, "_")
}

// SplitSections flattens comma separated section entries into trimmed,
// upper-cased labels, dropping blanks.
func SplitSections(entries []string) []string {
	var sections []string
	for _, entry := range entries {
		for _, raw := range strings.Split(entry, ",") {
			if label := strings.ToUpper(strings.TrimSpace(raw)); label != "" {
				sections = append(sections, label)
			}
		}
	}
	return sections
}

// NormalizeCourse trims and canonicalises a course request and checks the
// rules the engine relies on: unique sections, unique subject codes and names,
// and teachers qualified only for declared subjects.
func NormalizeCourse(req dto.SaveCourseRequest, validate *validator.Validate) (dto.SaveCourseRequest, error) {
	if validate == nil {
		validate = validator.New()
	}
	out := dto.SaveCourseRequest{
		Name:     strings.TrimSpace(req.Name),
		Branch:   strings.TrimSpace(req.Branch),
		Semester: strings.TrimSpace(req.Semester),
		Sections: SplitSections(req.Sections),
	}
	for _, subject := range req.Subjects {
		out.Subjects = append(out.Subjects, dto.SubjectRequest{
			Name:     strings.TrimSpace(subject.Name),
			Code:     strings.TrimSpace(subject.Code),
			Priority: subject.Priority,
			Type:     canonicalSubjectType(subject.Type),
		})
	}
	for _, teacher := range req.Teachers {
		t := dto.TeacherRequest{Name: strings.TrimSpace(teacher.Name)}
		for _, name := range teacher.Subjects {
			if name = strings.TrimSpace(name); name != "" {
				t.Subjects = append(t.Subjects, name)
			}
		}
		out.Teachers = append(out.Teachers, t)
	}

	if err := validate.Struct(out); err != nil {
		return out, appErrors.Invalid(err, "invalid course payload")
	}

	seenSections := make(map[string]bool, len(out.Sections))
	for _, section := range out.Sections {
		if seenSections[section] {
			return out, validationError("duplicate section %q", section)
		}
		seenSections[section] = true
	}

	codes := make(map[string]bool, len(out.Subjects))
	names := make(map[string]string, len(out.Subjects))
	for _, subject := range out.Subjects {
		code := strings.ToUpper(subject.Code)
		if codes[code] {
			return out, validationError("duplicate subject code %q", subject.Code)
		}
		codes[code] = true
		key := strings.ToLower(subject.Name)
		if _, exists := names[key]; exists {
			return out, validationError("duplicate subject name %q", subject.Name)
		}
		names[key] = subject.Name
	}

	seenTeachers := make(map[string]bool, len(out.Teachers))
	for i, teacher := range out.Teachers {
		key := strings.ToLower(teacher.Name)
		if seenTeachers[key] {
			return out, validationError("duplicate teacher %q", teacher.Name)
		}
		seenTeachers[key] = true
		for j, name := range teacher.Subjects {
			canonical, ok := names[strings.ToLower(name)]
			if !ok {
				return out, validationError("teacher %q lists unknown subject %q", teacher.Name, name)
			}
			out.Teachers[i].Subjects[j] = canonical
		}
	}
	return out, nil
}

// ToCourseInput decodes a stored course into engine input.
func ToCourseInput(course *models.Course) (scheduler.CourseInput, error) {
	decoded, err := decodeCourse(course)
	if err != nil {
		return scheduler.CourseInput{}, err
	}
	return CourseInputFromRequest(decoded), nil
}

// CourseInputFromRequest maps a normalised course request to engine input.
func CourseInputFromRequest(req dto.SaveCourseRequest) scheduler.CourseInput {
	input := scheduler.CourseInput{Sections: append([]string(nil), req.Sections...)}
	for _, subject := range req.Subjects {
		input.Subjects = append(input.Subjects, scheduler.Subject{
			Name:     subject.Name,
			Code:     subject.Code,
			Priority: subject.Priority,
			Type:     scheduler.SubjectType(subject.Type),
		})
	}
	for _, teacher := range req.Teachers {
		input.Teachers = append(input.Teachers, scheduler.Teacher{
			Name:     teacher.Name,
			Subjects: append([]string(nil), teacher.Subjects...),
		})
	}
	return input
}

type teacherCSVRow struct {
	Name     string `csv:"name"`
	Subjects string `csv:"subjects"`
}

// ParseSubjectsCSV reads subjects from a CSV with the header name,code,priority,type.
func ParseSubjectsCSV(r io.Reader) ([]dto.SubjectRequest, error) {
	if r == nil {
		return nil, validationError("subjects file is required")
	}
	var rows []dto.SubjectRequest
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, appErrors.Invalid(err, "invalid subjects csv")
	}
	if len(rows) == 0 {
		return nil, validationError("subjects csv has no rows")
	}
	for i := range rows {
		rows[i].Type = canonicalSubjectType(rows[i].Type)
	}
	return rows, nil
}

// ParseTeachersCSV reads teachers from a CSV with the header name,subjects where
// subjects is a "|" separated list of subject names.
func ParseTeachersCSV(r io.Reader) ([]dto.TeacherRequest, error) {
	if r == nil {
		return nil, validationError("teachers file is required")
	}
	var rows []teacherCSVRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, appErrors.Invalid(err, "invalid teachers csv")
	}
	if len(rows) == 0 {
		return nil, validationError("teachers csv has no rows")
	}
	teachers := make([]dto.TeacherRequest, 0, len(rows))
	for _, row := range rows {
		teacher := dto.TeacherRequest{Name: strings.TrimSpace(row.Name)}
		for _, name := range strings.Split(row.Subjects, "|") {
			if name = strings.TrimSpace(name); name != "" {
				teacher.Subjects = append(teacher.Subjects, name)
			}
		}
		teachers = append(teachers, teacher)
	}
	return teachers, nil
}

func canonicalSubjectType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "theory":
		return string(scheduler.SubjectTypeTheory)
	case "lab":
		return string(scheduler.SubjectTypeLab)
	}
	return strings.TrimSpace(raw)
}

func decodeCourse(course *models.Course) (dto.SaveCourseRequest, error) {
	out := dto.SaveCourseRequest{Name: course.Name, Branch: course.Branch, Semester: course.Semester}
	if err := unmarshalColumn(course.Sections, &out.Sections); err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt course sections")
	}
	if err := unmarshalColumn(course.Subjects, &out.Subjects); err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt course subjects")
	}
	if err := unmarshalColumn(course.Teachers, &out.Teachers); err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt course teachers")
	}
	return out, nil
}

func unmarshalColumn(raw types.JSONText, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func toCourseResponse(course *models.Course, decoded dto.SaveCourseRequest) *dto.CourseResponse {
	return &dto.CourseResponse{
		ID:        course.ID,
		Name:      course.Name,
		Branch:    course.Branch,
		Semester:  course.Semester,
		Sections:  decoded.Sections,
		Subjects:  decoded.Subjects,
		Teachers:  decoded.Teachers,
		CreatedAt: course.CreatedAt,
		UpdatedAt: course.UpdatedAt,
	}
}

func validationError(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}
