package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

// maxImportFileSize caps each uploaded CSV.
const maxImportFileSize = 1 << 20

type courseManager interface {
	Save(ctx context.Context, req dto.SaveCourseRequest, actorID string) (*dto.CourseResponse, error)
	Import(ctx context.Context, meta dto.SaveCourseRequest, subjectsCSV, teachersCSV io.Reader, actorID string) (*dto.ImportCourseResult, error)
	Get(ctx context.Context, id string) (*dto.CourseResponse, error)
	List(ctx context.Context, query dto.CourseQuery) ([]dto.CourseResponse, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
}

// CourseHandler exposes course definition endpoints.
type CourseHandler struct {
	service courseManager
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseManager) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Name or branch contains"
// @Param semester query string false "Semester"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sortBy query string false "name|branch|semester|created_at|updated_at"
// @Param sortOrder query string false "asc|desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Save godoc
// @Summary Create or replace a course
// @Description The course ID is derived from name, branch and semester.
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.SaveCourseRequest true "Course definition"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [put]
func (h *CourseHandler) Save(c *gin.Context) {
	var req dto.SaveCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid course payload"))
		return
	}
	course, err := h.service.Save(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, course.ID)
	response.JSON(c, http.StatusOK, course, nil)
}

// Import godoc
// @Summary Import a course from CSV files
// @Description subjects: name,code,priority,type. teachers: name,subjects with subjects separated by "|".
// @Tags Courses
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Course name"
// @Param branch formData string true "Branch"
// @Param semester formData string true "Semester"
// @Param sections formData string true "Comma separated sections"
// @Param subjects formData file true "Subjects CSV"
// @Param teachers formData file true "Teachers CSV"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/import [post]
func (h *CourseHandler) Import(c *gin.Context) {
	meta := dto.SaveCourseRequest{
		Name:     c.PostForm("name"),
		Branch:   c.PostForm("branch"),
		Semester: c.PostForm("semester"),
		Sections: c.PostFormArray("sections"),
	}
	subjects, err := openUpload(c, "subjects")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer subjects.Close()
	teachers, err := openUpload(c, "teachers")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer teachers.Close()

	result, err := h.service.Import(c.Request.Context(), meta, subjects, teachers, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, result.Course.ID)
	response.Created(c, result)
}

// Delete godoc
// @Summary Delete course
// @Description Removes the course and every generated timetable for it.
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func openUpload(c *gin.Context, field string) (multipart.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Invalid(err, field+" file is required")
	}
	if header.Size > maxImportFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" file is too large")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Invalid(err, "cannot read "+field+" file")
	}
	return file, nil
}
