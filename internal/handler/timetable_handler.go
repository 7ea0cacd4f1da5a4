package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableManager interface {
	Generate(ctx context.Context, courseID string, req dto.GenerateTimetableRequest, actorID string) (*dto.TimetableView, error)
	Get(ctx context.Context, id string) (*dto.TimetableView, bool, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.TimetableMeta, error)
	Publish(ctx context.Context, id string) (*dto.TimetableView, error)
	Delete(ctx context.Context, id string) error
}

type exportPurger interface {
	Purge(ctx context.Context, id string) error
}

// TimetableHandler exposes generation and version management.
type TimetableHandler struct {
	service timetableManager
	exports exportPurger
}

// NewTimetableHandler constructs the handler. exports may be nil.
func NewTimetableHandler(svc timetableManager, exports exportPurger) *TimetableHandler {
	return &TimetableHandler{service: svc, exports: exports}
}

// Generate godoc
// @Summary Generate a timetable for a course
// @Description Runs the scheduler and stores the result as a new draft version. Sessions that could not be placed are listed under grid.unplaced and the version is flagged degraded.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.GenerateTimetableRequest false "Optional seed"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/timetables [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Invalid(err, "invalid generate payload"))
		return
	}
	view, err := h.service.Generate(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, view.ID)
	response.JSON(c, http.StatusCreated, view, nil, map[string]interface{}{"degraded": view.Degraded})
}

// ListByCourse godoc
// @Summary List timetable versions of a course
// @Tags Timetables
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/timetables [get]
func (h *TimetableHandler) ListByCourse(c *gin.Context) {
	items, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a timetable version
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	view, hit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.Meta(c))
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	view, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if h.exports != nil {
		// the version is gone; a leftover file only wastes disk until the sweep
		_ = h.exports.Purge(c.Request.Context(), id)
	}
	response.NoContent(c)
}
