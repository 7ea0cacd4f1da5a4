package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type batchRunner interface {
	Submit(ctx context.Context, req dto.BatchRequest, actorID string) (*dto.BatchStatus, error)
	Status(id string) (*dto.BatchStatus, error)
}

// BatchHandler exposes background generation for several courses.
type BatchHandler struct {
	service batchRunner
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(svc batchRunner) *BatchHandler {
	return &BatchHandler{service: svc}
}

// Submit godoc
// @Summary Generate timetables for several courses in the background
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.BatchRequest true "Courses"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/batch [post]
func (h *BatchHandler) Submit(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid batch payload"))
		return
	}
	status, err := h.service.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, status.ID)
	c.Header("Location", c.FullPath()+"/"+status.ID)
	response.JSON(c, http.StatusAccepted, status, nil)
}

// Status godoc
// @Summary Batch progress
// @Tags Timetables
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/batch/{id} [get]
func (h *BatchHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil, map[string]interface{}{"done": status.Done()})
}
