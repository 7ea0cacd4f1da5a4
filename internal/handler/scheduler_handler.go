package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/response"
)

// SchedulerHandler exposes the fixed scheduling rules.
type SchedulerHandler struct{}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler() *SchedulerHandler {
	return &SchedulerHandler{}
}

// Requirements godoc
// @Summary Weekly sessions per subject priority
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduler/requirements [get]
func (h *SchedulerHandler) Requirements(c *gin.Context) {
	priorities := make([]int, 0, len(scheduler.PeriodRequirements))
	for p := range scheduler.PeriodRequirements {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	items := make([]dto.RequirementView, 0, len(priorities))
	for _, p := range priorities {
		req := scheduler.PeriodRequirements[p]
		items = append(items, dto.RequirementView{Priority: p, TheorySessions: req.Theory, LabSessions: req.Lab})
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{
		"days":       scheduler.Days[:],
		"slotLabels": scheduler.SlotLabels[:],
	})
}
