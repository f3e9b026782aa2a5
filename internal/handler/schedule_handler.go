package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/service/schedule"
)

type ScheduleHandler struct {
	schedule *schedule.Service
	logger   *zap.Logger
}

func NewScheduleHandler(schedule *schedule.Service, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, logger: logger}
}

// ListSchedule handles GET /api/v1/schedule?from=&to=
func (h *ScheduleHandler) ListSchedule(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	days, err := h.schedule.List(c.Request.Context(), userID, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// DeleteEntry handles DELETE /api/v1/schedule/:kind/:id
func (h *ScheduleHandler) DeleteEntry(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}
	kind := availability.Kind(c.Param("kind"))

	if err := h.schedule.Delete(c.Request.Context(), userID, kind, entryID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
