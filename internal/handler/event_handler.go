package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitflow/internal/service/event"
)

type EventHandler struct {
	eventService *event.Service
	logger       *zap.Logger
}

func NewEventHandler(eventService *event.Service, logger *zap.Logger) *EventHandler {
	return &EventHandler{eventService: eventService, logger: logger}
}

// CreateEvent handles POST /api/v1/events. Every protocol outcome is
// returned as the body; the status code follows the outcome.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req event.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.OwnerID = userID

	out, err := h.eventService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(out.HTTPStatus(), out)
}
