package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitflow/internal/service/habit"
)

type HabitHandler struct {
	habits *habit.Service
	logger *zap.Logger
}

func NewHabitHandler(habits *habit.Service, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, logger: logger}
}

// CreateHabit handles POST /api/v1/habits
func (h *HabitHandler) CreateHabit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Title             string `json:"title"`
		RecurrencePattern string `json:"recurrence_pattern"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	created, err := h.habits.Create(c.Request.Context(), userID, req.Title, req.RecurrencePattern)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": created})
}

// ListHabits handles GET /api/v1/habits
func (h *HabitHandler) ListHabits(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	habits, err := h.habits.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

type completionRequest struct {
	Date    string `json:"date" form:"date"`
	Outcome string `json:"outcome" form:"outcome"`
}

// LogCompletion handles POST /api/v1/habits/:id/completions
func (h *HabitHandler) LogCompletion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	entry, err := h.habits.LogCompletion(c.Request.Context(), userID, habitID, req.Date, req.Outcome)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"completion": entry})
}

// RemoveCompletion handles DELETE /api/v1/habits/:id/completions?date=&outcome=
func (h *HabitHandler) RemoveCompletion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req completionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.habits.RemoveCompletion(c.Request.Context(), userID, habitID, req.Date, req.Outcome); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/v1/habits/:id/stats
func (h *HabitHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.habits.Stats(c.Request.Context(), userID, habitID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
