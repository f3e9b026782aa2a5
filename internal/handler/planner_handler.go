package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitflow/internal/service/planner"
)

type PlannerHandler struct {
	planner *planner.Service
	logger  *zap.Logger
}

func NewPlannerHandler(planner *planner.Service, logger *zap.Logger) *PlannerHandler {
	return &PlannerHandler{planner: planner, logger: logger}
}

// Day handles GET /api/v1/day?day=&start=&end=
func (h *PlannerHandler) Day(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	report, err := h.planner.Day(c.Request.Context(), planner.DayQuery{
		OwnerID:        userID,
		Day:            c.DefaultQuery("day", "today"),
		CandidateStart: c.Query("start"),
		CandidateEnd:   c.Query("end"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Insights handles GET /api/v1/insights?horizon=
func (h *PlannerHandler) Insights(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	horizon := 0
	if raw := c.Query("horizon"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid horizon"})
			return
		}
		horizon = n
	}

	report, err := h.planner.Insights(c.Request.Context(), userID, horizon)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
