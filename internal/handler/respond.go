package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/pkg/logger"
)

// ContextUserID is the gin context key set by the auth middleware.
const ContextUserID = "user_id"

func currentUser(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// requireUser writes 401 and returns false when the request is anonymous.
func requireUser(c *gin.Context) (int64, bool) {
	id, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps the domain error taxonomy onto a response. Persistence
// failures are logged and answered generically.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := availability.HTTPStatus(err)

	var (
		validation *availability.ValidationError
		conflict   *availability.ConflictError
		notFound   *availability.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(status, gin.H{"error": validation.Error(), "field": validation.Field, "question": validation.Question})
	case errors.As(err, &conflict):
		body := gin.H{"error": conflict.Reason, "question": conflict.Question}
		if len(conflict.Suggestions) > 0 {
			body["suggestions"] = conflict.Suggestions
		}
		c.JSON(status, body)
	case errors.As(err, &notFound):
		c.JSON(status, gin.H{"error": notFound.Error()})
	case status == http.StatusBadRequest:
		c.JSON(status, gin.H{"error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please try again"})
	}
}
