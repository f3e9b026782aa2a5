package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"habitflow/pkg/logger"
)

// Invalidator drops cached insights for one owner.
type Invalidator interface {
	Invalidate(ctx context.Context, ownerID int64) error
}

type InsightsInvalidationHandler struct {
	invalidator Invalidator
	logger      *zap.Logger
}

func NewInsightsInvalidationHandler(invalidator Invalidator, logger *zap.Logger) *InsightsInvalidationHandler {
	return &InsightsInvalidationHandler{
		invalidator: invalidator,
		logger:      logger,
	}
}

// ownerPayload 所有领域事件都带 owner_id
type ownerPayload struct {
	OwnerID int64 `json:"owner_id"`
}

// Handle 失效该用户的 insights 缓存
func (h *InsightsInvalidationHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p ownerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal event payload", zap.Error(err))
		return err
	}
	if p.OwnerID <= 0 {
		log.Error("Invalid owner_id in event", zap.Int64("owner_id", p.OwnerID))
		return fmt.Errorf("invalid owner_id: %d", p.OwnerID)
	}

	if err := h.invalidator.Invalidate(ctx, p.OwnerID); err != nil {
		log.Error("Failed to invalidate insights cache",
			zap.Int64("owner_id", p.OwnerID),
			zap.Error(err),
		)
		return err
	}

	log.Debug("Insights cache invalidated", zap.Int64("owner_id", p.OwnerID))
	return nil
}
