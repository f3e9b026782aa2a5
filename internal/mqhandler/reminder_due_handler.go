package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"habitflow/internal/service/reminder"
	"habitflow/pkg/logger"
	"habitflow/pkg/util"
)

// ReminderDueHandler is the delivery sink for reminder.due. Delivery itself
// is a structured log line; the deduper drops broker redeliveries.
type ReminderDueHandler struct {
	dedup  *util.Deduper
	logger *zap.Logger
}

func NewReminderDueHandler(dedup *util.Deduper, logger *zap.Logger) *ReminderDueHandler {
	return &ReminderDueHandler{
		dedup:  dedup,
		logger: logger,
	}
}

func deliveryKey(p reminder.DueEvent) string {
	return fmt.Sprintf("reminder:delivered:%s:%d:%s", p.Kind, p.EntryID, p.Day)
}

func (h *ReminderDueHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p reminder.DueEvent
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal reminder.due payload", zap.Error(err))
		return err
	}
	if p.OwnerID <= 0 || p.EntryID <= 0 {
		return fmt.Errorf("invalid reminder payload: owner %d entry %d", p.OwnerID, p.EntryID)
	}

	if !h.dedup.AcquireOnce(ctx, deliveryKey(p)) {
		log.Info("Duplicate reminder delivery dropped",
			zap.Int64("owner_id", p.OwnerID),
			zap.Int64("entry_id", p.EntryID),
		)
		return nil
	}

	log.Info("Reminder due",
		zap.Int64("owner_id", p.OwnerID),
		zap.String("kind", string(p.Kind)),
		zap.Int64("entry_id", p.EntryID),
		zap.String("title", p.Title),
		zap.String("day", p.Day),
		zap.String("start_time", p.StartTime),
	)
	return nil
}
