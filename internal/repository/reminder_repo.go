package repository

import (
	"context"

	"go.uber.org/zap"

	"habitflow/internal/availability"
)

// ReminderRepository persists the last-dispatched marker per entry and day,
// so a reminder is sent once across restarts and instances.
type ReminderRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewReminderRepository(db DBTX, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{db: db, logger: logger}
}

// Claim inserts the marker and reports false when it was already there.
func (r *ReminderRepository) Claim(ctx context.Context, kind availability.Kind, entryID int64, day string) (bool, error) {
	query := `
        INSERT INTO reminder_dispatches (entry_kind, entry_id, day)
        VALUES ($1, $2, $3::date)
        ON CONFLICT DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query, string(kind), entryID, day)
	if err != nil {
		r.logger.Error("Failed to claim reminder",
			zap.String("kind", string(kind)),
			zap.Int64("entry_id", entryID),
			zap.Error(err),
		)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
