package repository

import (
	"context"

	"go.uber.org/zap"

	"habitflow/internal/model"
)

// CompletionRepository is the append-only completion log.
type CompletionRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewCompletionRepository(db DBTX, logger *zap.Logger) *CompletionRepository {
	return &CompletionRepository{db: db, logger: logger}
}

func (r *CompletionRepository) Insert(ctx context.Context, c *model.CompletionLogEntry) error {
	query := `
        INSERT INTO completion_log (user_id, habit_id, date, outcome)
        VALUES ($1, $2, $3::date, $4)
        RETURNING id, created_at
    `
	if err := r.db.QueryRow(ctx, query, c.UserID, c.HabitID, c.Date, string(c.Outcome)).Scan(&c.ID, &c.CreatedAt); err != nil {
		r.logger.Error("Failed to append completion", zap.Int64("habit_id", c.HabitID), zap.Error(err))
		return err
	}
	return nil
}

// DeleteOne removes the newest row matching the date and outcome.
func (r *CompletionRepository) DeleteOne(ctx context.Context, userID, habitID int64, date string, outcome model.Outcome) (bool, error) {
	query := `
        DELETE FROM completion_log
        WHERE id = (
            SELECT id FROM completion_log
            WHERE user_id = $1 AND habit_id = $2 AND date = $3::date AND outcome = $4
            ORDER BY id DESC
            LIMIT 1
        )
    `
	tag, err := r.db.Exec(ctx, query, userID, habitID, date, string(outcome))
	if err != nil {
		r.logger.Error("Failed to remove completion", zap.Int64("habit_id", habitID), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByHabits returns the owner's log for the given habits, or all habits when empty.
func (r *CompletionRepository) ListByHabits(ctx context.Context, userID int64, habitIDs []int64) ([]model.CompletionLogEntry, error) {
	query := `
        SELECT id, user_id, habit_id, to_char(date, 'YYYY-MM-DD'), outcome, created_at
        FROM completion_log
        WHERE user_id = $1 AND (cardinality($2::bigint[]) = 0 OR habit_id = ANY($2::bigint[]))
        ORDER BY date ASC, id ASC
    `
	if habitIDs == nil {
		habitIDs = []int64{}
	}
	rows, err := r.db.Query(ctx, query, userID, habitIDs)
	if err != nil {
		r.logger.Error("Failed to list completions", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	entries := []model.CompletionLogEntry{}
	for rows.Next() {
		var (
			c       model.CompletionLogEntry
			outcome string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.HabitID, &c.Date, &outcome, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Outcome = model.Outcome(outcome)
		entries = append(entries, c)
	}
	return entries, rows.Err()
}
