package repository

import (
	"context"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
)

// BusyRepository stores ad hoc events.
type BusyRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewBusyRepository(db DBTX, logger *zap.Logger) *BusyRepository {
	return &BusyRepository{db: db, logger: logger}
}

const busyColumns = `id, user_id, title, to_char(day, 'YYYY-MM-DD'), start_time, end_time, repeat_rule, created_at`

func (r *BusyRepository) Insert(ctx context.Context, e *model.BusyEntry) error {
	query := `
        INSERT INTO busy_entries (user_id, title, day, start_time, end_time, repeat_rule)
        VALUES ($1, $2, $3::date, $4, $5, $6)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.Title,
		e.Day,
		e.StartTime,
		e.EndTime,
		e.RepeatRule,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert busy entry",
			zap.Int64("user_id", e.UserID),
			zap.String("title", e.Title),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Busy entry inserted",
		zap.Int64("id", e.ID),
		zap.Int64("user_id", e.UserID),
		zap.String("day", e.Day),
	)
	return nil
}

func (r *BusyRepository) ListByUser(ctx context.Context, userID int64, rng availability.DayRange) ([]model.BusyEntry, error) {
	query := `SELECT ` + busyColumns + `
        FROM busy_entries
        WHERE user_id = $1
          AND (NULLIF($2, '') IS NULL OR day >= NULLIF($2, '')::date)
          AND (NULLIF($3, '') IS NULL OR day <= NULLIF($3, '')::date)
        ORDER BY id ASC
    `
	rows, err := r.db.Query(ctx, query, userID, rng.From, rng.To)
	if err != nil {
		r.logger.Error("Failed to list busy entries", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	return scanBusyEntries(rows)
}

func (r *BusyRepository) ListByDay(ctx context.Context, day string) ([]model.BusyEntry, error) {
	query := `SELECT ` + busyColumns + `
        FROM busy_entries
        WHERE day = $1::date
        ORDER BY user_id ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBusyEntries(rows)
}

func (r *BusyRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM busy_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanBusyEntries(rows rowScanner) ([]model.BusyEntry, error) {
	entries := []model.BusyEntry{}
	for rows.Next() {
		var e model.BusyEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Title,
			&e.Day,
			&e.StartTime,
			&e.EndTime,
			&e.RepeatRule,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
