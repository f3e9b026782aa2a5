package repository

import (
	"context"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
)

// ScheduleRepository stores habit-linked sessions.
type ScheduleRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewScheduleRepository(db DBTX, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `id, user_id, habit_id, to_char(day, 'YYYY-MM-DD'), start_time, end_time,
        repeat_rule, custom_days, notes, created_at`

func (r *ScheduleRepository) Insert(ctx context.Context, e *model.ScheduleEntry) error {
	if e.CustomDays == nil {
		e.CustomDays = []string{}
	}
	query := `
        INSERT INTO schedule_entries (user_id, habit_id, day, start_time, end_time, repeat_rule, custom_days, notes)
        VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.HabitID,
		e.Day,
		e.StartTime,
		e.EndTime,
		e.RepeatRule,
		e.CustomDays,
		e.Notes,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert schedule entry",
			zap.Int64("user_id", e.UserID),
			zap.Int64("habit_id", e.HabitID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Schedule entry inserted",
		zap.Int64("id", e.ID),
		zap.Int64("user_id", e.UserID),
		zap.String("day", e.Day),
	)
	return nil
}

// ListByUser returns the owner's sessions within rng, ordered by id.
func (r *ScheduleRepository) ListByUser(ctx context.Context, userID int64, rng availability.DayRange) ([]model.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM schedule_entries
        WHERE user_id = $1
          AND (NULLIF($2, '') IS NULL OR day >= NULLIF($2, '')::date)
          AND (NULLIF($3, '') IS NULL OR day <= NULLIF($3, '')::date)
        ORDER BY id ASC
    `
	rows, err := r.db.Query(ctx, query, userID, rng.From, rng.To)
	if err != nil {
		r.logger.Error("Failed to list schedule entries", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// ListByDay returns every owner's sessions on day.
func (r *ScheduleRepository) ListByDay(ctx context.Context, day string) ([]model.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM schedule_entries
        WHERE day = $1::date
        ORDER BY user_id ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

func (r *ScheduleRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanScheduleEntries(rows rowScanner) ([]model.ScheduleEntry, error) {
	entries := []model.ScheduleEntry{}
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.HabitID,
			&e.Day,
			&e.StartTime,
			&e.EndTime,
			&e.RepeatRule,
			&e.CustomDays,
			&e.Notes,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
