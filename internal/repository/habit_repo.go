package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"habitflow/internal/model"
)

type HabitRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewHabitRepository(db DBTX, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

const habitColumns = `id, user_id, title, recurrence_pattern, is_active, created_at, updated_at`

func (r *HabitRepository) Insert(ctx context.Context, h *model.Habit) error {
	r.logger.Debug("Inserting habit",
		zap.Int64("user_id", h.UserID),
		zap.String("title", h.Title),
		zap.String("recurrence_pattern", h.RecurrencePattern),
	)

	query := `
        INSERT INTO habits (user_id, title, recurrence_pattern, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		h.UserID,
		h.Title,
		h.RecurrencePattern,
		h.IsActive,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert habit", zap.Error(err))
		return err
	}

	r.logger.Info("Habit inserted successfully",
		zap.Int64("id", h.ID),
		zap.Int64("user_id", h.UserID),
	)
	return nil
}

func (r *HabitRepository) ListActiveByUser(ctx context.Context, userID int64) ([]model.Habit, error) {
	r.logger.Debug("Listing active habits for user", zap.Int64("user_id", userID))

	query := `SELECT ` + habitColumns + `
        FROM habits
        WHERE user_id = $1 AND is_active = TRUE
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		var h model.Habit
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.Title,
			&h.RecurrencePattern,
			&h.IsActive,
			&h.CreatedAt,
			&h.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Listed habits",
		zap.Int64("user_id", userID),
		zap.Int("count", len(habits)),
	)
	return habits, nil
}

// TitlesByUser maps habit id to title, inactive habits included, for title
// resolution of schedule rows.
func (r *HabitRepository) TitlesByUser(ctx context.Context, userID int64) (map[int64]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title FROM habits WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *HabitRepository) GetByID(ctx context.Context, userID, habitID int64) (*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`
	var h model.Habit
	err := r.db.QueryRow(ctx, query, habitID, userID).Scan(
		&h.ID, &h.UserID, &h.Title, &h.RecurrencePattern, &h.IsActive, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

// FindByTitle is a case-insensitive exact match among active habits.
// It returns nil, nil when nothing matches.
func (r *HabitRepository) FindByTitle(ctx context.Context, userID int64, title string) (*model.Habit, error) {
	query := `SELECT ` + habitColumns + `
        FROM habits
        WHERE user_id = $1 AND is_active = TRUE AND lower(title) = lower($2)
        ORDER BY id ASC
        LIMIT 1
    `
	var h model.Habit
	err := r.db.QueryRow(ctx, query, userID, title).Scan(
		&h.ID, &h.UserID, &h.Title, &h.RecurrencePattern, &h.IsActive, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to look up habit by title", zap.Error(err))
		return nil, err
	}
	return &h, nil
}
