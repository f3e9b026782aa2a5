package repository

import (
	"context"

	"habitflow/internal/availability"
	"habitflow/internal/model"
)

// Reader is the read side consumed by the planner, event and reminder services.
type Reader interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	ActiveHabits(ctx context.Context, userID int64) ([]model.Habit, error)
	HabitByID(ctx context.Context, userID, habitID int64) (*model.Habit, error)
	// HabitByTitle matches case-insensitively and returns nil, nil when absent.
	HabitByTitle(ctx context.Context, userID int64, title string) (*model.Habit, error)
	Sources(ctx context.Context, userID int64, rng availability.DayRange) (availability.Sources, error)
	SourcesOn(ctx context.Context, day string) (map[int64]availability.Sources, error)
	CompletionLog(ctx context.Context, userID int64, habitIDs []int64) ([]model.CompletionLogEntry, error)
}

// Tx is the write side. Every method runs inside the enclosing transaction.
type Tx interface {
	Sources(ctx context.Context, userID int64, rng availability.DayRange) (availability.Sources, error)
	InsertHabit(ctx context.Context, h *model.Habit) error
	InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error
	InsertBusyEntry(ctx context.Context, e *model.BusyEntry) error
	DeleteEntry(ctx context.Context, userID int64, kind availability.Kind, entryID int64) (bool, error)
	InsertCompletion(ctx context.Context, c *model.CompletionLogEntry) error
	// DeleteCompletion removes one matching row and reports whether one existed.
	DeleteCompletion(ctx context.Context, userID, habitID int64, date string, outcome model.Outcome) (bool, error)
	// ClaimReminder records the dispatch marker and reports false when it already existed.
	ClaimReminder(ctx context.Context, kind availability.Kind, entryID int64, day string) (bool, error)
	Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

// Transactor runs fn in one serializable transaction. fn's error rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Users is consumed by the auth service.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}
