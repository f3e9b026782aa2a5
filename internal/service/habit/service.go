package habit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/internal/repository"
	"habitflow/pkg/logger"
	"habitflow/pkg/mq"
)

// Service owns habits and their completion log.
type Service struct {
	reader   repository.Reader
	tx       repository.Transactor
	settings availability.Settings
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(reader repository.Reader, tx repository.Transactor, settings availability.Settings, logger *zap.Logger) *Service {
	return &Service{
		reader:   reader,
		tx:       tx,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// CompletionEvent is the completion.logged payload. Action is "logged" or
// "removed".
type CompletionEvent struct {
	OwnerID int64         `json:"owner_id"`
	HabitID int64         `json:"habit_id"`
	Date    string        `json:"date"`
	Outcome model.Outcome `json:"outcome"`
	Action  string        `json:"action"`
}

// HabitEvent is the habit.created payload.
type HabitEvent struct {
	OwnerID int64  `json:"owner_id"`
	HabitID int64  `json:"habit_id"`
	Title   string `json:"title"`
}

// HabitStats is one habit with its streak statistics.
type HabitStats struct {
	Habit model.Habit        `json:"habit"`
	Stats availability.Stats `json:"stats"`
}

func (s *Service) Create(ctx context.Context, ownerID int64, title, recurrence string) (*model.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &availability.ValidationError{Field: "title", Question: "What should the habit be called?"}
	}

	existing, err := s.reader.HabitByTitle(ctx, ownerID, title)
	if err != nil {
		return nil, &availability.PersistenceError{Op: "match habit title", Err: err}
	}
	if existing != nil {
		return nil, &availability.ConflictError{
			Reason:   fmt.Sprintf("You already track %q.", existing.Title),
			Question: "Would you like to schedule a session for it instead?",
		}
	}

	h := &model.Habit{
		UserID:            ownerID,
		Title:             title,
		RecurrencePattern: strings.TrimSpace(recurrence),
		IsActive:          true,
	}
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertHabit(ctx, h); err != nil {
			return err
		}
		return tx.Enqueue(ctx, "habit", h.ID, mq.RoutingHabitCreated, HabitEvent{OwnerID: ownerID, HabitID: h.ID, Title: h.Title})
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to create habit", zap.Int64("user_id", ownerID), zap.Error(err))
		return nil, &availability.PersistenceError{Op: "create habit", Err: err}
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, ownerID int64) ([]model.Habit, error) {
	habits, err := s.reader.ActiveHabits(ctx, ownerID)
	if err != nil {
		return nil, &availability.PersistenceError{Op: "list habits", Err: err}
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	return habits, nil
}

func (s *Service) habit(ctx context.Context, ownerID, habitID int64) (*model.Habit, error) {
	h, err := s.reader.HabitByID(ctx, ownerID, habitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &availability.NotFoundError{Resource: "habit", ID: habitID}
	}
	if err != nil {
		return nil, &availability.PersistenceError{Op: "load habit", Err: err}
	}
	return h, nil
}

// resolveDate defaults to today and rejects days after today.
func (s *Service) resolveDate(token string) (string, error) {
	today := s.settings.Today(s.now())
	if strings.TrimSpace(token) == "" {
		return today, nil
	}
	date, err := availability.ResolveDay(token, s.now(), s.settings.Location)
	if err != nil {
		return "", &availability.ValidationError{Field: "date", Question: "Which day was it? Use YYYY-MM-DD or today.", Err: err}
	}
	if date > today {
		return "", &availability.ValidationError{Field: "date", Question: "Completions can only be logged for today or earlier."}
	}
	return date, nil
}

func parseOutcome(raw string) (model.Outcome, error) {
	o := model.Outcome(strings.ToLower(strings.TrimSpace(raw)))
	if !o.Valid() {
		return "", &availability.ValidationError{Field: "outcome", Question: "Was it done or missed?"}
	}
	return o, nil
}

// LogCompletion appends one done or missed entry.
func (s *Service) LogCompletion(ctx context.Context, ownerID, habitID int64, dateToken, outcome string) (*model.CompletionLogEntry, error) {
	o, err := parseOutcome(outcome)
	if err != nil {
		return nil, err
	}
	date, err := s.resolveDate(dateToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.habit(ctx, ownerID, habitID); err != nil {
		return nil, err
	}

	entry := &model.CompletionLogEntry{UserID: ownerID, HabitID: habitID, Date: date, Outcome: o}
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertCompletion(ctx, entry); err != nil {
			return err
		}
		return tx.Enqueue(ctx, "habit", habitID, mq.RoutingCompletionLogged, CompletionEvent{
			OwnerID: ownerID, HabitID: habitID, Date: date, Outcome: o, Action: "logged",
		})
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to log completion", zap.Int64("habit_id", habitID), zap.Error(err))
		return nil, &availability.PersistenceError{Op: "log completion", Err: err}
	}
	return entry, nil
}

// RemoveCompletion deletes one matching entry, lowering that day's count by one.
func (s *Service) RemoveCompletion(ctx context.Context, ownerID, habitID int64, dateToken, outcome string) error {
	o, err := parseOutcome(outcome)
	if err != nil {
		return err
	}
	date, err := s.resolveDate(dateToken)
	if err != nil {
		return err
	}
	if _, err := s.habit(ctx, ownerID, habitID); err != nil {
		return err
	}

	var removed bool
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.DeleteCompletion(ctx, ownerID, habitID, date, o)
		if err != nil || !ok {
			removed = ok
			return err
		}
		removed = true
		return tx.Enqueue(ctx, "habit", habitID, mq.RoutingCompletionLogged, CompletionEvent{
			OwnerID: ownerID, HabitID: habitID, Date: date, Outcome: o, Action: "removed",
		})
	})
	if err != nil {
		return &availability.PersistenceError{Op: "remove completion", Err: err}
	}
	if !removed {
		return &availability.NotFoundError{Resource: "completion for habit", ID: habitID}
	}
	return nil
}

// Stats computes streaks and success rates for one habit as of today.
func (s *Service) Stats(ctx context.Context, ownerID, habitID int64) (*HabitStats, error) {
	h, err := s.habit(ctx, ownerID, habitID)
	if err != nil {
		return nil, err
	}
	log, err := s.reader.CompletionLog(ctx, ownerID, []int64{habitID})
	if err != nil {
		return nil, &availability.PersistenceError{Op: "load completion log", Err: err}
	}
	return &HabitStats{
		Habit: *h,
		Stats: availability.ComputeStats(log, s.settings.Today(s.now())),
	}, nil
}
