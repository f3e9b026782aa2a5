package schedule

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/repository"
	"habitflow/pkg/logger"
	"habitflow/pkg/mq"
)

// MaxRangeDays bounds one listing request.
const MaxRangeDays = 92

// Service lists and deletes an owner's schedule entries.
type Service struct {
	reader   repository.Reader
	tx       repository.Transactor
	settings availability.Settings
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(reader repository.Reader, tx repository.Transactor, settings availability.Settings, logger *zap.Logger) *Service {
	return &Service{reader: reader, tx: tx, settings: settings, logger: logger, now: time.Now}
}

type DaySchedule struct {
	Day     string               `json:"day"`
	Entries []availability.Entry `json:"entries"`
}

// DeletedEvent is the schedule.deleted payload.
type DeletedEvent struct {
	OwnerID int64             `json:"owner_id"`
	Kind    availability.Kind `json:"kind"`
	EntryID int64             `json:"entry_id"`
}

// List returns the aggregated entries between from and to inclusive. Both
// default to today; only days with entries are returned.
func (s *Service) List(ctx context.Context, ownerID int64, from, to string) ([]DaySchedule, error) {
	now := s.now()
	rng, err := s.resolveRange(from, to, now)
	if err != nil {
		return nil, err
	}

	src, err := s.reader.Sources(ctx, ownerID, rng)
	if err != nil {
		return nil, &availability.PersistenceError{Op: "load schedule", Err: err}
	}
	timeline, skipped := availability.Aggregate(src, rng, s.settings)
	if skipped > 0 {
		logger.WithTrace(ctx, s.logger).Warn("Skipped unreadable schedule rows",
			zap.Int64("user_id", ownerID),
			zap.Int("count", skipped),
		)
	}

	days := make([]DaySchedule, 0, len(timeline))
	for _, d := range timeline.Days() {
		days = append(days, DaySchedule{Day: d, Entries: timeline.On(d)})
	}
	return days, nil
}

func (s *Service) resolveRange(from, to string, now time.Time) (availability.DayRange, error) {
	resolve := func(field, token string) (string, error) {
		if strings.TrimSpace(token) == "" {
			token = "today"
		}
		d, err := availability.ResolveDay(token, now, s.settings.Location)
		if err != nil {
			return "", &availability.ValidationError{Field: field, Question: "Use YYYY-MM-DD, today or tomorrow.", Err: err}
		}
		return d, nil
	}

	f, err := resolve("from", from)
	if err != nil {
		return availability.DayRange{}, err
	}
	t, err := resolve("to", to)
	if err != nil {
		return availability.DayRange{}, err
	}
	if t < f {
		return availability.DayRange{}, &availability.ValidationError{Field: "to", Question: "The range must end on or after its start."}
	}
	limit, _ := availability.AddDays(f, MaxRangeDays-1)
	if t > limit {
		return availability.DayRange{}, &availability.ValidationError{Field: "to", Question: "Ask for at most 92 days at a time."}
	}
	return availability.DayRange{From: f, To: t}, nil
}

// Delete removes a habit session or ad hoc entry of the owner.
func (s *Service) Delete(ctx context.Context, ownerID int64, kind availability.Kind, entryID int64) error {
	if kind != availability.KindHabit && kind != availability.KindCustom {
		return &availability.ValidationError{Field: "kind", Question: "Is it a habit or a custom entry?"}
	}

	var deleted bool
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.DeleteEntry(ctx, ownerID, kind, entryID)
		if err != nil || !ok {
			return err
		}
		deleted = true
		return tx.Enqueue(ctx, string(kind), entryID, mq.RoutingScheduleDeleted, DeletedEvent{
			OwnerID: ownerID, Kind: kind, EntryID: entryID,
		})
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to delete entry", zap.Int64("entry_id", entryID), zap.Error(err))
		return &availability.PersistenceError{Op: "delete entry", Err: err}
	}
	if !deleted {
		return &availability.NotFoundError{Resource: string(kind) + " entry", ID: entryID}
	}
	return nil
}
