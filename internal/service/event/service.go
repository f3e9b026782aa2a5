package event

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
	"habitflow/pkg/metrics"
	"habitflow/pkg/mq"
	"habitflow/pkg/util"
)

// HabitFinder is the read side the protocol needs.
type HabitFinder interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	HabitByTitle(ctx context.Context, userID int64, title string) (*model.Habit, error)
}

// Service runs the event creation protocol.
type Service struct {
	habits   HabitFinder
	tx       repository.Transactor
	settings availability.Settings
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(habits HabitFinder, tx repository.Transactor, settings availability.Settings, logger *zap.Logger) *Service {
	return &Service{
		habits:   habits,
		tx:       tx,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// candidate is a request that passed presence and format checks.
type candidate struct {
	day      string
	interval availability.Interval
	habit    *model.Habit
}

// errStop rolls back the transaction when a CONFLICT was decided inside it.
var errStop = errors.New("stop")

// Create classifies req into one terminal outcome. The only error returned
// is a NotFoundError for an unknown owner.
func (s *Service) Create(ctx context.Context, req Request) (Outcome, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("user_id", req.OwnerID))

	exists, err := s.habits.UserExists(ctx, req.OwnerID)
	if err != nil {
		log.Error("Failed to check owner", zap.Error(err))
		return s.finish(failed()), nil
	}
	if !exists {
		return Outcome{}, &availability.NotFoundError{Resource: "user", ID: req.OwnerID}
	}

	c, out, ok := s.validate(req)
	if !ok {
		return s.finish(out), nil
	}

	c.habit, err = s.habits.HabitByTitle(ctx, req.OwnerID, strings.TrimSpace(req.Title))
	if err != nil {
		log.Error("Failed to match habit title", zap.Error(err))
		return s.finish(failed()), nil
	}

	var result Outcome
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		out, stop, err := s.commit(ctx, tx, req, c, log)
		if err != nil {
			return err
		}
		result = out
		if stop {
			return errStop
		}
		return nil
	})
	switch {
	case err == nil, errors.Is(err, errStop):
		return s.finish(result), nil
	case util.IsUniqueViolation(err), util.IsSerializationFailure(err):
		log.Info("Concurrent insert lost the race",
			zap.String("day", c.day),
			zap.String("class", util.ClassifyError(err)),
		)
		return s.finish(conflict(reasonDuplicate, questionDuplicate, nil)), nil
	default:
		log.Error("Failed to create event",
			zap.String("day", c.day),
			zap.String("class", util.ClassifyError(err)),
			zap.Error(err),
		)
		return s.finish(failed()), nil
	}
}

// validate runs the presence check then the format check.
func (s *Service) validate(req Request) (candidate, Outcome, bool) {
	fields := []struct {
		name  string
		value string
	}{
		{FieldTitle, req.Title},
		{FieldDay, req.Day},
		{FieldStartTime, req.StartTime},
		{FieldEndTime, req.EndTime},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return candidate{}, needsInfo(missing[0], questions[missing[0]], missing), false
	}

	day, err := availability.ResolveDay(req.Day, s.now(), s.settings.Location)
	if err != nil {
		return candidate{}, needsInfo(FieldDay, fmt.Sprintf("I couldn't read %q as a day. %s", req.Day, questionDay), []string{FieldDay}), false
	}
	start, err := availability.ParseTime(req.StartTime)
	if err != nil {
		return candidate{}, needsInfo(FieldStartTime, fmt.Sprintf("I couldn't read %q as a time. %s", req.StartTime, questionStartTime), []string{FieldStartTime}), false
	}
	end, err := availability.ParseTime(req.EndTime)
	if err != nil {
		return candidate{}, needsInfo(FieldEndTime, fmt.Sprintf("I couldn't read %q as a time. %s", req.EndTime, questionEndTime), []string{FieldEndTime}), false
	}
	if start >= end {
		return candidate{}, needsInfo(FieldEndTime, questionEndBeforeStart, []string{FieldEndTime}), false
	}

	return candidate{day: day, interval: availability.Interval{Start: start, End: end}}, Outcome{}, true
}

// commit runs the duplicate check, the overlap check and the insert inside tx.
// stop reports a CONFLICT decided before anything was written.
func (s *Service) commit(ctx context.Context, tx repository.Tx, req Request, c candidate, log *zap.Logger) (Outcome, bool, error) {
	rng := availability.SingleDay(c.day)
	src, err := tx.Sources(ctx, req.OwnerID, rng)
	if err != nil {
		return Outcome{}, false, err
	}
	timeline, skipped := availability.Aggregate(src, rng, s.settings)
	if skipped > 0 {
		log.Warn("Skipped unreadable schedule rows", zap.Int("count", skipped), zap.String("day", c.day))
	}
	entries := timeline.On(c.day)

	title := strings.TrimSpace(req.Title)
	if isDuplicate(entries, c, title) {
		return conflict(reasonDuplicate, questionDuplicate, nil), true, nil
	}

	if overlaps := availability.DetectOverlaps(c.interval, entries); len(overlaps) > 0 {
		first := overlaps[0]
		suggestions := availability.SuggestSlots(c.day, entries, s.settings, first.End, c.interval.Duration(), 2)
		reason := fmt.Sprintf("%s on %s overlaps with %q (%s).", c.interval, c.day, first.DisplayTitle(), first.Interval)
		return conflict(reason, suggestionQuestion(suggestions), suggestions), true, nil
	}

	created, err := s.insert(ctx, tx, req, c, title)
	if err != nil {
		return Outcome{}, false, err
	}
	return Outcome{Status: StatusCreated, Event: created}, false, nil
}

func (s *Service) insert(ctx context.Context, tx repository.Tx, req Request, c candidate, title string) (*Created, error) {
	start := availability.FormatMinute(c.interval.Start)
	end := availability.FormatMinute(c.interval.End)
	repeat := normalizeRepeat(req.Repeat)

	created := &Created{
		Day:       c.day,
		StartTime: start,
		EndTime:   end,
		Repeat:    repeat,
	}

	if c.habit != nil {
		e := &model.ScheduleEntry{
			UserID:     req.OwnerID,
			HabitID:    c.habit.ID,
			Day:        c.day,
			StartTime:  start,
			EndTime:    &end,
			RepeatRule: repeat,
			CustomDays: req.CustomDays,
			Notes:      req.Notes,
		}
		if err := tx.InsertScheduleEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("insert schedule entry: %w", err)
		}
		created.ID = e.ID
		created.Kind = availability.KindHabit
		created.HabitID = &c.habit.ID
		created.Title = c.habit.Title
	} else {
		e := &model.BusyEntry{
			UserID:     req.OwnerID,
			Title:      title,
			Day:        c.day,
			StartTime:  start,
			EndTime:    &end,
			RepeatRule: repeat,
		}
		if err := tx.InsertBusyEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("insert busy entry: %w", err)
		}
		created.ID = e.ID
		created.Kind = availability.KindCustom
		created.Title = title
	}

	payload := ScheduledEvent{OwnerID: req.OwnerID, Event: *created}
	if err := tx.Enqueue(ctx, string(created.Kind), created.ID, mq.RoutingScheduleCreated, payload); err != nil {
		return nil, fmt.Errorf("enqueue schedule.created: %w", err)
	}
	return created, nil
}

func (s *Service) finish(o Outcome) Outcome {
	metrics.IncrementEventOutcome(string(o.Status))
	return o
}

// ScheduledEvent is the schedule.created payload.
type ScheduledEvent struct {
	OwnerID int64   `json:"owner_id"`
	Event   Created `json:"event"`
}

// isDuplicate matches same day, start and end plus the same habit, or the
// same title for ad hoc entries.
func isDuplicate(entries []availability.Entry, c candidate, title string) bool {
	for _, e := range entries {
		if e.Start != c.interval.Start || e.End != c.interval.End {
			continue
		}
		switch ref := e.Ref.(type) {
		case availability.HabitRef:
			if c.habit != nil && ref.HabitID == c.habit.ID {
				return true
			}
		case availability.CustomRef:
			if c.habit == nil && strings.EqualFold(strings.TrimSpace(ref.Title), title) {
				return true
			}
		}
	}
	return false
}

func suggestionQuestion(slots []availability.Window) string {
	switch len(slots) {
	case 0:
		return "There's no free time left that day. " + questionPickAnother
	case 1:
		return fmt.Sprintf("Would %s work instead?", slots[0].Interval)
	default:
		return fmt.Sprintf("Would %s or %s work instead?", slots[0].Interval, slots[1].Interval)
	}
}

func normalizeRepeat(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	if r == "" {
		return "none"
	}
	return r
}
