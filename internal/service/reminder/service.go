package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/repository"
	"habitflow/pkg/metrics"
	"habitflow/pkg/mq"
	"habitflow/pkg/util"
)

// DueEvent is the reminder.due payload.
type DueEvent struct {
	OwnerID   int64             `json:"owner_id"`
	Kind      availability.Kind `json:"kind"`
	EntryID   int64             `json:"entry_id"`
	Title     string            `json:"title"`
	Day       string            `json:"day"`
	StartTime string            `json:"start_time"`
}

// Service emits one reminder per entry and day for entries starting within
// the lead window. The Redis deduper only short-circuits; the persisted
// marker claimed in the same transaction as the outbox event is what makes
// dispatch exactly-once across restarts and instances.
type Service struct {
	reader   repository.Reader
	tx       repository.Transactor
	dedup    *util.Deduper
	settings availability.Settings
	lead     int
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(reader repository.Reader, tx repository.Transactor, dedup *util.Deduper, settings availability.Settings, leadMinutes int, logger *zap.Logger) *Service {
	return &Service{
		reader:   reader,
		tx:       tx,
		dedup:    dedup,
		settings: settings,
		lead:     leadMinutes,
		logger:   logger,
		now:      time.Now,
	}
}

// Tick dispatches the reminders due now and returns how many were sent.
// An entry is due when it starts in [now, now+lead): one starting exactly
// at now+lead waits for the next tick.
func (s *Service) Tick(ctx context.Context) (int, error) {
	now := s.now()
	today := s.settings.Today(now)
	from := s.settings.MinuteOfDay(now)
	until := from + s.lead

	byOwner, err := s.reader.SourcesOn(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("load today's entries: %w", err)
	}

	sent := 0
	for owner, src := range byOwner {
		timeline, _ := availability.Aggregate(src, availability.SingleDay(today), s.settings)
		for _, e := range timeline.On(today) {
			if !startsWithin(e, from, until) {
				continue
			}
			if s.dispatch(ctx, owner, e) {
				sent++
			}
		}
	}
	return sent, nil
}

func startsWithin(s availability.Span, from, until int) bool {
	return s.StartMinute() >= from && s.StartMinute() < until
}

func (s *Service) dispatch(ctx context.Context, owner int64, e availability.Entry) bool {
	key := fmt.Sprintf("reminder:%s:%d:%s", e.Kind(), e.ID, e.Day())
	if !s.dedup.AcquireOnce(ctx, key) {
		metrics.IncrementReminder("duplicate")
		return false
	}

	var claimed bool
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.ClaimReminder(ctx, e.Kind(), e.ID, e.Day())
		if err != nil || !ok {
			return err
		}
		claimed = true
		return tx.Enqueue(ctx, string(e.Kind()), e.ID, mq.RoutingReminderDue, DueEvent{
			OwnerID:   owner,
			Kind:      e.Kind(),
			EntryID:   e.ID,
			Title:     e.DisplayTitle(),
			Day:       e.Day(),
			StartTime: availability.FormatMinute(e.StartMinute()),
		})
	})
	if err != nil {
		claimed = false
		s.dedup.Release(ctx, key)
		metrics.IncrementReminder("failed")
		s.logger.Error("Failed to dispatch reminder",
			zap.Int64("user_id", owner),
			zap.Int64("entry_id", e.ID),
			zap.Error(err),
		)
		return false
	}
	if !claimed {
		metrics.IncrementReminder("duplicate")
		return false
	}

	metrics.IncrementReminder("dispatched")
	s.logger.Info("Reminder dispatched",
		zap.Int64("user_id", owner),
		zap.String("kind", string(e.Kind())),
		zap.Int64("entry_id", e.ID),
		zap.String("start_time", availability.FormatMinute(e.Start)),
	)
	return true
}
