package repotest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/internal/repository"
)

// ErrDuplicate is what Postgres reports for a unique violation.
var ErrDuplicate error = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// memTx runs with MemStore.mu held.
type memTx struct {
	m *MemStore
}

func (t *memTx) Sources(ctx context.Context, userID int64, rng availability.DayRange) (availability.Sources, error) {
	if t.m.ReadErr != nil {
		return availability.Sources{}, t.m.ReadErr
	}
	return t.m.st.sources(userID, rng), nil
}

func (t *memTx) InsertHabit(ctx context.Context, h *model.Habit) error {
	if t.m.InsertErr != nil {
		return t.m.InsertErr
	}
	h.ID = t.m.id()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	t.m.st.habits = append(t.m.st.habits, *h)
	return nil
}

func (t *memTx) InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	if t.m.InsertErr != nil {
		return t.m.InsertErr
	}
	for _, x := range t.m.st.sessions {
		if x.UserID == e.UserID && x.Day == e.Day && x.StartTime == e.StartTime && x.HabitID == e.HabitID {
			return ErrDuplicate
		}
	}
	e.ID = t.m.id()
	e.CreatedAt = time.Now()
	t.m.st.sessions = append(t.m.st.sessions, *e)
	return nil
}

func (t *memTx) InsertBusyEntry(ctx context.Context, e *model.BusyEntry) error {
	if t.m.InsertErr != nil {
		return t.m.InsertErr
	}
	for _, x := range t.m.st.busy {
		if x.UserID == e.UserID && x.Day == e.Day && x.StartTime == e.StartTime && strings.EqualFold(x.Title, e.Title) {
			return ErrDuplicate
		}
	}
	e.ID = t.m.id()
	e.CreatedAt = time.Now()
	t.m.st.busy = append(t.m.st.busy, *e)
	return nil
}

func (t *memTx) DeleteEntry(ctx context.Context, userID int64, kind availability.Kind, entryID int64) (bool, error) {
	switch kind {
	case availability.KindHabit:
		for i, x := range t.m.st.sessions {
			if x.ID == entryID && x.UserID == userID {
				t.m.st.sessions = append(t.m.st.sessions[:i:i], t.m.st.sessions[i+1:]...)
				return true, nil
			}
		}
	case availability.KindCustom:
		for i, x := range t.m.st.busy {
			if x.ID == entryID && x.UserID == userID {
				t.m.st.busy = append(t.m.st.busy[:i:i], t.m.st.busy[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) InsertCompletion(ctx context.Context, c *model.CompletionLogEntry) error {
	if t.m.InsertErr != nil {
		return t.m.InsertErr
	}
	c.ID = t.m.id()
	c.CreatedAt = time.Now()
	t.m.st.completions = append(t.m.st.completions, *c)
	return nil
}

func (t *memTx) DeleteCompletion(ctx context.Context, userID, habitID int64, date string, outcome model.Outcome) (bool, error) {
	for i := len(t.m.st.completions) - 1; i >= 0; i-- {
		c := t.m.st.completions[i]
		if c.UserID == userID && c.HabitID == habitID && c.Date == date && c.Outcome == outcome {
			t.m.st.completions = append(t.m.st.completions[:i:i], t.m.st.completions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ClaimReminder(ctx context.Context, kind availability.Kind, entryID int64, day string) (bool, error) {
	k := reminderKey{kind: kind, entryID: entryID, day: day}
	if t.m.st.reminders[k] {
		return false, nil
	}
	t.m.st.reminders[k] = true
	return true, nil
}

func (t *memTx) Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	if t.m.EnqueueErr != nil {
		return t.m.EnqueueErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.m.st.outbox = append(t.m.st.outbox, Enqueued{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       raw,
	})
	return nil
}

var _ repository.Tx = (*memTx)(nil)
