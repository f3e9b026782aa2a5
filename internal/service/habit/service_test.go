package habit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/internal/repository/repotest"
)

func newTestService(t *testing.T) (*Service, *repotest.MemStore, int64) {
	t.Helper()
	store := repotest.New()
	owner := store.AddUser("ana@example.com")
	svc := NewService(store, store, availability.DefaultSettings(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC) }
	return svc, store, owner
}

func TestCreate(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, owner, "  Reading ", "daily")
	require.NoError(t, err)
	assert.Equal(t, "Reading", h.Title)
	assert.True(t, h.IsActive)

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, "habit.created", events[0].RoutingKey)

	_, err = svc.Create(ctx, owner, "reading", "")
	var conflict *availability.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Reason, "Reading")

	_, err = svc.Create(ctx, owner, " ", "")
	var verr *availability.ValidationError
	require.ErrorAs(t, err, &verr)

	habits, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

func TestCreate_PersistenceFailure(t *testing.T) {
	svc, store, owner := newTestService(t)
	store.InsertErr = errors.New("boom")

	_, err := svc.Create(context.Background(), owner, "Reading", "")
	var perr *availability.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, store.Outbox())
}

func TestLogAndRemoveCompletion(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()
	habit := store.AddHabit(owner, "Run")

	_, err := svc.LogCompletion(ctx, owner, habit, "2026-10-19", "done")
	require.NoError(t, err)
	_, err = svc.LogCompletion(ctx, owner, habit, "2026-10-20", "DONE")
	require.NoError(t, err)
	entry, err := svc.LogCompletion(ctx, owner, habit, "", "done")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-21", entry.Date)
	_, err = svc.LogCompletion(ctx, owner, habit, "today", "missed")
	require.NoError(t, err)
	_, err = svc.LogCompletion(ctx, owner, habit, "today", "missed")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, owner, habit)
	require.NoError(t, err)
	// today: one done, two missed, so not successful
	assert.Equal(t, 0, stats.Stats.CurrentStreak)
	assert.Equal(t, 2, stats.Stats.LongestStreak)
	require.NotNil(t, stats.Stats.SuccessRate)
	assert.Equal(t, 60, *stats.Stats.SuccessRate)

	require.NoError(t, svc.RemoveCompletion(ctx, owner, habit, "today", "missed"))
	require.NoError(t, svc.RemoveCompletion(ctx, owner, habit, "today", "missed"))

	stats, err = svc.Stats(ctx, owner, habit)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Stats.CurrentStreak)
	assert.Equal(t, 100, *stats.Stats.SuccessRate)

	err = svc.RemoveCompletion(ctx, owner, habit, "today", "missed")
	var nf *availability.NotFoundError
	require.ErrorAs(t, err, &nf)

	events := store.Outbox()
	require.Len(t, events, 7)
	var last CompletionEvent
	require.NoError(t, json.Unmarshal(events[6].Payload, &last))
	assert.Equal(t, "removed", last.Action)
	assert.Equal(t, model.OutcomeMissed, last.Outcome)
}

func TestLogCompletion_Validation(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()
	habit := store.AddHabit(owner, "Run")

	tests := []struct {
		name      string
		habitID   int64
		date      string
		outcome   string
		wantField string
	}{
		{"bad outcome", habit, "", "skipped", "outcome"},
		{"bad date", habit, "yesterday-ish", "done", "date"},
		{"future date", habit, "tomorrow", "done", "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LogCompletion(ctx, owner, tt.habitID, tt.date, tt.outcome)
			var verr *availability.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}

	_, err := svc.LogCompletion(ctx, owner, 9999, "", "done")
	var nf *availability.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "habit", nf.Resource)

	other := store.AddUser("bob@example.com")
	_, err = svc.Stats(ctx, other, habit)
	require.ErrorAs(t, err, &nf)
}
