package event

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/repository/repotest"
)

const day = "2026-10-19"

func newTestService(t *testing.T) (*Service, *repotest.MemStore, int64) {
	t.Helper()
	store := repotest.New()
	owner := store.AddUser("ana@example.com")
	svc := NewService(store, store, availability.DefaultSettings(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	return svc, store, owner
}

func TestCreate_NeedsInfoAsksFirstMissingField(t *testing.T) {
	svc, store, owner := newTestService(t)

	tests := []struct {
		name        string
		req         Request
		wantField   string
		wantMissing []string
	}{
		{
			name:        "everything missing",
			req:         Request{},
			wantField:   FieldTitle,
			wantMissing: []string{FieldTitle, FieldDay, FieldStartTime, FieldEndTime},
		},
		{
			name:        "blank title counts as missing",
			req:         Request{Title: "  ", Day: day, StartTime: "09:00", EndTime: "10:00"},
			wantField:   FieldTitle,
			wantMissing: []string{FieldTitle},
		},
		{
			name:        "day and end missing",
			req:         Request{Title: "Gym", StartTime: "09:00"},
			wantField:   FieldDay,
			wantMissing: []string{FieldDay, FieldEndTime},
		},
		{
			name:        "malformed end is not checked while start is missing",
			req:         Request{Title: "Gym", Day: day, EndTime: "nonsense"},
			wantField:   FieldStartTime,
			wantMissing: []string{FieldStartTime},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.OwnerID = owner
			out, err := svc.Create(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, StatusNeedsInfo, out.Status)
			assert.Equal(t, tt.wantField, out.Field)
			assert.Equal(t, questions[tt.wantField], out.Question)
			assert.Equal(t, tt.wantMissing, out.Missing)
			assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
		})
	}
	assert.Empty(t, store.Busy())
}

func TestCreate_NeedsInfoOnMalformedFields(t *testing.T) {
	svc, _, owner := newTestService(t)

	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{"bad day", Request{Title: "Gym", Day: "2026-02-30", StartTime: "09:00", EndTime: "10:00"}, FieldDay},
		{"bad start", Request{Title: "Gym", Day: day, StartTime: "25:00", EndTime: "10:00"}, FieldStartTime},
		{"bad end", Request{Title: "Gym", Day: day, StartTime: "09:00", EndTime: "10:60"}, FieldEndTime},
		{"end equals start", Request{Title: "Gym", Day: day, StartTime: "09:00", EndTime: "09:00"}, FieldEndTime},
		{"end before start", Request{Title: "Gym", Day: day, StartTime: "11:00", EndTime: "10:00"}, FieldEndTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.OwnerID = owner
			out, err := svc.Create(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, StatusNeedsInfo, out.Status)
			assert.Equal(t, tt.wantField, out.Field)
			assert.NotEmpty(t, out.Question)
			assert.Equal(t, []string{tt.wantField}, out.Missing)
		})
	}

	out, err := svc.Create(context.Background(), Request{OwnerID: owner, Title: "Gym", Day: day, StartTime: "11:00", EndTime: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, questionEndBeforeStart, out.Question)
	assert.Equal(t, []string{FieldEndTime}, out.Missing)
}

func TestCreate_OverlapIsConflictWithSuggestions(t *testing.T) {
	svc, store, owner := newTestService(t)
	store.AddBusy(owner, "Standup", day, "09:00", "10:00")

	out, err := svc.Create(context.Background(), Request{
		OwnerID: owner, Title: "Gym", Day: day, StartTime: "09:30", EndTime: "10:15",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConflict, out.Status)
	assert.Contains(t, out.Reason, "Standup")
	assert.Contains(t, out.Reason, "09:30-10:15")
	require.Len(t, out.Suggestions, 2)
	assert.Equal(t, availability.Interval{Start: 600, End: 645}, out.Suggestions[0].Interval)
	assert.Equal(t, availability.Interval{Start: 645, End: 690}, out.Suggestions[1].Interval)
	assert.Equal(t, "Would 10:00-10:45 or 10:45-11:30 work instead?", out.Question)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus())

	assert.Len(t, store.Busy(), 1)
	assert.Empty(t, store.Outbox())
}

func TestCreate_TouchingBoundaryIsCreated(t *testing.T) {
	svc, store, owner := newTestService(t)
	store.AddBusy(owner, "Standup", day, "09:00", "10:00")

	out, err := svc.Create(context.Background(), Request{
		OwnerID: owner, Title: "Gym", Day: day, StartTime: "10:00", EndTime: "10:30",
	})
	require.NoError(t, err)

	require.Equal(t, StatusCreated, out.Status)
	require.NotNil(t, out.Event)
	assert.Equal(t, availability.KindCustom, out.Event.Kind)
	assert.Equal(t, "Gym", out.Event.Title)
	assert.Equal(t, "10:00", out.Event.StartTime)
	assert.Equal(t, "10:30", out.Event.EndTime)
	assert.Equal(t, "none", out.Event.Repeat)
	assert.Nil(t, out.Event.HabitID)

	assert.Len(t, store.Busy(), 2)
	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, "schedule.created", events[0].RoutingKey)
	assert.Equal(t, out.Event.ID, events[0].AggregateID)
	assert.Equal(t, "custom", events[0].AggregateType)
	assert.JSONEq(t, `{"owner_id":`+itoa(owner)+`,"event":{"id":`+itoa(out.Event.ID)+
		`,"kind":"custom","title":"Gym","day":"2026-10-19","start_time":"10:00","end_time":"10:30","repeat":"none"}}`,
		string(events[0].Payload))
}

func TestCreate_TitleMatchingHabitCreatesSession(t *testing.T) {
	svc, store, owner := newTestService(t)
	habitID := store.AddHabit(owner, "Reading")

	out, err := svc.Create(context.Background(), Request{
		OwnerID: owner, Title: "reading", Day: "tomorrow", StartTime: "7:5", EndTime: "8:00", Repeat: "Daily",
	})
	require.NoError(t, err)

	require.Equal(t, StatusCreated, out.Status)
	assert.Equal(t, availability.KindHabit, out.Event.Kind)
	require.NotNil(t, out.Event.HabitID)
	assert.Equal(t, habitID, *out.Event.HabitID)
	assert.Equal(t, "Reading", out.Event.Title)
	assert.Equal(t, "2026-10-20", out.Event.Day)
	assert.Equal(t, "07:05", out.Event.StartTime)
	assert.Equal(t, "daily", out.Event.Repeat)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "07:05", sessions[0].StartTime)
	assert.Empty(t, store.Busy())

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, "habit", events[0].AggregateType)
}

func TestCreate_DuplicateIsAlreadyScheduled(t *testing.T) {
	svc, store, owner := newTestService(t)
	store.AddBusy(owner, "Dentist", day, "14:00", "15:00")

	out, err := svc.Create(context.Background(), Request{
		OwnerID: owner, Title: "dentist", Day: day, StartTime: "14:00", EndTime: "15:00",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConflict, out.Status)
	assert.Equal(t, reasonDuplicate, out.Reason)
	assert.Empty(t, out.Suggestions)
	assert.Len(t, store.Busy(), 1)
}

func TestCreate_DuplicateHabitSession(t *testing.T) {
	svc, store, owner := newTestService(t)
	habitID := store.AddHabit(owner, "Run")
	store.AddSession(owner, habitID, day, "06:30", "07:15")

	out, err := svc.Create(context.Background(), Request{
		OwnerID: owner, Title: "RUN", Day: day, StartTime: "06:30", EndTime: "07:15",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConflict, out.Status)
	assert.Equal(t, reasonDuplicate, out.Reason)
}

func TestCreate_StoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		insertErr  error
		txErr      error
		wantStatus Status
		wantReason string
	}{
		{"generic insert failure", errors.New("disk full"), nil, StatusFailed, reasonFailed},
		{"unique violation", repotest.ErrDuplicate, nil, StatusConflict, reasonDuplicate},
		{"serialization failure", nil, &pgconn.PgError{Code: "40001"}, StatusConflict, reasonDuplicate},
		{"begin failure", nil, errors.New("conn refused"), StatusFailed, reasonFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, owner := newTestService(t)
			store.InsertErr = tt.insertErr
			store.TxErr = tt.txErr

			out, err := svc.Create(context.Background(), Request{
				OwnerID: owner, Title: "Gym", Day: day, StartTime: "18:00", EndTime: "19:00",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Empty(t, store.Busy())
			assert.Empty(t, store.Outbox())
		})
	}
}

// The row insert succeeds and the outbox write fails: both roll back.
func TestCreate_EnqueueFailureRollsBackInsert(t *testing.T) {
	tests := []struct {
		name  string
		title string
	}{
		{"ad hoc entry", "Gym"},
		{"habit session", "Reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, owner := newTestService(t)
			store.AddHabit(owner, "Reading")
			store.EnqueueErr = errors.New("outbox insert failed")

			out, err := svc.Create(context.Background(), Request{
				OwnerID: owner, Title: tt.title, Day: day, StartTime: "18:00", EndTime: "19:00",
			})
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, reasonFailed, out.Reason)
			assert.Nil(t, out.Event)
			assert.Empty(t, store.Busy())
			assert.Empty(t, store.Sessions())
			assert.Empty(t, store.Outbox())

			store.EnqueueErr = nil
			out, err = svc.Create(context.Background(), Request{
				OwnerID: owner, Title: tt.title, Day: day, StartTime: "18:00", EndTime: "19:00",
			})
			require.NoError(t, err)
			assert.Equal(t, StatusCreated, out.Status)
			assert.Len(t, store.Outbox(), 1)
		})
	}
}

func TestCreate_UnknownOwner(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), Request{OwnerID: 999, Title: "Gym"})
	var nf *availability.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, http.StatusNotFound, availability.HTTPStatus(err))
}

func TestSuggestionQuestion(t *testing.T) {
	assert.Contains(t, suggestionQuestion(nil), questionPickAnother)
	one := []availability.Window{{Day: day, Interval: availability.Interval{Start: 600, End: 630}}}
	assert.Equal(t, "Would 10:00-10:30 work instead?", suggestionQuestion(one))
}

func itoa(n int64) string {
	return fmt.Sprint(n)
}
