package planner

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/internal/repository/repotest"
)

const today = "2026-10-19"

func newTestPlanner(t *testing.T, at time.Time) (*Service, *repotest.MemStore, int64) {
	t.Helper()
	store := repotest.New()
	owner := store.AddUser("ana@example.com")
	svc := NewService(store, nil, availability.DefaultSettings(), 70, zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc, store, owner
}

func early() time.Time { return time.Date(2026, 10, 19, 5, 0, 0, 0, time.UTC) }

func ivs(windows []availability.Window) []string {
	out := make([]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.Interval.String())
	}
	return out
}

func TestDay_FreeWindowsAroundOneEntry(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())
	store.AddBusy(owner, "Standup", today, "09:00", "10:00")

	report, err := svc.Day(context.Background(), DayQuery{OwnerID: owner, Day: today})
	require.NoError(t, err)

	assert.Equal(t, today, report.Day)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, []string{"06:00-09:00", "10:00-22:00"}, ivs(report.FreeWindows))
	assert.Equal(t, 180, report.FreeWindows[0].Duration())
	assert.Equal(t, 720, report.FreeWindows[1].Duration())
	assert.Empty(t, report.Overlaps)
	assert.Nil(t, report.Candidate)
}

func TestDay_Candidate(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())
	store.AddBusy(owner, "Standup", today, "09:00", "10:00")

	tests := []struct {
		name         string
		start, end   string
		wantOverlaps int
		wantWindow   string
	}{
		{"crossing the end", "09:30", "10:15", 1, "09:30-10:15"},
		{"touching the end", "10:00", "10:30", 0, "10:00-10:30"},
		{"touching the start", "08:00", "09:00", 0, "08:00-09:00"},
		{"start only uses default session", "9:30", "", 1, "09:30-10:15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.Day(context.Background(), DayQuery{
				OwnerID: owner, Day: "today", CandidateStart: tt.start, CandidateEnd: tt.end,
			})
			require.NoError(t, err)
			require.NotNil(t, report.Candidate)
			assert.Equal(t, tt.wantWindow, report.Candidate.Interval.String())
			assert.Len(t, report.Overlaps, tt.wantOverlaps)
		})
	}
}

func TestDay_ExistingOverlapsWithoutCandidate(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())
	habit := store.AddHabit(owner, "Reading")
	store.AddSession(owner, habit, today, "08:00", "09:00")
	store.AddBusy(owner, "Call", today, "08:30", "09:15")
	store.AddBusy(owner, "Lunch", today, "12:00", "13:00")

	report, err := svc.Day(context.Background(), DayQuery{OwnerID: owner, Day: today})
	require.NoError(t, err)

	require.Len(t, report.Pairs, 1)
	assert.Equal(t, "Reading", report.Pairs[0].Earlier.Title)
	assert.Equal(t, "Call", report.Pairs[0].Later.Title)
	require.Len(t, report.Overlaps, 2)
	assert.Equal(t, "Reading", report.Overlaps[0].Title)
	assert.Equal(t, "Call", report.Overlaps[1].Title)
}

func TestDay_Errors(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())

	tests := []struct {
		name      string
		q         DayQuery
		wantField string
	}{
		{"missing day", DayQuery{OwnerID: owner}, "day"},
		{"bad day", DayQuery{OwnerID: owner, Day: "someday"}, "day"},
		{"end without start", DayQuery{OwnerID: owner, Day: today, CandidateEnd: "10:00"}, "start_time"},
		{"bad start", DayQuery{OwnerID: owner, Day: today, CandidateStart: "9am"}, "start_time"},
		{"bad end", DayQuery{OwnerID: owner, Day: today, CandidateStart: "09:00", CandidateEnd: "24:00"}, "end_time"},
		{"inverted", DayQuery{OwnerID: owner, Day: today, CandidateStart: "10:00", CandidateEnd: "09:00"}, "end_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Day(context.Background(), tt.q)
			var verr *availability.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.NotEmpty(t, verr.Question)
			assert.Equal(t, http.StatusBadRequest, availability.HTTPStatus(err))
		})
	}

	_, err := svc.Day(context.Background(), DayQuery{OwnerID: 404, Day: today})
	assert.Equal(t, http.StatusNotFound, availability.HTTPStatus(err))

	store.ReadErr = errors.New("connection reset")
	_, err = svc.Day(context.Background(), DayQuery{OwnerID: owner, Day: today})
	var perr *availability.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, availability.HTTPStatus(err))
}

func TestClampHorizon(t *testing.T) {
	assert.Equal(t, 7, ClampHorizon(0))
	assert.Equal(t, 7, ClampHorizon(-3))
	assert.Equal(t, 1, ClampHorizon(1))
	assert.Equal(t, 14, ClampHorizon(14))
	assert.Equal(t, 31, ClampHorizon(40))
}

// seedHabits creates habits with known success rates:
// Yoga 0, Reading 33, Piano 50, Swim 60, Run 100, Chess untracked.
func seedHabits(store *repotest.MemStore, owner int64) map[string]int64 {
	ids := map[string]int64{}
	for _, title := range []string{"Reading", "Run", "Piano", "Chess", "Yoga", "Swim"} {
		ids[title] = store.AddHabit(owner, title)
	}
	log := func(title, date string, o model.Outcome) {
		store.AddCompletion(owner, ids[title], date, o)
	}
	log("Reading", "2026-10-16", model.OutcomeDone)
	log("Reading", "2026-10-17", model.OutcomeMissed)
	log("Reading", "2026-10-18", model.OutcomeMissed)
	log("Run", "2026-10-18", model.OutcomeDone)
	log("Piano", "2026-10-17", model.OutcomeDone)
	log("Piano", "2026-10-18", model.OutcomeMissed)
	log("Yoga", "2026-10-18", model.OutcomeMissed)
	log("Swim", "2026-10-14", model.OutcomeDone)
	log("Swim", "2026-10-15", model.OutcomeDone)
	log("Swim", "2026-10-16", model.OutcomeDone)
	log("Swim", "2026-10-17", model.OutcomeMissed)
	log("Swim", "2026-10-18", model.OutcomeMissed)
	return ids
}

func TestInsights_Report(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())
	ids := seedHabits(store, owner)
	store.AddBusy(owner, "Gym", today, "06:00", "07:00")
	store.AddBusy(owner, "Call", "2026-10-20", "09:00", "10:00")
	store.AddBusy(owner, "Review", "2026-10-20", "09:30", "11:00")
	store.AddBusy(owner, "Outside horizon", "2026-10-26", "09:00", "10:00")
	store.AddBusy(owner, "Outside horizon 2", "2026-10-26", "09:30", "10:00")

	report, err := svc.Insights(context.Background(), owner, 0)
	require.NoError(t, err)

	assert.Equal(t, today, report.From)
	assert.Equal(t, "2026-10-25", report.To)
	assert.Equal(t, 7, report.HorizonDays)
	assert.Equal(t, 1, report.OverlapCount)

	require.Len(t, report.FreeWindows, 7)
	assert.Equal(t, today, report.FreeWindows[0].Day)
	assert.Equal(t, []string{"07:00-22:00"}, ivs(report.FreeWindows[0].FreeWindows))
	assert.Equal(t, []string{"06:00-09:00", "11:00-22:00"}, ivs(report.FreeWindows[1].FreeWindows))

	require.Len(t, report.Habits, 6)
	rates := map[string]*int{}
	for _, h := range report.Habits {
		rates[h.Title] = h.Stats.SuccessRate
	}
	assert.Nil(t, rates["Chess"])
	assert.Equal(t, 33, *rates["Reading"])
	assert.Equal(t, 100, *rates["Run"])

	require.Len(t, report.Suggestions, 3)
	assert.Equal(t, ids["Yoga"], report.Suggestions[0].HabitID)
	assert.Equal(t, ids["Reading"], report.Suggestions[1].HabitID)
	assert.Equal(t, ids["Piano"], report.Suggestions[2].HabitID)
	assert.Equal(t, []string{"07:00-07:30", "07:30-08:00", "08:00-08:30"}, []string{
		report.Suggestions[0].Window.Interval.String(),
		report.Suggestions[1].Window.Interval.String(),
		report.Suggestions[2].Window.Interval.String(),
	})
	assert.Contains(t, report.Suggestions[0].Message, "Yoga slipped to 0%")
	assert.Contains(t, report.Suggestions[2].Message, "Piano is at 50%")
}

func TestInsights_TodaySuggestionsStartFromNow(t *testing.T) {
	svc, store, owner := newTestPlanner(t, time.Date(2026, 10, 19, 12, 10, 0, 0, time.UTC))
	habit := store.AddHabit(owner, "Yoga")
	store.AddCompletion(owner, habit, "2026-10-18", model.OutcomeMissed)

	report, err := svc.Insights(context.Background(), owner, 1)
	require.NoError(t, err)

	require.Len(t, report.Suggestions, 1)
	assert.Equal(t, "12:10-12:40", report.Suggestions[0].Window.Interval.String())
}

func TestInsights_NoSuggestionsWhenDayIsFull(t *testing.T) {
	svc, store, owner := newTestPlanner(t, early())
	habit := store.AddHabit(owner, "Yoga")
	store.AddCompletion(owner, habit, "2026-10-18", model.OutcomeMissed)
	store.AddBusy(owner, "Work", today, "06:00", "22:00")

	report, err := svc.Insights(context.Background(), owner, 1)
	require.NoError(t, err)
	assert.Empty(t, report.Suggestions)
	assert.Empty(t, report.FreeWindows[0].FreeWindows)
}

func TestInsights_UnknownOwner(t *testing.T) {
	svc, _, _ := newTestPlanner(t, early())

	_, err := svc.Insights(context.Background(), 77, 7)
	var nf *availability.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "insights:12:7:2026-10-19", CacheKey(12, 7, today))
	assert.Equal(t, "insights:12:*", ownerPattern(12))

	var c *InsightsCache
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background(), 1))
}
