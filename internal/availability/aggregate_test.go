package availability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitflow/internal/model"
)

func strPtr(s string) *string { return &s }

func TestAggregate_MergesAndSorts(t *testing.T) {
	src := Sources{
		Sessions: []model.ScheduleEntry{
			{ID: 1, HabitID: 10, Day: "2026-10-19", StartTime: "09:00", EndTime: strPtr("10:00")},
			{ID: 2, HabitID: 11, Day: "2026-10-19", StartTime: "07:00"},
			{ID: 3, HabitID: 10, Day: "2026-10-20", StartTime: "07:00", EndTime: strPtr("07:30")},
		},
		Busy: []model.BusyEntry{
			{ID: 7, Title: "Dentist", Day: "2026-10-19", StartTime: "09:00", EndTime: strPtr("09:30")},
			{ID: 8, Title: "  ", Day: "2026-10-19", StartTime: "12:00", EndTime: strPtr("13:00")},
		},
		HabitTitles: map[int64]string{10: "Run", 11: "Read"},
	}

	timeline, skipped := Aggregate(src, DayRange{}, DefaultSettings())
	assert.Zero(t, skipped)
	assert.Equal(t, []string{"2026-10-19", "2026-10-20"}, timeline.Days())

	day := timeline.On("2026-10-19")
	require.Len(t, day, 4)

	assert.Equal(t, int64(2), day[0].ID)
	assert.Equal(t, "Read", day[0].Title)
	assert.Equal(t, KindHabit, day[0].Kind())
	assert.Equal(t, 420+DefaultSessionMinutes, day[0].End)
	assert.False(t, day[0].HasEnd)

	// 09:00-09:30 sorts before 09:00-10:00
	assert.Equal(t, int64(7), day[1].ID)
	assert.Equal(t, KindCustom, day[1].Kind())
	assert.Equal(t, "Dentist", day[1].DisplayTitle())
	assert.Equal(t, int64(1), day[2].ID)
	assert.Equal(t, "Run", day[2].Title)
	assert.Equal(t, int64(10), day[2].HabitID())

	assert.Equal(t, FallbackTitle, day[3].Title)
}

func TestAggregate_RangeAndSkips(t *testing.T) {
	src := Sources{
		Sessions: []model.ScheduleEntry{
			{ID: 1, HabitID: 10, Day: "2026-10-18", StartTime: "09:00"},
			{ID: 2, HabitID: 10, Day: "2026-10-19", StartTime: "25:00"},
			{ID: 3, HabitID: 10, Day: "not-a-day", StartTime: "09:00"},
			{ID: 4, HabitID: 99, Day: "2026-10-19", StartTime: "08:00", EndTime: strPtr("08:30")},
		},
		Busy: []model.BusyEntry{
			{ID: 5, Title: "Backwards", Day: "2026-10-19", StartTime: "10:00", EndTime: strPtr("09:00")},
			{ID: 6, Title: "Later", Day: "2026-10-21", StartTime: "10:00"},
		},
	}

	timeline, skipped := Aggregate(src, DayRange{From: "2026-10-19", To: "2026-10-20"}, DefaultSettings())
	assert.Equal(t, 3, skipped)
	assert.Equal(t, []string{"2026-10-19"}, timeline.Days())

	day := timeline.On("2026-10-19")
	require.Len(t, day, 1)
	assert.Equal(t, FallbackTitle, day[0].Title, "unknown habit falls back")
	assert.Empty(t, timeline.On("2026-10-20"))
}

func TestDayRange_Contains(t *testing.T) {
	assert.True(t, DayRange{}.Contains("2026-10-19"))
	assert.True(t, SingleDay("2026-10-19").Contains("2026-10-19"))
	assert.False(t, SingleDay("2026-10-19").Contains("2026-10-20"))
	assert.True(t, DayRange{From: "2026-10-01"}.Contains("2027-01-01"))
	assert.False(t, DayRange{To: "2026-10-01"}.Contains("2026-10-02"))
}

func TestEntryJSON(t *testing.T) {
	e := Entry{
		ID:       4,
		Ref:      HabitRef{HabitID: 10},
		Title:    "Run",
		Date:     "2026-10-19",
		Interval: Interval{Start: 540, End: 585},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 4, "kind": "habit", "habit_id": 10, "title": "Run", "day": "2026-10-19",
		"start_time": "09:00", "end_time": "09:45", "duration_minutes": 45, "has_end": false
	}`, string(data))
}
