package availability

import (
	"sort"
	"strings"
	"time"

	"habitflow/internal/model"
)

// Sources are the raw rows for one owner.
type Sources struct {
	Sessions    []model.ScheduleEntry
	Busy        []model.BusyEntry
	HabitTitles map[int64]string
}

// DayRange is inclusive on both ends. Empty bounds are open.
type DayRange struct {
	From string
	To   string
}

func SingleDay(day string) DayRange { return DayRange{From: day, To: day} }

func (r DayRange) Contains(day string) bool {
	if r.From != "" && day < r.From {
		return false
	}
	if r.To != "" && day > r.To {
		return false
	}
	return true
}

// Timeline holds one sorted entry list per day.
type Timeline map[string][]Entry

// On returns the entries for day, sorted by (start, end).
func (t Timeline) On(day string) []Entry {
	return t[day]
}

func (t Timeline) Days() []string {
	days := make([]string, 0, len(t))
	for d := range t {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Aggregate merges habit-linked sessions and busy rows into a per-day
// timeline. Rows whose day or times cannot be parsed, or whose end is not
// after their start, are skipped and counted.
func Aggregate(src Sources, rng DayRange, s Settings) (Timeline, int) {
	timeline := make(Timeline)
	skipped := 0

	add := func(e Entry, ok bool) {
		if !ok {
			skipped++
			return
		}
		if !rng.Contains(e.Date) {
			return
		}
		timeline[e.Date] = append(timeline[e.Date], e)
	}

	for _, row := range src.Sessions {
		title := strings.TrimSpace(src.HabitTitles[row.HabitID])
		if title == "" {
			title = FallbackTitle
		}
		add(buildEntry(row.ID, HabitRef{HabitID: row.HabitID}, title, row.Day, row.StartTime, row.EndTime, s))
	}
	for _, row := range src.Busy {
		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = FallbackTitle
		}
		add(buildEntry(row.ID, CustomRef{Title: row.Title}, title, row.Day, row.StartTime, row.EndTime, s))
	}

	for day := range timeline {
		SortEntries(timeline[day])
	}
	return timeline, skipped
}

func buildEntry(id int64, ref Ref, title, day, start string, end *string, s Settings) (Entry, bool) {
	if _, err := time.Parse(DateLayout, day); err != nil {
		return Entry{}, false
	}
	startMin, err := ParseTime(start)
	if err != nil {
		return Entry{}, false
	}
	endMin, hasEnd, err := EndOrDefault(startMin, end, s)
	if err != nil || endMin <= startMin {
		return Entry{}, false
	}
	return Entry{
		ID:       id,
		Ref:      ref,
		Title:    title,
		Date:     day,
		Interval: Interval{Start: startMin, End: endMin},
		HasEnd:   hasEnd,
	}, true
}

// SortEntries orders entries by start minute, then end minute, keeping the
// input order for exact ties.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].End < entries[j].End
	})
}
