package availability

import (
	"math"
	"sort"

	"habitflow/internal/model"
)

// RollingWindowDays is the number of most recent tracked days the rolling
// summary looks at. It counts tracked days, not calendar days.
const RollingWindowDays = 7

// DaySummary is the per-date tally of a completion log.
type DaySummary struct {
	Date   string `json:"date"`
	Done   int    `json:"done"`
	Missed int    `json:"missed"`
}

// Successful: more done than missed, and at least one done.
func (d DaySummary) Successful() bool {
	return d.Done > d.Missed && d.Done > 0
}

type Rolling struct {
	TrackedDays    int  `json:"tracked_days"`
	SuccessfulDays int  `json:"successful_days"`
	Done           int  `json:"done"`
	Missed         int  `json:"missed"`
	SuccessRate    *int `json:"success_rate"`
}

type Stats struct {
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	SuccessRate   *int    `json:"success_rate"`
	Done          int     `json:"done"`
	Missed        int     `json:"missed"`
	LastTracked   string  `json:"last_tracked,omitempty"`
	Rolling       Rolling `json:"rolling"`
}

// Summarize groups the log by date, ignoring entries dated after through
// (when through is non-empty), and returns the days in chronological order.
func Summarize(log []model.CompletionLogEntry, through string) []DaySummary {
	byDate := make(map[string]*DaySummary)
	for _, entry := range log {
		if through != "" && entry.Date > through {
			continue
		}
		d, ok := byDate[entry.Date]
		if !ok {
			d = &DaySummary{Date: entry.Date}
			byDate[entry.Date] = d
		}
		switch entry.Outcome {
		case model.OutcomeDone:
			d.Done++
		case model.OutcomeMissed:
			d.Missed++
		}
	}

	days := make([]DaySummary, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// ComputeStats derives streaks and success rates as of today.
func ComputeStats(log []model.CompletionLogEntry, today string) Stats {
	days := Summarize(log, today)

	var stats Stats
	for _, d := range days {
		stats.Done += d.Done
		stats.Missed += d.Missed
	}
	stats.SuccessRate = SuccessRate(stats.Done, stats.Missed)
	stats.CurrentStreak = CurrentStreak(days, today)
	stats.LongestStreak = LongestStreak(days)
	stats.Rolling = RollingSummary(days)
	if len(days) > 0 {
		stats.LastTracked = days[len(days)-1].Date
	}
	return stats
}

// CurrentStreak walks backward from today one calendar day at a time and
// stops at the first failed or untracked day. days must be chronological.
func CurrentStreak(days []DaySummary, today string) int {
	if len(days) == 0 || !days[len(days)-1].Successful() {
		return 0
	}

	byDate := make(map[string]DaySummary, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}

	streak := 0
	cursor := today
	for {
		d, ok := byDate[cursor]
		if !ok || !d.Successful() {
			return streak
		}
		streak++

		prev, err := AddDays(cursor, -1)
		if err != nil {
			return streak
		}
		cursor = prev
	}
}

// LongestStreak scans chronologically; failures and calendar gaps reset the run.
func LongestStreak(days []DaySummary) int {
	longest, run := 0, 0
	prev := ""
	for _, d := range days {
		switch {
		case !d.Successful():
			run = 0
		case run > 0 && NextDay(prev, d.Date):
			run++
		default:
			run = 1
		}
		prev = d.Date
		longest = max(longest, run)
	}
	return longest
}

// RollingSummary covers the most recent RollingWindowDays tracked days.
func RollingSummary(days []DaySummary) Rolling {
	if len(days) > RollingWindowDays {
		days = days[len(days)-RollingWindowDays:]
	}
	var r Rolling
	for _, d := range days {
		r.TrackedDays++
		r.Done += d.Done
		r.Missed += d.Missed
		if d.Successful() {
			r.SuccessfulDays++
		}
	}
	r.SuccessRate = SuccessRate(r.Done, r.Missed)
	return r
}

// SuccessRate is round(100*done/(done+missed)), or nil with no entries.
func SuccessRate(done, missed int) *int {
	total := done + missed
	if total == 0 {
		return nil
	}
	rate := int(math.Round(100 * float64(done) / float64(total)))
	return &rate
}
