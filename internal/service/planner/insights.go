package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/pkg/logger"
	"habitflow/pkg/metrics"
)

type HabitInsight struct {
	HabitID int64              `json:"habit_id"`
	Title   string             `json:"title"`
	Stats   availability.Stats `json:"stats"`
}

type DayWindows struct {
	Day         string                `json:"day"`
	FreeWindows []availability.Window `json:"free_windows"`
}

// Suggestion proposes a session for an underperforming habit.
type Suggestion struct {
	HabitID     int64               `json:"habit_id"`
	Title       string              `json:"title"`
	SuccessRate int                 `json:"success_rate"`
	Window      availability.Window `json:"window"`
	Message     string              `json:"message"`
}

type InsightsReport struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	HorizonDays  int            `json:"horizon_days"`
	Habits       []HabitInsight `json:"habits"`
	OverlapCount int            `json:"overlap_count"`
	FreeWindows  []DayWindows   `json:"free_windows"`
	Suggestions  []Suggestion   `json:"suggestions"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// ClampHorizon defaults to 7 days and keeps the horizon within [1, 31].
func ClampHorizon(days int) int {
	switch {
	case days <= 0:
		return DefaultHorizonDays
	case days > MaxHorizonDays:
		return MaxHorizonDays
	default:
		return days
	}
}

// Insights reports per-habit stats, overlaps, free time and suggestions for
// the horizon starting today.
func (s *Service) Insights(ctx context.Context, ownerID int64, horizonDays int) (*InsightsReport, error) {
	defer metrics.ObserveAvailability("insights", time.Now())

	horizon := ClampHorizon(horizonDays)
	now := s.now()
	today := s.settings.Today(now)
	key := CacheKey(ownerID, horizon, today)

	if err := s.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}

	days := make([]string, 0, horizon)
	for i := 0; i < horizon; i++ {
		d, err := availability.AddDays(today, i)
		if err != nil {
			return nil, fmt.Errorf("horizon day %d: %w", i, err)
		}
		days = append(days, d)
	}
	rng := availability.DayRange{From: days[0], To: days[len(days)-1]}

	habits, err := s.reader.ActiveHabits(ctx, ownerID)
	if err != nil {
		return nil, &availability.PersistenceError{Op: "list habits", Err: err}
	}
	log, err := s.reader.CompletionLog(ctx, ownerID, habitIDs(habits))
	if err != nil {
		return nil, &availability.PersistenceError{Op: "load completion log", Err: err}
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

	report := &InsightsReport{
		From:        rng.From,
		To:          rng.To,
		HorizonDays: horizon,
		Habits:      habitInsights(habits, log, today),
		FreeWindows: make([]DayWindows, 0, horizon),
		Suggestions: []Suggestion{},
		GeneratedAt: now.UTC(),
	}
	for _, d := range days {
		entries := timeline.On(d)
		report.OverlapCount += availability.CountOverlaps(entries)
		report.FreeWindows = append(report.FreeWindows, DayWindows{
			Day:         d,
			FreeWindows: nonNilWindows(availability.FreeWindows(d, entries, s.settings, s.settings.MinWindow)),
		})
	}
	report.Suggestions = s.suggest(report.Habits, timeline, days, now)

	s.cache.Put(ctx, key, report)
	return report, nil
}

func habitIDs(habits []model.Habit) []int64 {
	ids := make([]int64, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
	}
	return ids
}

func habitInsights(habits []model.Habit, log []model.CompletionLogEntry, today string) []HabitInsight {
	byHabit := make(map[int64][]model.CompletionLogEntry, len(habits))
	for _, entry := range log {
		byHabit[entry.HabitID] = append(byHabit[entry.HabitID], entry)
	}

	out := make([]HabitInsight, 0, len(habits))
	for _, h := range habits {
		out = append(out, HabitInsight{
			HabitID: h.ID,
			Title:   h.Title,
			Stats:   availability.ComputeStats(byHabit[h.ID], today),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HabitID < out[j].HabitID })
	return out
}

// suggest gives up to three habits below the threshold, lowest first, the
// earliest unused slot of the suggestion length. Slots on today start no
// earlier than now.
func (s *Service) suggest(habits []HabitInsight, timeline availability.Timeline, days []string, now time.Time) []Suggestion {
	var low []HabitInsight
	for _, h := range habits {
		if h.Stats.SuccessRate != nil && *h.Stats.SuccessRate < s.threshold {
			low = append(low, h)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		return *low[i].Stats.SuccessRate < *low[j].Stats.SuccessRate
	})
	if len(low) > MaxSuggestions {
		low = low[:MaxSuggestions]
	}
	if len(low) == 0 {
		return []Suggestion{}
	}

	length := s.settings.SuggestionWindow
	nowMinute := s.settings.MinuteOfDay(now)

	var slots []availability.Window
	for i, d := range days {
		seed := s.settings.DayStart
		if i == 0 {
			seed = max(seed, nowMinute)
		}
		need := len(low) - len(slots)
		slots = append(slots, availability.SuggestSlots(d, timeline.On(d), s.settings, seed, length, need)...)
		if len(slots) == len(low) {
			break
		}
	}

	out := make([]Suggestion, 0, len(slots))
	for i, slot := range slots {
		h := low[i]
		out = append(out, Suggestion{
			HabitID:     h.HabitID,
			Title:       h.Title,
			SuccessRate: *h.Stats.SuccessRate,
			Window:      slot,
			Message:     momentumMessage(h, slot, length),
		})
	}
	return out
}

// momentumMessage is driven by the rolling summary of recent tracked days.
func momentumMessage(h HabitInsight, slot availability.Window, length int) string {
	r := h.Stats.Rolling
	when := fmt.Sprintf("%s at %s", slot.Day, availability.FormatMinute(slot.Start))

	switch {
	case r.TrackedDays == 0 || r.SuccessRate == nil:
		return fmt.Sprintf("No recent check-ins for %s. Try a %d-minute session on %s.", h.Title, length, when)
	case *r.SuccessRate < 50:
		return fmt.Sprintf("%s slipped to %d%% over your last %d tracked days. A %d-minute session on %s can restart the streak.",
			h.Title, *r.SuccessRate, r.TrackedDays, length, when)
	default:
		return fmt.Sprintf("%s is at %d%% over your last %d tracked days. Keep the momentum going on %s.",
			h.Title, *r.SuccessRate, r.TrackedDays, when)
	}
}
