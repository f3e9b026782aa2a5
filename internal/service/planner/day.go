package planner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/pkg/logger"
	"habitflow/pkg/metrics"
)

// DayQuery asks for one day's timeline. The candidate is optional; with only
// a start the default session length applies.
type DayQuery struct {
	OwnerID        int64
	Day            string
	CandidateStart string
	CandidateEnd   string
}

type DayReport struct {
	Day         string                     `json:"day"`
	Entries     []availability.Entry       `json:"entries"`
	Candidate   *availability.Window       `json:"candidate,omitempty"`
	Overlaps    []availability.Entry       `json:"overlaps"`
	Pairs       []availability.OverlapPair `json:"overlap_pairs,omitempty"`
	FreeWindows []availability.Window      `json:"free_windows"`
}

// Day returns the day's entries, overlaps and free windows. With a candidate,
// overlaps are the entries the candidate collides with; without one they are
// the entries already colliding with each other.
func (s *Service) Day(ctx context.Context, q DayQuery) (*DayReport, error) {
	defer metrics.ObserveAvailability("day", time.Now())

	if strings.TrimSpace(q.Day) == "" {
		return nil, &availability.ValidationError{Field: "day", Question: "Which day should I look at?"}
	}
	day, err := availability.ResolveDay(q.Day, s.now(), s.settings.Location)
	if err != nil {
		return nil, &availability.ValidationError{Field: "day", Question: "Which day should I look at? Use YYYY-MM-DD, today or tomorrow.", Err: err}
	}
	candidate, err := s.parseCandidate(q)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwner(ctx, q.OwnerID); err != nil {
		return nil, err
	}

	rng := availability.SingleDay(day)
	src, err := s.reader.Sources(ctx, q.OwnerID, rng)
	if err != nil {
		return nil, &availability.PersistenceError{Op: "load day", Err: err}
	}
	timeline, skipped := availability.Aggregate(src, rng, s.settings)
	if skipped > 0 {
		logger.WithTrace(ctx, s.logger).Warn("Skipped unreadable schedule rows",
			zap.Int64("user_id", q.OwnerID),
			zap.String("day", day),
			zap.Int("count", skipped),
		)
	}
	entries := timeline.On(day)

	report := &DayReport{
		Day:         day,
		Entries:     nonNil(entries),
		FreeWindows: nonNilWindows(availability.FreeWindows(day, entries, s.settings, s.settings.MinWindow)),
	}
	if candidate != nil {
		report.Candidate = &availability.Window{Day: day, Interval: *candidate}
		report.Overlaps = nonNil(availability.DetectOverlaps(*candidate, entries))
	} else {
		report.Pairs = availability.SweepOverlaps(entries)
		report.Overlaps = nonNil(involved(entries, report.Pairs))
	}
	return report, nil
}

func (s *Service) parseCandidate(q DayQuery) (*availability.Interval, error) {
	startToken := strings.TrimSpace(q.CandidateStart)
	endToken := strings.TrimSpace(q.CandidateEnd)
	if startToken == "" && endToken == "" {
		return nil, nil
	}
	if startToken == "" {
		return nil, &availability.ValidationError{Field: "start_time", Question: "What time does it start? Use HH:MM."}
	}

	start, err := availability.ParseTime(startToken)
	if err != nil {
		return nil, &availability.ValidationError{Field: "start_time", Question: "What time does it start? Use HH:MM.", Err: err}
	}
	var endPtr *string
	if endToken != "" {
		endPtr = &endToken
	}
	end, _, err := availability.EndOrDefault(start, endPtr, s.settings)
	if err != nil {
		return nil, &availability.ValidationError{Field: "end_time", Question: "What time does it end? Use HH:MM.", Err: err}
	}
	if start >= end {
		return nil, &availability.ValidationError{Field: "end_time", Question: "End time must be after the start time."}
	}
	return &availability.Interval{Start: start, End: end}, nil
}

// involved lists each entry that appears in a pair once, in timeline order.
func involved(entries []availability.Entry, pairs []availability.OverlapPair) []availability.Entry {
	if len(pairs) == 0 {
		return nil
	}
	type key struct {
		kind availability.Kind
		id   int64
	}
	seen := make(map[key]bool, 2*len(pairs))
	for _, p := range pairs {
		seen[key{p.Earlier.Kind(), p.Earlier.ID}] = true
		seen[key{p.Later.Kind(), p.Later.ID}] = true
	}
	var out []availability.Entry
	for _, e := range entries {
		if seen[key{e.Kind(), e.ID}] {
			out = append(out, e)
		}
	}
	return out
}

func nonNil(entries []availability.Entry) []availability.Entry {
	if entries == nil {
		return []availability.Entry{}
	}
	return entries
}

func nonNilWindows(windows []availability.Window) []availability.Window {
	if windows == nil {
		return []availability.Window{}
	}
	return windows
}
