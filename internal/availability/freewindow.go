package availability

import "encoding/json"

// Window is a free sub-interval of the bounded day.
type Window struct {
	Day string
	Interval
}

type windowJSON struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration_minutes"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{
		Day:      w.Day,
		Start:    FormatMinute(w.Start),
		End:      FormatMinute(w.End),
		Duration: w.Duration(),
	})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseTime(raw.Start)
	if err != nil {
		return err
	}
	end := MinutesPerDay
	if raw.End != "24:00" {
		if end, err = ParseTime(raw.End); err != nil {
			return err
		}
	}
	*w = Window{Day: raw.Day, Interval: Interval{Start: start, End: end}}
	return nil
}

// FreeWindows scans the sorted entries of one day with a cursor starting at
// the day start and returns the gaps of at least minMinutes inside
// [DayStart, DayEnd].
func FreeWindows(day string, entries []Entry, s Settings, minMinutes int) []Window {
	var windows []Window
	emit := func(start, end int) {
		if end-start >= minMinutes && end > start {
			windows = append(windows, Window{Day: day, Interval: Interval{Start: start, End: end}})
		}
	}

	cursor := s.DayStart
	for _, e := range entries {
		if cursor >= s.DayEnd {
			break
		}
		if e.Start > cursor {
			emit(cursor, min(e.Start, s.DayEnd))
		}
		end := e.End
		if end <= e.Start {
			end = e.Start + s.DefaultSession
		}
		cursor = max(cursor, end)
	}
	if cursor < s.DayEnd {
		emit(cursor, s.DayEnd)
	}
	return windows
}

// SuggestSlots returns up to limit slots of exactly duration minutes that
// start at or after seed and fit inside the day's free windows. Several slots
// may come from one window, placed back to back.
func SuggestSlots(day string, entries []Entry, s Settings, seed, duration, limit int) []Window {
	if duration <= 0 || limit <= 0 {
		return nil
	}
	var slots []Window
	for _, w := range FreeWindows(day, entries, s, duration) {
		start := max(w.Start, seed)
		for start+duration <= w.End && len(slots) < limit {
			slots = append(slots, Window{Day: day, Interval: Interval{Start: start, End: start + duration}})
			start += duration
		}
		if len(slots) == limit {
			break
		}
	}
	return slots
}
