package availability

import "encoding/json"

type Kind string

const (
	KindHabit  Kind = "habit"
	KindCustom Kind = "custom"
)

// Ref identifies where an entry came from. It is either HabitRef or CustomRef.
type Ref interface {
	Kind() Kind
}

type HabitRef struct {
	HabitID int64
}

func (HabitRef) Kind() Kind { return KindHabit }

type CustomRef struct {
	Title string
}

func (CustomRef) Kind() Kind { return KindCustom }

// Span is the capability every schedulable item exposes to the engine.
type Span interface {
	Day() string
	StartMinute() int
	EndMinute() int
	DisplayTitle() string
}

// Entry is the read-only aggregated view of a schedule or busy row.
// End is always set; HasEnd records whether the row stored one.
type Entry struct {
	ID    int64
	Ref   Ref
	Title string
	Date  string
	Interval
	HasEnd bool
}

var _ Span = Entry{}

func (e Entry) Day() string          { return e.Date }
func (e Entry) StartMinute() int     { return e.Start }
func (e Entry) EndMinute() int       { return e.End }
func (e Entry) DisplayTitle() string { return e.Title }

func (e Entry) Kind() Kind {
	if e.Ref == nil {
		return KindCustom
	}
	return e.Ref.Kind()
}

// HabitID returns the linked habit, or 0 for custom entries.
func (e Entry) HabitID() int64 {
	if ref, ok := e.Ref.(HabitRef); ok {
		return ref.HabitID
	}
	return 0
}

type entryJSON struct {
	ID        int64  `json:"id"`
	Kind      Kind   `json:"kind"`
	HabitID   int64  `json:"habit_id,omitempty"`
	Title     string `json:"title"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int    `json:"duration_minutes"`
	HasEnd    bool   `json:"has_end"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:        e.ID,
		Kind:      e.Kind(),
		HabitID:   e.HabitID(),
		Title:     e.Title,
		Day:       e.Date,
		StartTime: FormatMinute(e.Start),
		EndTime:   FormatMinute(e.End),
		Duration:  e.Duration(),
		HasEnd:    e.HasEnd,
	})
}
