package model

import "time"

type Outcome string

const (
	OutcomeDone   Outcome = "done"
	OutcomeMissed Outcome = "missed"
)

func (o Outcome) Valid() bool {
	return o == OutcomeDone || o == OutcomeMissed
}

// CompletionLogEntry is append-only. A day's count is adjusted by adding or
// removing rows, never by updating one.
type CompletionLogEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	HabitID   int64     `json:"habit_id"`
	Date      string    `json:"date"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}
