package model

import "time"

// ScheduleEntry is a habit-linked session. Its title comes from the habit.
type ScheduleEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	HabitID    int64     `json:"habit_id"`
	Day        string    `json:"day"` // YYYY-MM-DD
	StartTime  string    `json:"start_time"`
	EndTime    *string   `json:"end_time,omitempty"`
	RepeatRule string    `json:"repeat"`
	CustomDays []string  `json:"custom_days"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// BusyEntry is an ad hoc event carrying its own title.
type BusyEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	Day        string    `json:"day"`
	StartTime  string    `json:"start_time"`
	EndTime    *string   `json:"end_time,omitempty"`
	RepeatRule string    `json:"repeat"`
	CreatedAt  time.Time `json:"created_at"`
}
