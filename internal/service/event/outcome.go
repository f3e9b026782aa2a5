package event

import (
	"net/http"

	"habitflow/internal/availability"
)

// Status is the terminal state of one creation round.
type Status string

const (
	StatusNeedsInfo Status = "NEEDS_INFO"
	StatusConflict  Status = "CONFLICT"
	StatusCreated   Status = "CREATED"
	StatusFailed    Status = "FAILED"
)

// Field names, in the order they are asked for.
const (
	FieldTitle     = "title"
	FieldDay       = "day"
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
)

// Request is one creation attempt. Fields arrive already extracted.
type Request struct {
	OwnerID    int64    `json:"-"`
	Title      string   `json:"title"`
	Day        string   `json:"day"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	Repeat     string   `json:"repeat,omitempty"`
	CustomDays []string `json:"custom_days,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Created holds the canonical stored fields of a new entry.
type Created struct {
	ID        int64             `json:"id"`
	Kind      availability.Kind `json:"kind"`
	HabitID   *int64            `json:"habit_id,omitempty"`
	Title     string            `json:"title"`
	Day       string            `json:"day"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Repeat    string            `json:"repeat"`
}

// Outcome is exactly one of NEEDS_INFO, CONFLICT, CREATED or FAILED.
type Outcome struct {
	Status      Status                `json:"status"`
	Question    string                `json:"question,omitempty"`
	Missing     []string              `json:"missing,omitempty"`
	Field       string                `json:"field,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	Suggestions []availability.Window `json:"suggestions,omitempty"`
	Event       *Created              `json:"event,omitempty"`
}

// HTTPStatus maps the outcome to a response code.
func (o Outcome) HTTPStatus() int {
	switch o.Status {
	case StatusCreated:
		return http.StatusCreated
	case StatusNeedsInfo:
		return http.StatusBadRequest
	case StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func needsInfo(field, question string, missing []string) Outcome {
	return Outcome{Status: StatusNeedsInfo, Field: field, Question: question, Missing: missing}
}

func conflict(reason, question string, suggestions []availability.Window) Outcome {
	return Outcome{Status: StatusConflict, Reason: reason, Question: question, Suggestions: suggestions}
}

func failed() Outcome {
	return Outcome{Status: StatusFailed, Reason: reasonFailed}
}
