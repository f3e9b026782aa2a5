// Package repotest provides an in-memory store for service tests.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/internal/repository"
)

// Enqueued is one outbox event recorded by MemStore.
type Enqueued struct {
	AggregateType string
	AggregateID   int64
	RoutingKey    string
	Payload       json.RawMessage
}

type reminderKey struct {
	kind    availability.Kind
	entryID int64
	day     string
}

type state struct {
	users       []model.User
	habits      []model.Habit
	sessions    []model.ScheduleEntry
	busy        []model.BusyEntry
	completions []model.CompletionLogEntry
	reminders   map[reminderKey]bool
	outbox      []Enqueued
	nextID      int64
}

func (s state) clone() state {
	c := s
	c.users = append([]model.User(nil), s.users...)
	c.habits = append([]model.Habit(nil), s.habits...)
	c.sessions = append([]model.ScheduleEntry(nil), s.sessions...)
	c.busy = append([]model.BusyEntry(nil), s.busy...)
	c.completions = append([]model.CompletionLogEntry(nil), s.completions...)
	c.outbox = append([]Enqueued(nil), s.outbox...)
	c.reminders = make(map[reminderKey]bool, len(s.reminders))
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	return c
}

// MemStore implements repository.Reader, Transactor and Users in memory.
// InTx snapshots the state and restores it when fn fails.
type MemStore struct {
	mu sync.Mutex
	st state

	// Fault injection
	InsertErr  error
	EnqueueErr error
	TxErr      error
	ReadErr    error
}

func New() *MemStore {
	return &MemStore{st: state{reminders: map[reminderKey]bool{}, nextID: 1}}
}

func (m *MemStore) id() int64 {
	id := m.st.nextID
	m.st.nextID++
	return id
}

// AddUser seeds a user and returns its id.
func (m *MemStore) AddUser(email string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: m.id(), Email: email, CreatedAt: time.Now()}
	m.st.users = append(m.st.users, u)
	return u.ID
}

// AddHabit seeds an active habit.
func (m *MemStore) AddHabit(userID int64, title string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := model.Habit{ID: m.id(), UserID: userID, Title: title, IsActive: true}
	m.st.habits = append(m.st.habits, h)
	return h.ID
}

// AddSession seeds a habit-linked row. end may be empty.
func (m *MemStore) AddSession(userID, habitID int64, day, start, end string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := model.ScheduleEntry{ID: m.id(), UserID: userID, HabitID: habitID, Day: day, StartTime: start, EndTime: optional(end)}
	m.st.sessions = append(m.st.sessions, e)
	return e.ID
}

// AddBusy seeds an ad hoc row. end may be empty.
func (m *MemStore) AddBusy(userID int64, title, day, start, end string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := model.BusyEntry{ID: m.id(), UserID: userID, Title: title, Day: day, StartTime: start, EndTime: optional(end)}
	m.st.busy = append(m.st.busy, e)
	return e.ID
}

// AddCompletion seeds a completion row.
func (m *MemStore) AddCompletion(userID, habitID int64, date string, outcome model.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.completions = append(m.st.completions, model.CompletionLogEntry{
		ID: m.id(), UserID: userID, HabitID: habitID, Date: date, Outcome: outcome,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m *MemStore) Sessions() []model.ScheduleEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ScheduleEntry(nil), m.st.sessions...)
}

func (m *MemStore) Busy() []model.BusyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BusyEntry(nil), m.st.busy...)
}

func (m *MemStore) Completions() []model.CompletionLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CompletionLogEntry(nil), m.st.completions...)
}

func (m *MemStore) Outbox() []Enqueued {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Enqueued(nil), m.st.outbox...)
}

// Reader

func (m *MemStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return false, m.ReadErr
	}
	for _, u := range m.st.users {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) ActiveHabits(ctx context.Context, userID int64) ([]model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []model.Habit
	for _, h := range m.st.habits {
		if h.UserID == userID && h.IsActive {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemStore) HabitByID(ctx context.Context, userID, habitID int64) (*model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.st.habits {
		if h.UserID == userID && h.ID == habitID {
			h := h
			return &h, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MemStore) HabitByTitle(ctx context.Context, userID int64, title string) (*model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	for _, h := range m.st.habits {
		if h.UserID == userID && h.IsActive && strings.EqualFold(h.Title, title) {
			h := h
			return &h, nil
		}
	}
	return nil, nil
}

func (m *MemStore) Sources(ctx context.Context, userID int64, rng availability.DayRange) (availability.Sources, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return availability.Sources{}, m.ReadErr
	}
	return m.st.sources(userID, rng), nil
}

func (s *state) sources(userID int64, rng availability.DayRange) availability.Sources {
	src := availability.Sources{HabitTitles: map[int64]string{}}
	for _, e := range s.sessions {
		if e.UserID == userID && rng.Contains(e.Day) {
			src.Sessions = append(src.Sessions, e)
		}
	}
	for _, e := range s.busy {
		if e.UserID == userID && rng.Contains(e.Day) {
			src.Busy = append(src.Busy, e)
		}
	}
	for _, h := range s.habits {
		if h.UserID == userID {
			src.HabitTitles[h.ID] = h.Title
		}
	}
	return src
}

func (m *MemStore) SourcesOn(ctx context.Context, day string) (map[int64]availability.Sources, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	out := map[int64]availability.Sources{}
	owners := map[int64]bool{}
	for _, e := range m.st.sessions {
		if e.Day == day {
			owners[e.UserID] = true
		}
	}
	for _, e := range m.st.busy {
		if e.Day == day {
			owners[e.UserID] = true
		}
	}
	for owner := range owners {
		out[owner] = m.st.sources(owner, availability.SingleDay(day))
	}
	return out, nil
}

func (m *MemStore) CompletionLog(ctx context.Context, userID int64, habitIDs []int64) ([]model.CompletionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	want := map[int64]bool{}
	for _, id := range habitIDs {
		want[id] = true
	}
	var out []model.CompletionLogEntry
	for _, c := range m.st.completions {
		if c.UserID == userID && (len(want) == 0 || want[c.HabitID]) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Users

func (m *MemStore) CreateUser(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now()
	m.st.users = append(m.st.users, *u)
	return nil
}

func (m *MemStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.st.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Transactor

func (m *MemStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TxErr != nil {
		return m.TxErr
	}
	snapshot := m.st.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

var _ repository.Reader = (*MemStore)(nil)
var _ repository.Transactor = (*MemStore)(nil)
var _ repository.Users = (*MemStore)(nil)
