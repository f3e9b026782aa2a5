package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/model"
	"habitflow/pkg/outbox"
)

// Store combines the repositories behind Reader, Transactor and Users.
type Store struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger

	*repos
}

// repos is one set of repositories bound to a pool or a transaction.
type repos struct {
	users       *UserRepository
	habits      *HabitRepository
	schedule    *ScheduleRepository
	busy        *BusyRepository
	completions *CompletionRepository
	reminders   *ReminderRepository
}

func newRepos(db DBTX, logger *zap.Logger) *repos {
	return &repos{
		users:       NewUserRepository(db, logger),
		habits:      NewHabitRepository(db, logger),
		schedule:    NewScheduleRepository(db, logger),
		busy:        NewBusyRepository(db, logger),
		completions: NewCompletionRepository(db, logger),
		reminders:   NewReminderRepository(db, logger),
	}
}

func NewStore(pool *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *Store {
	return &Store{
		pool:   pool,
		outbox: outboxRepo,
		logger: logger,
		repos:  newRepos(pool, logger),
	}
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.users.Exists(ctx, userID)
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return s.users.CreateUser(ctx, u)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *Store) ActiveHabits(ctx context.Context, userID int64) ([]model.Habit, error) {
	return s.habits.ListActiveByUser(ctx, userID)
}

func (s *Store) HabitByID(ctx context.Context, userID, habitID int64) (*model.Habit, error) {
	return s.habits.GetByID(ctx, userID, habitID)
}

func (s *Store) HabitByTitle(ctx context.Context, userID int64, title string) (*model.Habit, error) {
	return s.habits.FindByTitle(ctx, userID, title)
}

func (s *Store) CompletionLog(ctx context.Context, userID int64, habitIDs []int64) ([]model.CompletionLogEntry, error) {
	return s.completions.ListByHabits(ctx, userID, habitIDs)
}

// SourcesOn loads every owner's rows for one day, keyed by owner.
func (s *Store) SourcesOn(ctx context.Context, day string) (map[int64]availability.Sources, error) {
	sessions, err := s.schedule.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	busy, err := s.busy.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list busy entries: %w", err)
	}

	byOwner := make(map[int64]availability.Sources)
	for _, e := range sessions {
		src := byOwner[e.UserID]
		src.Sessions = append(src.Sessions, e)
		byOwner[e.UserID] = src
	}
	for _, e := range busy {
		src := byOwner[e.UserID]
		src.Busy = append(src.Busy, e)
		byOwner[e.UserID] = src
	}

	for owner, src := range byOwner {
		if len(src.Sessions) == 0 {
			continue
		}
		titles, err := s.habits.TitlesByUser(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("load habit titles: %w", err)
		}
		src.HabitTitles = titles
		byOwner[owner] = src
	}
	return byOwner, nil
}

// InTx runs fn in a SERIALIZABLE transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(&txStore{
			tx:     tx,
			outbox: s.outbox,
			repos:  newRepos(tx, s.logger),
		})
	})
}

// Sources loads an owner's rows within rng.
func (r *repos) Sources(ctx context.Context, userID int64, rng availability.DayRange) (availability.Sources, error) {
	sessions, err := r.schedule.ListByUser(ctx, userID, rng)
	if err != nil {
		return availability.Sources{}, fmt.Errorf("list schedule entries: %w", err)
	}
	busy, err := r.busy.ListByUser(ctx, userID, rng)
	if err != nil {
		return availability.Sources{}, fmt.Errorf("list busy entries: %w", err)
	}
	titles, err := r.habits.TitlesByUser(ctx, userID)
	if err != nil {
		return availability.Sources{}, fmt.Errorf("load habit titles: %w", err)
	}
	return availability.Sources{Sessions: sessions, Busy: busy, HabitTitles: titles}, nil
}

type txStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository

	*repos
}

func (t *txStore) InsertHabit(ctx context.Context, h *model.Habit) error {
	return t.habits.Insert(ctx, h)
}

func (t *txStore) InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	return t.schedule.Insert(ctx, e)
}

func (t *txStore) InsertBusyEntry(ctx context.Context, e *model.BusyEntry) error {
	return t.busy.Insert(ctx, e)
}

func (t *txStore) DeleteEntry(ctx context.Context, userID int64, kind availability.Kind, entryID int64) (bool, error) {
	switch kind {
	case availability.KindHabit:
		return t.schedule.Delete(ctx, userID, entryID)
	case availability.KindCustom:
		return t.busy.Delete(ctx, userID, entryID)
	default:
		return false, fmt.Errorf("unknown entry kind %q", kind)
	}
}

func (t *txStore) InsertCompletion(ctx context.Context, c *model.CompletionLogEntry) error {
	return t.completions.Insert(ctx, c)
}

func (t *txStore) DeleteCompletion(ctx context.Context, userID, habitID int64, date string, outcome model.Outcome) (bool, error) {
	return t.completions.DeleteOne(ctx, userID, habitID, date, outcome)
}

func (t *txStore) ClaimReminder(ctx context.Context, kind availability.Kind, entryID int64, day string) (bool, error) {
	return t.reminders.Claim(ctx, kind, entryID, day)
}

func (t *txStore) Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	if t.outbox == nil {
		return errors.New("outbox not configured")
	}
	return outbox.InsertEventInTx(ctx, t.tx, t.outbox, aggregateType, &aggregateID, routingKey, payload)
}

var (
	_ Reader     = (*Store)(nil)
	_ Transactor = (*Store)(nil)
	_ Users      = (*Store)(nil)
	_ Tx         = (*txStore)(nil)
)
