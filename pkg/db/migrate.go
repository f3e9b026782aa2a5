package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migration 表示一次 schema 变更
type migration struct {
	Version int
	Name    string
	Stmts   []string
}

var migrations = []migration{
	{Version: 1, Name: "initial_schema", Stmts: schemaV001},
	{Version: 2, Name: "outbox", Stmts: schemaV002},
}

// Migrate 按版本顺序应用未执行的迁移，每个版本一个事务
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range m.Stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.Version, m.Name,
			)
			return err
		}); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		logger.Info("Applied migration",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
		)
	}
	return nil
}

var schemaV001 = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS habits (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title              TEXT NOT NULL,
		recurrence_pattern TEXT NOT NULL DEFAULT '',
		is_active          BOOLEAN NOT NULL DEFAULT TRUE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_habits_user_title ON habits (user_id, lower(title))`,

	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		habit_id    BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		day         DATE NOT NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		repeat_rule TEXT NOT NULL DEFAULT '',
		custom_days TEXT[] NOT NULL DEFAULT '{}',
		notes       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_schedule_entries_slot
		ON schedule_entries (user_id, day, start_time, habit_id)`,

	`CREATE TABLE IF NOT EXISTS busy_entries (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       TEXT NOT NULL DEFAULT '',
		day         DATE NOT NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		repeat_rule TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_busy_entries_slot
		ON busy_entries (user_id, day, start_time, lower(title))`,

	`CREATE TABLE IF NOT EXISTS completion_log (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		habit_id   BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		outcome    TEXT NOT NULL CHECK (outcome IN ('done', 'missed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_completion_log_habit_date ON completion_log (habit_id, date)`,

	`CREATE TABLE IF NOT EXISTS reminder_dispatches (
		entry_kind    TEXT NOT NULL,
		entry_id      BIGINT NOT NULL,
		day           DATE NOT NULL,
		dispatched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (entry_kind, entry_id, day)
	)`,
}

var schemaV002 = []string{
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   BIGINT,
		routing_key    TEXT NOT NULL,
		payload        JSONB NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INTEGER NOT NULL DEFAULT 0,
		next_retry_at  TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events (status, next_retry_at)`,
}
