package schema

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Migration is one idempotent DDL step.
type Migration struct {
	Name string
	SQL  string
}

var Usage = Migration{
	Name: "user_daily_usage",
	SQL: `
CREATE TABLE IF NOT EXISTS user_daily_usage (
    user_id TEXT NOT NULL,
    usage_date DATE NOT NULL,
    usage_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (user_id, usage_date)
);
`,
}

var Blueprints = Migration{
	Name: "blueprints",
	SQL: `
CREATE TABLE IF NOT EXISTS blueprints (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    goal TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL DEFAULT '',
    is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
ALTER TABLE blueprints ADD COLUMN IF NOT EXISTS blueprint JSONB NOT NULL DEFAULT '{}'::jsonb;
CREATE INDEX IF NOT EXISTS idx_blueprints_user_created ON blueprints(user_id, created_at DESC);
`,
}

var Devices = Migration{
	Name: "device_fingerprints",
	SQL: `
CREATE TABLE IF NOT EXISTS device_fingerprints (
    device_fingerprint TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    account_count INTEGER NOT NULL DEFAULT 1,
    is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
    blocked_reason TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS spam_logs (
    id BIGSERIAL PRIMARY KEY,
    device_fingerprint TEXT NOT NULL,
    user_id TEXT,
    action TEXT NOT NULL,
    details JSONB,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_spam_logs_device ON spam_logs(device_fingerprint);
`,
}

// All returns every migration in the order Migrate applies them.
func All() []Migration {
	return []Migration{Usage, Blueprints, Devices}
}

// Migrate applies every migration inside one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, m := range All() {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migrate %s: %w", m.Name, err)
		}
	}
	return tx.Commit()
}

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}
