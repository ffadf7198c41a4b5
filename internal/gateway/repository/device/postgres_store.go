package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ascend/internal/gateway/repository/schema"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, schema.Devices.SQL)
	})
	return s.schemaErr
}

const selectDevice = `
SELECT user_id, account_count, is_blocked, COALESCE(blocked_reason, ''), updated_at
FROM device_fingerprints WHERE device_fingerprint=$1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, fingerprint string) (Record, error) {
	rec := Record{Fingerprint: fingerprint}
	err := row.Scan(&rec.UserID, &rec.AccountCount, &rec.Blocked, &rec.BlockedReason, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Get(ctx context.Context, fingerprint string) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	return scanRecord(s.db.QueryRowContext(ctx, selectDevice, fingerprint), fingerprint)
}

// Update locks the fingerprint row for the duration of fn. Two first-time
// registrations of the same device race on the insert; ON CONFLICT keeps
// the later one.
func (s *PostgresStore) Update(ctx context.Context, fingerprint string, fn UpdateFunc) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRecord(tx.QueryRowContext(ctx, selectDevice+" FOR UPDATE", fingerprint), fingerprint)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	next, entry, write := fn(cur, found)
	if !write {
		return cur, tx.Commit()
	}
	next.Fingerprint = fingerprint

	_, err = tx.ExecContext(ctx, `
INSERT INTO device_fingerprints (device_fingerprint, user_id, account_count, is_blocked, blocked_reason, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
ON CONFLICT (device_fingerprint)
DO UPDATE SET user_id=EXCLUDED.user_id, account_count=EXCLUDED.account_count,
    is_blocked=EXCLUDED.is_blocked, blocked_reason=EXCLUDED.blocked_reason, updated_at=EXCLUDED.updated_at
`, fingerprint, next.UserID, next.AccountCount, next.Blocked, next.BlockedReason, next.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("upsert device: %w", err)
	}

	if entry != nil {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return Record{}, err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO spam_logs (device_fingerprint, user_id, action, details, created_at)
VALUES ($1, $2, $3, $4, $5)
`, fingerprint, entry.UserID, entry.Action, details, entry.CreatedAt)
		if err != nil {
			return Record{}, fmt.Errorf("insert spam log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return next, nil
}
