package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

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
		_, s.schemaErr = s.db.ExecContext(ctx, schema.Blueprints.SQL)
	})
	return s.schemaErr
}

const selectColumns = `SELECT id, user_id, goal, mode, blueprint, is_pinned, created_at FROM blueprints`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlueprint(row rowScanner) (SavedBlueprint, error) {
	var (
		bp  SavedBlueprint
		raw []byte
	)
	if err := row.Scan(&bp.ID, &bp.UserID, &bp.Goal, &bp.Mode, &raw, &bp.Pinned, &bp.CreatedAt); err != nil {
		return SavedBlueprint{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &bp.Blueprint); err != nil {
			return SavedBlueprint{}, fmt.Errorf("decode blueprint %s: %w", bp.ID, err)
		}
	}
	return bp, nil
}

func (s *PostgresStore) Save(ctx context.Context, bp SavedBlueprint) (SavedBlueprint, error) {
	bp, err := prepare(bp, time.Now())
	if err != nil {
		return SavedBlueprint{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return SavedBlueprint{}, err
	}
	doc, err := json.Marshal(bp.Blueprint)
	if err != nil {
		return SavedBlueprint{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO blueprints (id, user_id, goal, mode, blueprint, is_pinned, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, bp.ID, bp.UserID, bp.Goal, string(bp.Mode), doc, bp.Pinned, bp.CreatedAt)
	if err != nil {
		return SavedBlueprint{}, err
	}
	return bp, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]SavedBlueprint, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SavedBlueprint, 0, 16)
	for rows.Next() {
		bp, err := scanBlueprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (SavedBlueprint, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return SavedBlueprint{}, ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return SavedBlueprint{}, err
	}
	bp, err := scanBlueprint(s.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return SavedBlueprint{}, ErrNotFound
	}
	return bp, err
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	return s.exec(ctx, userID, `DELETE FROM blueprints WHERE id=$1 AND user_id=$2`, id)
}

func (s *PostgresStore) SetPinned(ctx context.Context, userID, id string, pinned bool) error {
	return s.exec(ctx, userID, `UPDATE blueprints SET is_pinned=$3 WHERE id=$1 AND user_id=$2`, id, pinned)
}

// exec runs a statement keyed by (id, user_id) and maps "no rows" to ErrNotFound.
func (s *PostgresStore) exec(ctx context.Context, userID, query, id string, extra ...any) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	args := append([]any{id, userID}, extra...)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
