package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ascend/internal/gateway/repository/schema"
)

// Store counts generations per user and UTC day ("2006-01-02").
type Store interface {
	Get(ctx context.Context, userID, day string) (int, error)
	Increment(ctx context.Context, userID, day string) (int, error)
	// Decrement undoes one Increment. Counters never go below zero.
	Decrement(ctx context.Context, userID, day string) (int, error)
}

var ErrUserRequired = errors.New("usage: user id required")

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
		_, s.schemaErr = s.db.ExecContext(ctx, schema.Usage.SQL)
	})
	return s.schemaErr
}

func (s *PostgresStore) Get(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT usage_count FROM user_daily_usage WHERE user_id=$1 AND usage_date=$2`, userID, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (s *PostgresStore) Increment(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
INSERT INTO user_daily_usage (user_id, usage_date, usage_count, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (user_id, usage_date)
DO UPDATE SET usage_count = user_daily_usage.usage_count + 1, updated_at = NOW()
RETURNING usage_count
`, userID, day).Scan(&n)
	return n, err
}

func (s *PostgresStore) Decrement(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
UPDATE user_daily_usage
SET usage_count = GREATEST(usage_count - 1, 0), updated_at = NOW()
WHERE user_id=$1 AND usage_date=$2
RETURNING usage_count
`, userID, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Get(_ context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID+"|"+day], nil
}

func (s *MemoryStore) Increment(_ context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + day
	s.counts[key]++
	return s.counts[key], nil
}

func (s *MemoryStore) Decrement(_ context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + day
	if s.counts[key] > 0 {
		s.counts[key]--
	}
	return s.counts[key], nil
}
