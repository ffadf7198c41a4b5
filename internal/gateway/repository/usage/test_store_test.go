package usage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreIncrementUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS user_daily_usage")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, usage_date)")).
		WithArgs("u1", "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}).AddRow(2))

	s := NewPostgresStore(db)
	n, err := s.Increment(context.Background(), " u1 ", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissingRowIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS user_daily_usage")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT usage_count FROM user_daily_usage")).
		WithArgs("u1", "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT usage_count FROM user_daily_usage")).
		WithArgs("u1", "2025-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}).AddRow(3))

	s := NewPostgresStore(db)
	n, err := s.Get(context.Background(), "u1", "2025-03-01")
	require.NoError(t, err)
	assert.Zero(t, n)

	// schema is created once per store
	n, err = s.Get(context.Background(), "u1", "2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoresRejectBlankUser(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	stores := map[string]Store{
		"memory":   NewMemoryStore(),
		"postgres": NewPostgresStore(nil),
		"redis":    NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ""),
	}
	for name, s := range stores {
		_, err := s.Increment(ctx, "  ", "2025-03-01")
		assert.ErrorIs(t, err, ErrUserRequired, name)
		_, err = s.Get(ctx, "", "2025-03-01")
		assert.ErrorIs(t, err, ErrUserRequired, name)
		_, err = s.Decrement(ctx, "", "2025-03-01")
		assert.ErrorIs(t, err, ErrUserRequired, name)
	}
}

func TestRedisStoreCountsPerDay(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, "test:usage:")

	n, err := s.Get(ctx, "u1", "2025-03-01")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 1; i <= 3; i++ {
		n, err = s.Increment(ctx, "u1", "2025-03-01")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err = s.Get(ctx, "u1", "2025-03-02")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := mr.Get("test:usage:u1:2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
	assert.Equal(t, redisTTL, mr.TTL("test:usage:u1:2025-03-01"))
}

func TestMemoryStoreSeparatesUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Increment(ctx, "a", "2025-03-01")
	_, _ = s.Increment(ctx, "a", "2025-03-01")
	n, _ := s.Increment(ctx, "b", "2025-03-01")
	assert.Equal(t, 1, n)
	n, _ = s.Get(ctx, "a", "2025-03-01")
	assert.Equal(t, 2, n)
}

func TestPostgresStoreDecrementFloorsAtZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS user_daily_usage")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SET usage_count = GREATEST(usage_count - 1, 0)")).
		WithArgs("u1", "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SET usage_count = GREATEST(usage_count - 1, 0)")).
		WithArgs("u2", "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}))

	s := NewPostgresStore(db)
	n, err := s.Decrement(context.Background(), "u1", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Decrement(context.Background(), "u2", "2025-03-01")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	for name, s := range map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(rdb, "test:usage:"),
	} {
		_, err := s.Increment(ctx, "u1", "2025-03-01")
		require.NoError(t, err, name)
		n, err := s.Decrement(ctx, "u1", "2025-03-01")
		require.NoError(t, err, name)
		assert.Zero(t, n, name)
		n, err = s.Decrement(ctx, "u1", "2025-03-01")
		require.NoError(t, err, name)
		assert.Zero(t, n, name)
		n, err = s.Get(ctx, "u1", "2025-03-01")
		require.NoError(t, err, name)
		assert.Zero(t, n, name)
	}
}
