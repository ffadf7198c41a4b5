package usage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ascend:usage:"

// counters outlive their day so late reads near midnight still resolve
const redisTTL = 48 * time.Hour

var decrementScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n < 0 then
  redis.call('SET', KEYS[1], 0)
  n = 0
end
redis.call('EXPIRE', KEYS[1], ARGV[1])
return n
`)

// RedisStore keeps daily counters in Redis, shared by every gateway replica.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(userID, day string) string {
	return s.prefix + userID + ":" + day
}

func (s *RedisStore) Get(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	n, err := s.rdb.Get(ctx, s.key(userID, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Increment(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	key := s.key(userID, day)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Decrement(ctx context.Context, userID, day string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	n, err := decrementScript.Run(ctx, s.rdb, []string{s.key(userID, day)}, int(redisTTL.Seconds())).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}
