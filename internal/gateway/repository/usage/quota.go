package usage

import (
	"context"
	"errors"
	"time"
)

const DefaultLimit = 3

var ErrQuotaExceeded = errors.New("usage: daily generation limit reached")

// Usage is the caller-facing view of today's counter.
type Usage struct {
	UsageCount   int  `json:"usageCount"`
	LimitReached bool `json:"limitReached"`
}

// Quota applies a per-user daily limit over a Store.
type Quota struct {
	store Store
	limit int
	now   func() time.Time
}

func NewQuota(store Store, limit int) *Quota {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Quota{store: store, limit: limit, now: time.Now}
}

func (q *Quota) Limit() int { return q.limit }

// Day formats t as the UTC calendar day used for counters.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (q *Quota) view(n int) Usage {
	return Usage{UsageCount: n, LimitReached: n >= q.limit}
}

// Check reports today's usage without changing it.
func (q *Quota) Check(ctx context.Context, userID string) (Usage, error) {
	n, err := q.store.Get(ctx, userID, Day(q.now()))
	if err != nil {
		return Usage{}, err
	}
	return q.view(n), nil
}

// Consume records one generation and returns the updated usage.
func (q *Quota) Consume(ctx context.Context, userID string) (Usage, error) {
	n, err := q.store.Increment(ctx, userID, Day(q.now()))
	if err != nil {
		return Usage{}, err
	}
	return q.view(n), nil
}

// Reservation is one generation charged ahead of time. Release refunds it
// on the same day it was taken.
type Reservation struct {
	UserID string
	Day    string
	Usage  Usage
}

// Reserve charges one generation up front. A charge that would pass the
// limit is undone and ErrQuotaExceeded returned.
func (q *Quota) Reserve(ctx context.Context, userID string) (Reservation, error) {
	day := Day(q.now())
	n, err := q.store.Increment(ctx, userID, day)
	if err != nil {
		return Reservation{}, err
	}
	if n > q.limit {
		if m, derr := q.store.Decrement(ctx, userID, day); derr == nil {
			n = m
		} else {
			n--
		}
		return Reservation{UserID: userID, Day: day, Usage: q.view(n)}, ErrQuotaExceeded
	}
	return Reservation{UserID: userID, Day: day, Usage: q.view(n)}, nil
}

// Release refunds a reservation.
func (q *Quota) Release(ctx context.Context, r Reservation) (Usage, error) {
	n, err := q.store.Decrement(ctx, r.UserID, r.Day)
	if err != nil {
		return Usage{}, err
	}
	return q.view(n), nil
}
