package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ascend/internal/logger"
)

const (
	DefaultAccountLimit = 3

	ActionNewAccountSameDevice = "new_account_same_device"

	defaultBlockedReason = "Device blocked due to too many accounts"
)

var (
	ErrFingerprintRequired = errors.New("device: fingerprint required")
	ErrUserRequired        = errors.New("device: user id required")
)

// Verdict is the answer to a spam check.
type Verdict struct {
	Blocked bool   `json:"isBlocked"`
	Reason  string `json:"reason,omitempty"`
}

// VerdictObserver counts check outcomes.
type VerdictObserver interface {
	DeviceVerdict(verdict string)
}

// Guard limits how many accounts may be created from one device.
type Guard struct {
	store Store
	limit int
	log   logger.Logger
	obs   VerdictObserver
	now   func() time.Time
}

func NewGuard(store Store, limit int, log logger.Logger, obs VerdictObserver) *Guard {
	if limit <= 0 {
		limit = DefaultAccountLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Guard{store: store, limit: limit, log: log, obs: obs, now: time.Now}
}

// Check reports whether fingerprint may sign up another account. Storage
// failures are logged and treated as not blocked.
func (g *Guard) Check(ctx context.Context, fingerprint string) (Verdict, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return Verdict{}, ErrFingerprintRequired
	}
	v := g.check(ctx, fingerprint)
	if g.obs != nil {
		label := "allowed"
		if v.Blocked {
			label = "blocked"
		}
		g.obs.DeviceVerdict(label)
	}
	return v, nil
}

func (g *Guard) check(ctx context.Context, fingerprint string) Verdict {
	rec, err := g.store.Get(ctx, fingerprint)
	if errors.Is(err, ErrNotFound) {
		return Verdict{}
	}
	if err != nil {
		g.log.Warn("device check failed", map[string]any{"error": err})
		return Verdict{}
	}
	if rec.Blocked {
		reason := rec.BlockedReason
		if reason == "" {
			reason = defaultBlockedReason
		}
		return Verdict{Blocked: true, Reason: reason}
	}
	if rec.AccountCount >= g.limit {
		return Verdict{
			Blocked: true,
			Reason:  fmt.Sprintf("Maximum account limit reached from this device (%d/%d)", rec.AccountCount, g.limit),
		}
	}
	return Verdict{}
}

// Register associates userID with fingerprint. A different user on a known
// device raises the account count, blocks the device at the limit and
// writes a spam log entry. The same user again changes nothing.
func (g *Guard) Register(ctx context.Context, fingerprint, userID string) (Record, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	userID = strings.TrimSpace(userID)
	if fingerprint == "" {
		return Record{}, ErrFingerprintRequired
	}
	if userID == "" {
		return Record{}, ErrUserRequired
	}
	now := g.now().UTC()
	rec, err := g.store.Update(ctx, fingerprint, func(cur Record, found bool) (Record, *SpamEntry, bool) {
		if !found {
			return Record{UserID: userID, AccountCount: 1, UpdatedAt: now}, nil, true
		}
		if cur.UserID == userID {
			return cur, nil, false
		}
		count := cur.AccountCount + 1
		next := cur
		next.UserID = userID
		next.AccountCount = count
		next.Blocked = count >= g.limit
		next.UpdatedAt = now
		entry := &SpamEntry{
			UserID: userID,
			Action: ActionNewAccountSameDevice,
			Details: map[string]any{
				"newUser":       userID,
				"previousUser":  cur.UserID,
				"previousCount": cur.AccountCount,
				"totalAccounts": count,
			},
			CreatedAt: now,
		}
		return next, entry, true
	})
	if err != nil {
		return Record{}, err
	}
	if rec.Blocked {
		g.log.Warn("device blocked", map[string]any{"accounts": rec.AccountCount, "user": userID})
	}
	return rec, nil
}
