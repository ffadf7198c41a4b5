package device

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("device not found")

// Record is the persisted state of one device fingerprint.
type Record struct {
	Fingerprint   string
	UserID        string
	AccountCount  int
	Blocked       bool
	BlockedReason string
	UpdatedAt     time.Time
}

// SpamEntry is an audit row written when a device is reused.
type SpamEntry struct {
	Fingerprint string
	UserID      string
	Action      string
	Details     map[string]any
	CreatedAt   time.Time
}

// UpdateFunc computes the next state of a device from its current one.
// write=false leaves the stored record untouched.
type UpdateFunc func(current Record, found bool) (next Record, entry *SpamEntry, write bool)

// Store persists fingerprints. Update must run fn and apply its result
// atomically with respect to other updates of the same fingerprint.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Record, error)
	Update(ctx context.Context, fingerprint string, fn UpdateFunc) (Record, error)
}
