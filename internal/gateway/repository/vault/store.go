package vault

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ascend/internal/blueprint"
)

var (
	ErrNotFound     = errors.New("blueprint not found or access denied")
	ErrUserRequired = errors.New("vault: user id required")
)

// SavedBlueprint is a blueprint kept in a user's vault.
type SavedBlueprint struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Goal      string              `json:"goal"`
	Mode      blueprint.Mode      `json:"mode"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Pinned    bool                `json:"isPinned"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Store persists vault entries. Every read and write is scoped to the
// owning user; entries owned by someone else behave as missing.
type Store interface {
	Save(ctx context.Context, bp SavedBlueprint) (SavedBlueprint, error)
	List(ctx context.Context, userID string) ([]SavedBlueprint, error)
	Get(ctx context.Context, userID, id string) (SavedBlueprint, error)
	Delete(ctx context.Context, userID, id string) error
	SetPinned(ctx context.Context, userID, id string, pinned bool) error
}

// prepare validates bp and fills the id and timestamp when missing.
func prepare(bp SavedBlueprint, now time.Time) (SavedBlueprint, error) {
	bp.UserID = strings.TrimSpace(bp.UserID)
	if bp.UserID == "" {
		return SavedBlueprint{}, ErrUserRequired
	}
	if strings.TrimSpace(bp.ID) == "" {
		bp.ID = uuid.NewString()
	}
	if bp.CreatedAt.IsZero() {
		bp.CreatedAt = now.UTC()
	}
	if bp.Mode == "" {
		bp.Mode = blueprint.ModeStandard
	}
	return bp, nil
}
