package vault

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]SavedBlueprint
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]SavedBlueprint), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, bp SavedBlueprint) (SavedBlueprint, error) {
	bp, err := prepare(bp, s.now())
	if err != nil {
		return SavedBlueprint{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[bp.ID] = bp
	return bp, nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]SavedBlueprint, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SavedBlueprint, 0, 16)
	for _, bp := range s.items {
		if bp.UserID == userID {
			out = append(out, bp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (SavedBlueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bp, ok := s.items[id]
	if !ok || bp.UserID != strings.TrimSpace(userID) {
		return SavedBlueprint{}, ErrNotFound
	}
	return bp, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.items[id]
	if !ok || bp.UserID != strings.TrimSpace(userID) {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) SetPinned(_ context.Context, userID, id string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.items[id]
	if !ok || bp.UserID != strings.TrimSpace(userID) {
		return ErrNotFound
	}
	bp.Pinned = pinned
	s.items[id] = bp
	return nil
}
