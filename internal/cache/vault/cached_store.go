package vault

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	vaultrepo "ascend/internal/gateway/repository/vault"
)

type Store = vaultrepo.Store

type SavedBlueprint = vaultrepo.SavedBlueprint

type CacheConfig struct {
	ListTTL        time.Duration
	ListMaxEntries int

	ItemTTL        time.Duration
	ItemMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		ItemTTL:        5 * time.Minute,
		ItemMaxEntries: 2048,
	}
}

// LookupObserver is told about every cache lookup.
type LookupObserver interface {
	CacheLookup(cache string, hit bool)
}

type MetricsSnapshot struct {
	ListHits       uint64
	ListMisses     uint64
	ItemHits       uint64
	ItemMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	itemHits       atomic.Uint64
	itemMisses     atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		ItemHits:       m.itemHits.Load(),
		ItemMisses:     m.itemMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through cache in front of a vault store. Writes go
// to the origin first and then drop the affected user's list.
type CachedStore struct {
	origin Store
	obs    LookupObserver

	lists *expirable.LRU[string, []SavedBlueprint]
	items *expirable.LRU[string, SavedBlueprint]

	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig, obs LookupObserver) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = def.ItemTTL
	}
	if cfg.ItemMaxEntries <= 0 {
		cfg.ItemMaxEntries = def.ItemMaxEntries
	}
	return &CachedStore{
		origin: origin,
		obs:    obs,
		lists:  expirable.NewLRU[string, []SavedBlueprint](cfg.ListMaxEntries, nil, cfg.ListTTL),
		items:  expirable.NewLRU[string, SavedBlueprint](cfg.ItemMaxEntries, nil, cfg.ItemTTL),
	}
}

func itemKey(userID, id string) string {
	return strings.TrimSpace(userID) + "/" + id
}

func (s *CachedStore) observe(cache string, hit bool) {
	if s.obs != nil {
		s.obs.CacheLookup(cache, hit)
	}
}

func (s *CachedStore) Save(ctx context.Context, bp SavedBlueprint) (SavedBlueprint, error) {
	s.metrics.originWrites.Add(1)
	saved, err := s.origin.Save(ctx, bp)
	if err != nil {
		s.metrics.originWriteErr.Add(1)
		return SavedBlueprint{}, err
	}
	s.lists.Remove(saved.UserID)
	s.items.Add(itemKey(saved.UserID, saved.ID), saved)
	return saved, nil
}

func (s *CachedStore) List(ctx context.Context, userID string) ([]SavedBlueprint, error) {
	userID = strings.TrimSpace(userID)
	if list, ok := s.lists.Get(userID); ok {
		s.metrics.listHits.Add(1)
		s.observe("vault_list", true)
		return append([]SavedBlueprint(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.observe("vault_list", false)
	s.metrics.originReads.Add(1)

	list, err := s.origin.List(ctx, userID)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.lists.Add(userID, append([]SavedBlueprint(nil), list...))
	return list, nil
}

func (s *CachedStore) Get(ctx context.Context, userID, id string) (SavedBlueprint, error) {
	key := itemKey(userID, id)
	if bp, ok := s.items.Get(key); ok {
		s.metrics.itemHits.Add(1)
		s.observe("vault_item", true)
		return bp, nil
	}
	s.metrics.itemMisses.Add(1)
	s.observe("vault_item", false)
	s.metrics.originReads.Add(1)

	bp, err := s.origin.Get(ctx, userID, id)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return SavedBlueprint{}, err
	}
	s.items.Add(key, bp)
	return bp, nil
}

func (s *CachedStore) Delete(ctx context.Context, userID, id string) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Delete(ctx, userID, id); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	s.invalidate(userID, id)
	return nil
}

func (s *CachedStore) SetPinned(ctx context.Context, userID, id string, pinned bool) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.SetPinned(ctx, userID, id, pinned); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	s.invalidate(userID, id)
	return nil
}

func (s *CachedStore) invalidate(userID, id string) {
	s.lists.Remove(strings.TrimSpace(userID))
	s.items.Remove(itemKey(userID, id))
}

func (s *CachedStore) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.snapshot()
}
