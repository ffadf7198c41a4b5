package vault

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	vaultrepo "ascend/internal/gateway/repository/vault"
)

type countingOrigin struct {
	*vaultrepo.MemoryStore

	mu        sync.Mutex
	listCalls int
	getCalls  int
	failSave  bool
}

func newCountingOrigin() *countingOrigin {
	return &countingOrigin{MemoryStore: vaultrepo.NewMemoryStore()}
}

func (o *countingOrigin) Save(ctx context.Context, bp SavedBlueprint) (SavedBlueprint, error) {
	if o.failSave {
		return SavedBlueprint{}, fmt.Errorf("save failed")
	}
	return o.MemoryStore.Save(ctx, bp)
}

func (o *countingOrigin) List(ctx context.Context, userID string) ([]SavedBlueprint, error) {
	o.mu.Lock()
	o.listCalls++
	o.mu.Unlock()
	return o.MemoryStore.List(ctx, userID)
}

func (o *countingOrigin) Get(ctx context.Context, userID, id string) (SavedBlueprint, error) {
	o.mu.Lock()
	o.getCalls++
	o.mu.Unlock()
	return o.MemoryStore.Get(ctx, userID, id)
}

type lookups map[string]int

func (l lookups) CacheLookup(cache string, hit bool) { l[fmt.Sprintf("%s:%v", cache, hit)]++ }

func TestCachedStoreListIsInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	obs := lookups{}
	s := NewCachedStore(origin, DefaultCacheConfig(), obs)

	if _, err := s.Save(ctx, SavedBlueprint{UserID: "alice", Goal: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		list, err := s.List(ctx, "alice")
		if err != nil || len(list) != 1 {
			t.Fatalf("list = %v, %v", list, err)
		}
	}
	if origin.listCalls != 1 {
		t.Fatalf("origin list calls = %d, want 1", origin.listCalls)
	}

	second, err := s.Save(ctx, SavedBlueprint{UserID: "alice", Goal: "b"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	list, _ := s.List(ctx, "alice")
	if len(list) != 2 || origin.listCalls != 2 {
		t.Fatalf("after save: len=%d calls=%d", len(list), origin.listCalls)
	}

	if err := s.Delete(ctx, "alice", second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = s.List(ctx, "alice")
	if len(list) != 1 || origin.listCalls != 3 {
		t.Fatalf("after delete: len=%d calls=%d", len(list), origin.listCalls)
	}

	snap := s.MetricsSnapshot()
	if snap.ListHits != 2 || snap.ListMisses != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if obs["vault_list:true"] != 2 || obs["vault_list:false"] != 3 {
		t.Fatalf("observer = %v", obs)
	}
}

func TestCachedStoreGetAndPin(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	s := NewCachedStore(origin, CacheConfig{ItemTTL: time.Minute}, nil)

	saved, err := origin.MemoryStore.Save(ctx, SavedBlueprint{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Get(ctx, "alice", saved.ID); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if origin.getCalls != 1 {
		t.Fatalf("origin get calls = %d, want 1", origin.getCalls)
	}
	if err := s.SetPinned(ctx, "alice", saved.ID, true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	got, _ := s.Get(ctx, "alice", saved.ID)
	if !got.Pinned || origin.getCalls != 2 {
		t.Fatalf("pinned=%v calls=%d", got.Pinned, origin.getCalls)
	}

	if _, err := s.Get(ctx, "bob", saved.ID); err == nil {
		t.Fatalf("expected ownership error")
	}
}

func TestCachedStoreWriteErrorsAreCounted(t *testing.T) {
	origin := newCountingOrigin()
	origin.failSave = true
	s := NewCachedStore(origin, DefaultCacheConfig(), nil)
	if _, err := s.Save(context.Background(), SavedBlueprint{UserID: "alice"}); err == nil {
		t.Fatalf("expected save error")
	}
	if got := s.MetricsSnapshot().OriginWriteErr; got != 1 {
		t.Fatalf("write errors = %d", got)
	}
}
