package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"ascend/internal/logger"
)

// Candidate is one (credential, model) pair the orchestrator may try.
// Label identifies it in logs without exposing the credential.
type Candidate struct {
	Provider   string
	Model      string
	Credential string
	Label      string
}

func (c Candidate) String() string { return c.Label }

// ProviderConfig lists the keys and models configured for one provider.
type ProviderConfig struct {
	Name         string
	Keys         []string
	FastModel    string
	CapableModel string
}

// Models returns the models to try, preferred first.
func (p ProviderConfig) Models(priority bool) []string {
	first, second := p.FastModel, p.CapableModel
	if priority {
		first, second = second, first
	}
	out := make([]string, 0, 2)
	for _, m := range []string{first, second} {
		if m == "" {
			continue
		}
		if len(out) == 1 && out[0] == m {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Cursor hands out a monotonically increasing counter per scope so request
// start positions rotate across keys.
type Cursor interface {
	Next(ctx context.Context, scope string) (uint64, error)
}

// Keyring orders candidates for a request: providers in configured order,
// then models by priority, then keys starting at a rotating offset.
type Keyring struct {
	providers []ProviderConfig
	cursor    Cursor
	log       logger.Logger
}

func NewKeyring(providers []ProviderConfig, cursor Cursor, log logger.Logger) *Keyring {
	if log == nil {
		log = logger.NewNop()
	}
	if cursor == nil {
		cursor = NewMemoryCursor()
	}
	kept := make([]ProviderConfig, 0, len(providers))
	for _, p := range providers {
		p.Keys = cleanKeys(p.Keys)
		if len(p.Keys) == 0 || len(p.Models(false)) == 0 {
			continue
		}
		kept = append(kept, p)
	}
	return &Keyring{providers: kept, cursor: cursor, log: log}
}

func cleanKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Empty reports whether no usable credential is configured.
func (k *Keyring) Empty() bool { return len(k.providers) == 0 }

// Candidates returns every (key, model) pair to try for one request, in
// order. It never returns the same pair twice.
func (k *Keyring) Candidates(ctx context.Context, priority bool) []Candidate {
	var out []Candidate
	for _, p := range k.providers {
		start := 0
		if len(p.Keys) > 1 {
			n, err := k.cursor.Next(ctx, p.Name)
			if err != nil {
				k.log.Warn("keyring cursor unavailable", map[string]any{"provider": p.Name, "error": err})
			} else {
				start = int(n % uint64(len(p.Keys)))
			}
		}
		for _, model := range p.Models(priority) {
			for i := range p.Keys {
				idx := (start + i) % len(p.Keys)
				out = append(out, Candidate{
					Provider:   p.Name,
					Model:      model,
					Credential: p.Keys[idx],
					Label:      fmt.Sprintf("%s:%s#%d", p.Name, model, idx+1),
				})
			}
		}
	}
	return out
}

// ProviderStatus summarises a provider without exposing keys.
type ProviderStatus struct {
	Name   string   `json:"name"`
	Keys   int      `json:"keys"`
	Models []string `json:"models"`
}

func (k *Keyring) Status() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(k.providers))
	for _, p := range k.providers {
		out = append(out, ProviderStatus{Name: p.Name, Keys: len(p.Keys), Models: p.Models(false)})
	}
	return out
}

// MemoryCursor keeps counters in process memory.
type MemoryCursor struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewMemoryCursor() *MemoryCursor {
	return &MemoryCursor{counts: make(map[string]uint64)}
}

func (c *MemoryCursor) Next(_ context.Context, scope string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.counts[scope]
	c.counts[scope] = n + 1
	return n, nil
}

// RedisCursor shares counters between gateway replicas.
type RedisCursor struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisCursor(rdb redis.Cmdable, prefix string) *RedisCursor {
	if prefix == "" {
		prefix = "ascend:keyring:"
	}
	return &RedisCursor{rdb: rdb, prefix: prefix}
}

func (c *RedisCursor) Next(ctx context.Context, scope string) (uint64, error) {
	n, err := c.rdb.Incr(ctx, c.prefix+scope).Result()
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}
	return uint64(n - 1), nil
}
