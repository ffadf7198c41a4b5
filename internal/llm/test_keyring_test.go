package llm

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Label
	}
	return out
}

func TestKeyringOrdersModelsThenKeys(t *testing.T) {
	k := NewKeyring([]ProviderConfig{
		{Name: "gemini", Keys: []string{"a", "b", ""}, FastModel: "flash", CapableModel: "pro"},
		{Name: "groq", Keys: []string{"g"}, FastModel: "llama"},
		{Name: "empty", Keys: nil, FastModel: "x"},
	}, NewMemoryCursor(), nil)

	got := k.Candidates(context.Background(), false)
	assert.Equal(t, []string{
		"gemini:flash#1", "gemini:flash#2", "gemini:pro#1", "gemini:pro#2", "groq:llama#1",
	}, labels(got))
	assert.Equal(t, "a", got[0].Credential)

	got = k.Candidates(context.Background(), true)
	assert.Equal(t, []string{
		"gemini:pro#2", "gemini:pro#1", "gemini:flash#2", "gemini:flash#1", "groq:llama#1",
	}, labels(got))
}

func TestKeyringCandidatesAreUnique(t *testing.T) {
	k := NewKeyring([]ProviderConfig{
		{Name: "gemini", Keys: []string{"a", "a", "b"}, FastModel: "m", CapableModel: "m"},
	}, nil, nil)

	got := k.Candidates(context.Background(), false)
	require.Len(t, got, 2)
	seen := map[string]bool{}
	for _, c := range got {
		key := c.Model + "|" + c.Credential
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}
}

func TestKeyringEmpty(t *testing.T) {
	k := NewKeyring([]ProviderConfig{{Name: "gemini", FastModel: "flash"}}, nil, nil)
	assert.True(t, k.Empty())
	assert.Empty(t, k.Candidates(context.Background(), false))
	assert.Empty(t, k.Status())
}

func TestRedisCursorRotatesAcrossKeyrings(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	providers := []ProviderConfig{{Name: "gemini", Keys: []string{"a", "b", "c"}, FastModel: "flash"}}
	first := NewKeyring(providers, NewRedisCursor(rdb, "test:"), nil)
	second := NewKeyring(providers, NewRedisCursor(rdb, "test:"), nil)
	ctx := context.Background()

	assert.Equal(t, "a", first.Candidates(ctx, false)[0].Credential)
	assert.Equal(t, "b", second.Candidates(ctx, false)[0].Credential)
	assert.Equal(t, "c", first.Candidates(ctx, false)[0].Credential)

	v, err := mr.Get("test:gemini")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestRedisCursorFailureFallsBackToFirstKey(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	k := NewKeyring([]ProviderConfig{{Name: "gemini", Keys: []string{"a", "b"}, FastModel: "flash"}},
		NewRedisCursor(rdb, ""), nil)
	got := k.Candidates(context.Background(), false)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Credential)
}
