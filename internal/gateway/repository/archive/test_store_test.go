package archive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc := []byte(`{"goalTitle":"x"}`)
	require.NoError(t, s.Put(ctx, "alice", "bp-1", doc))
	doc[0] = '!'

	got, err := s.Get(ctx, "alice", "bp-1")
	require.NoError(t, err)
	assert.Equal(t, `{"goalTitle":"x"}`, string(got))

	_, err = s.Get(ctx, "bob", "bp-1")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := s.URL(ctx, "alice", "bp-1")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey(" alice/ ", "/bp-1")
	require.NoError(t, err)
	assert.Equal(t, "blueprints/alice/bp-1.json", key)

	_, err = objectKey("", "bp")
	assert.Error(t, err)
	_, err = objectKey("alice", " ")
	assert.Error(t, err)
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	cases := map[string]S3Config{
		"endpoint": {AccessKey: "a", SecretKey: "s", Bucket: "b"},
		"secret":   {Endpoint: "localhost:9000", AccessKey: "a", Bucket: "b"},
		"bucket":   {Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"},
	}
	for want, cfg := range cases {
		assert.False(t, cfg.Complete())
		_, err := NewS3Store(cfg)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), want), err.Error())
	}
}

func TestS3StorePresignsWithoutNetwork(t *testing.T) {
	cfg := S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "exports", Region: "us-east-1"}
	require.True(t, cfg.Complete())
	s, err := NewS3Store(cfg)
	require.NoError(t, err)

	u, err := s.URL(context.Background(), "alice", "bp-1")
	require.NoError(t, err)
	assert.Contains(t, u, "/exports/blueprints/alice/bp-1.json")
	assert.Contains(t, u, "X-Amz-Expires=3600")
}
