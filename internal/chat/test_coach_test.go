package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascend/internal/llm"
	"ascend/internal/logger"
)

func newCoach(t *testing.T, fake *llm.FakeProvider, keys ...string) *Coach {
	t.Helper()
	kr := llm.NewKeyring([]llm.ProviderConfig{{Name: llm.ProviderFake, Keys: keys, FastModel: "fast"}}, nil, nil)
	reg := llm.NewRegistry()
	reg.Register(llm.ProviderFake, fake.Factory())
	c := NewCoach(kr, reg, time.Second, logger.NewTest(t))
	c.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestReplyUsesFirstWorkingCandidate(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"**Start** small ✨"}})
	fake.On("k1", llm.Script{Err: errors.New("quota")})
	c := newCoach(t, fake, "k1", "k2")

	r, err := c.Reply(context.Background(), "  how do I start?  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Start small ✨", r.Message)
	assert.Equal(t, "chat", r.Type)
	assert.False(t, r.Fallback)
	assert.Len(t, fake.Calls(), 2)
}

func TestReplyFallsBackWhenEveryCandidateFails(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Err: errors.New("down")})
	c := newCoach(t, fake, "k1")

	r, err := c.Reply(context.Background(), "pricing?", nil)
	require.NoError(t, err)
	assert.True(t, r.Fallback)
	assert.True(t, strings.HasPrefix(r.Message, `Great question about "pricing?"!`))
	assert.Equal(t, 2025, r.Timestamp.Year())
}

func TestReplyRejectsEmptyMessage(t *testing.T) {
	c := newCoach(t, llm.NewFakeProvider(llm.Script{}), "k")
	_, err := c.Reply(context.Background(), " \n", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestTrimHistory(t *testing.T) {
	var h []llm.Turn
	for i := 0; i < maxHistory+5; i++ {
		h = append(h, llm.Turn{Role: "assistant", Text: "x"})
	}
	h = append(h, llm.Turn{Role: llm.RoleModel, Text: "  "})
	out := trimHistory(h)
	require.Len(t, out, maxHistory)
	assert.Equal(t, llm.RoleUser, out[0].Role)
}
