package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"ascend/internal/logger"
)

// flakyClient fails the first n calls with err.
type flakyClient struct {
	fails  int32
	err    error
	calls  atomic.Int32
	chunks []string
}

func (f *flakyClient) Name() string  { return "flaky" }
func (f *flakyClient) Close() error  { return nil }
func (f *flakyClient) Streams() bool { return true }

func (f *flakyClient) Generate(ctx context.Context, req Request) (string, error) {
	if f.calls.Add(1) <= f.fails {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyClient) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	n := f.calls.Add(1)
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return "", err
		}
	}
	if n <= f.fails {
		return "", f.err
	}
	return "ok", nil
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{fails: 2, err: errors.New("503")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	out, err := cli.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{fails: 10, err: errors.New("503")}
	cli := Wrap(inner, Retry(2, time.Millisecond))

	_, err := cli.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	bad := classify("gemini", 401, errors.New("bad key"))
	inner := &flakyClient{fails: 10, err: bad}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	_, err := cli.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.EqualValues(t, 1, inner.calls.Load())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Status)
}

func TestRetryDoesNotReplayDeliveredStream(t *testing.T) {
	inner := &flakyClient{fails: 10, err: errors.New("reset"), chunks: []string{"a", "b"}}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	var got []string
	_, err := cli.GenerateStream(context.Background(), Request{}, func(s string) error {
		got = append(got, s)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestClassify(t *testing.T) {
	base := errors.New("x")
	assert.True(t, IsPermanent(classify("groq", 400, base)))
	assert.True(t, IsPermanent(classify("groq", 404, base)))
	assert.False(t, IsPermanent(classify("groq", 429, base)))
	assert.False(t, IsPermanent(classify("groq", 408, base)))
	assert.False(t, IsPermanent(classify("groq", 500, base)))
	assert.NoError(t, classify("groq", 500, nil))
	assert.ErrorIs(t, classify("groq", 400, base), base)
}

func TestRateLimitSpacesCalls(t *testing.T) {
	inner := &flakyClient{}
	cli := Wrap(inner, RateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := cli.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitHonoursCancellation(t *testing.T) {
	cli := Wrap(&flakyClient{}, RateLimit(0.01, 1))
	_, err := cli.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cli.Generate(ctx, Request{})
	require.Error(t, err)
}

func TestRateLimitDisabledIsNil(t *testing.T) {
	assert.Nil(t, RateLimit(0, 1))
	cli := Wrap(&flakyClient{}, RateLimit(0, 1), WithLogging(logger.NewTest(t)))
	_, err := cli.Generate(context.Background(), Request{})
	require.NoError(t, err)
}

type recordingObserver struct {
	ops  []string
	errs int
}

func (r *recordingObserver) ObserveCall(client, op string, _ time.Duration, err error) {
	r.ops = append(r.ops, client+"/"+op)
	if err != nil {
		r.errs++
	}
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	obs := &recordingObserver{}
	inner := &flakyClient{fails: 1, err: errors.New("503")}
	cli := Wrap(inner, Retry(2, time.Millisecond), WithObserver(obs))

	_, err := cli.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"flaky/generate", "flaky/generate"}, obs.ops)
	assert.Equal(t, 1, obs.errs)
}

func TestGeminiSchemaConversion(t *testing.T) {
	s := GeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"name": map[string]any{"type": "string", "description": "who"},
		},
		"required": []any{"name"},
	})
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"name"}, s.Required)
	assert.Equal(t, genai.TypeArray, s.Properties["tags"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["tags"].Items.Type)
	assert.Equal(t, "who", s.Properties["name"].Description)
}

func TestRegistryOpensRegisteredProviders(t *testing.T) {
	fake := NewFakeProvider(Script{Chunks: []string{"hi"}})
	reg := NewRegistry()
	reg.Register(ProviderFake, fake.Factory())

	cli, err := reg.Open(context.Background(), Candidate{Provider: ProviderFake, Label: "fake:m#1"})
	require.NoError(t, err)
	out, err := cli.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = reg.Open(context.Background(), Candidate{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.True(t, IsPermanent(err))
}

func TestProviderFactoriesRejectMissingKeys(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), Candidate{Model: "m"})
	assert.True(t, IsPermanent(err))
	_, err = NewGroqClient("")(context.Background(), Candidate{Model: "m"})
	assert.True(t, IsPermanent(err))

	cli, err := NewGroqClient("")(context.Background(), Candidate{Model: "llama", Credential: "k", Label: "groq:llama#1"})
	require.NoError(t, err)
	assert.Equal(t, "groq:llama#1", cli.Name())
	assert.True(t, cli.Streams())
}
