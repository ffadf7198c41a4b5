package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascend/internal/blueprint"
	"ascend/internal/llm"
	"ascend/internal/logger"
)

const streamedText = "**Strategic Blueprint**\n" +
	"\"Reach 10k users\"\n" +
	"Core Pillars\n1. Speed\n2. Focus\n3. Iteration\n" +
	"Phase 1: Launch\nTimeline: 0-1 month\nShip the MVP.\n" +
	"Phase 2: Grow\nTimeline: 1-3 months\nAcquire users.\n" +
	"Market Intelligence\n- Competitors are slow to iterate."

var errUpstream = errors.New("upstream unavailable")

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

type recorder struct {
	events []blueprint.StreamEvent
	failAt int
}

func (r *recorder) emit(ev blueprint.StreamEvent) error {
	if r.failAt > 0 && len(r.events)+1 >= r.failAt {
		return errors.New("client went away")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) content() string {
	var b strings.Builder
	for _, ev := range r.events {
		if ev.Type == blueprint.EventContent {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

// assertOneTerminal checks that exactly one terminal event was sent and that
// it came last.
func assertOneTerminal(t *testing.T, events []blueprint.StreamEvent) blueprint.StreamEvent {
	t.Helper()
	require.NotEmpty(t, events)
	for i, ev := range events[:len(events)-1] {
		require.False(t, ev.Terminal(), "terminal event at %d of %d", i, len(events))
	}
	last := events[len(events)-1]
	require.True(t, last.Terminal(), "last event is %s", last.Type)
	return last
}

func newOrchestrator(t *testing.T, fake *llm.FakeProvider, keys []string, interp blueprint.ResponseInterpreter, stream bool) *Orchestrator {
	t.Helper()
	kr := llm.NewKeyring([]llm.ProviderConfig{{
		Name: llm.ProviderFake, Keys: keys, FastModel: "fast", CapableModel: "capable",
	}}, llm.NewMemoryCursor(), logger.NewTest(t))
	reg := llm.NewRegistry()
	reg.Register(llm.ProviderFake, fake.Factory())
	return New(kr, reg, interp, Config{Pacer: Pacer{ChunkRunes: 50}, Stream: stream, AttemptTimeout: time.Second},
		WithLogger(logger.NewTest(t)))
}

func TestEmptyGoalMakesNoCalls(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"x"}})
	o := newOrchestrator(t, fake, []string{"k1"}, nil, true)
	rec := &recorder{}

	_, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "  \n\t"}, rec.emit)
	require.ErrorIs(t, err, blueprint.ErrEmptyGoal)
	assert.Empty(t, fake.Calls())
	assert.Empty(t, rec.events)
}

func TestAllCandidatesFailUsesFallback(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Err: errUpstream})
	o := newOrchestrator(t, fake, []string{"k1", "k2", "k3"}, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "Open a bakery", Mode: "Rapid"}, rec.emit)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 6)
	want := []string{"fake:fast#1", "fake:fast#2", "fake:fast#3", "fake:capable#1", "fake:capable#2", "fake:capable#3"}
	for i, c := range calls {
		assert.Equal(t, want[i], c.Label)
	}
	assert.Len(t, res.Attempts, 6)
	assert.True(t, res.UsedFallback)

	last := assertOneTerminal(t, rec.events)
	require.Equal(t, blueprint.EventComplete, last.Type)
	require.NotNil(t, last.Data)
	assert.Len(t, last.Data.StrategyRoadmap, 3)
	assert.Len(t, last.Data.CoreFocus, 3)
	assert.Equal(t, "Phase 1: MVP Sprint", last.Data.StrategyRoadmap[0].Title)
	assert.Equal(t, res.Raw, rec.content())
}

func TestNoCredentialsGoesStraightToFallback(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"never"}})
	o := newOrchestrator(t, fake, nil, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "ship"}, rec.emit)
	require.NoError(t, err)
	assert.Empty(t, fake.Calls())
	assert.Empty(t, res.Attempts)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, blueprint.EventComplete, assertOneTerminal(t, rec.events).Type)
}

func TestStreamsFragmentsInArrivalOrder(t *testing.T) {
	chunks := splitEvery(streamedText, 17)
	fake := llm.NewFakeProvider(llm.Script{Chunks: chunks})
	fake.On("bad", llm.Script{Err: errUpstream})
	o := newOrchestrator(t, fake, []string{"bad", "good"}, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "grow"}, rec.emit)
	require.NoError(t, err)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, "fake:fast#2", res.Candidate)
	require.Len(t, res.Attempts, 2)
	assert.ErrorIs(t, res.Attempts[0].Err, errUpstream)
	assert.NoError(t, res.Attempts[1].Err)

	var got []string
	for _, ev := range rec.events {
		if ev.Type == blueprint.EventContent {
			got = append(got, ev.Text)
		}
	}
	assert.Equal(t, chunks, got)
	assert.Equal(t, res.Raw, blueprint.StripMarkup(rec.content()))

	last := assertOneTerminal(t, rec.events)
	require.Equal(t, blueprint.EventComplete, last.Type)
	assert.Equal(t, "Strategic Blueprint", last.Data.GoalTitle)
	assert.Equal(t, "Reach 10k users", last.Data.VisionStatement)
	assert.Len(t, last.Data.StrategyRoadmap, 2)
}

func TestBlankStreamMovesToNextCandidate(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{streamedText}})
	fake.On("blank", llm.Script{Chunks: []string{"\n", "  "}})
	o := newOrchestrator(t, fake, []string{"blank", "good"}, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "grow"}, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, "fake:fast#2", res.Candidate)
	require.Len(t, res.Attempts, 2)
	assert.ErrorIs(t, res.Attempts[0].Err, llm.ErrEmptyResponse)
	assert.Len(t, fake.Calls(), 2)
	assert.Equal(t, streamedText, rec.content())

	last := assertOneTerminal(t, rec.events)
	require.Equal(t, blueprint.EventComplete, last.Type)
	assert.Equal(t, "Strategic Blueprint", last.Data.GoalTitle)
}

func TestLeadingBlankFragmentsAreKept(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"\n", streamedText}})
	o := newOrchestrator(t, fake, []string{"k"}, nil, true)
	rec := &recorder{}

	_, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "grow"}, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, "\n"+streamedText, rec.content())
}

func TestFlatResponseIsPaced(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{streamedText}, Flat: true})
	o := newOrchestrator(t, fake, []string{"k"}, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "grow"}, rec.emit)
	require.NoError(t, err)

	contents := rec.events[:len(rec.events)-1]
	require.Greater(t, len(contents), 1)
	for _, ev := range contents {
		assert.LessOrEqual(t, len([]rune(ev.Text)), 50)
	}
	assert.Equal(t, res.Raw, rec.content())
	assert.Equal(t, blueprint.StripMarkup(streamedText), res.Raw)
}

func TestPartialStreamIsFinalised(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"Plan\n", "Core Pillars\n1. Speed\n"}, Err: errUpstream})
	o := newOrchestrator(t, fake, []string{"k1", "k2"}, nil, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g"}, rec.emit)
	require.NoError(t, err)
	require.Len(t, fake.Calls(), 1)
	assert.False(t, res.UsedFallback)

	last := assertOneTerminal(t, rec.events)
	require.Equal(t, blueprint.EventComplete, last.Type)
	assert.Equal(t, "Plan", last.Data.GoalTitle)
	assert.Equal(t, []string{"Speed"}, last.Data.CoreFocus)
}

func TestSchemaFirstInvalidJSONEndsWithDone(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{`{"goalTitle": "x", `, `"coreFocus": [`}})
	o := newOrchestrator(t, fake, []string{"k"}, blueprint.SchemaFirst{}, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g"}, rec.emit)
	require.NoError(t, err)
	assert.Nil(t, res.Blueprint)
	last := assertOneTerminal(t, rec.events)
	assert.Equal(t, blueprint.EventDone, last.Type)
	assert.Nil(t, last.Data)
}

func TestSchemaFirstValidJSONCompletes(t *testing.T) {
	doc := `{"goalTitle":"Bakery","visionStatement":"Bread.","coreFocus":["a","b","c"],` +
		`"strategyRoadmap":[{"title":"P1","description":"d","timeline":"t"}],` +
		`"marketAnalysis":[{"title":"Gap","description":"None nearby."}]}`
	fake := llm.NewFakeProvider(llm.Script{Chunks: splitEvery(doc, 30)})
	o := newOrchestrator(t, fake, []string{"k"}, blueprint.SchemaFirst{}, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g"}, rec.emit)
	require.NoError(t, err)
	require.NotNil(t, res.Blueprint)
	assert.Equal(t, "Bakery", res.Blueprint.GoalTitle)
	assert.Equal(t, blueprint.EventComplete, assertOneTerminal(t, rec.events).Type)
}

func TestSchemaFirstFallbackStillCompletes(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Err: errUpstream})
	o := newOrchestrator(t, fake, []string{"k"}, blueprint.SchemaFirst{}, true)
	rec := &recorder{}

	res, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g", Mode: "Detailed"}, rec.emit)
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, blueprint.EventComplete, assertOneTerminal(t, rec.events).Type)
}

func TestPriorityPrefersCapableModel(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{streamedText}})
	o := newOrchestrator(t, fake, []string{"k"}, nil, true)

	_, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g", Priority: true}, (&recorder{}).emit)
	require.NoError(t, err)
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "capable", fake.Calls()[0].Model)
}

func TestEmitFailureStopsGeneration(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Chunks: []string{"a", "b", "c"}})
	o := newOrchestrator(t, fake, []string{"k1", "k2"}, nil, true)
	rec := &recorder{failAt: 2}

	_, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g"}, rec.emit)
	require.Error(t, err)
	assert.Len(t, fake.Calls(), 1)
	assert.Len(t, rec.events, 1)
}

func TestCancelledContextDoesNotFallBack(t *testing.T) {
	fake := llm.NewFakeProvider(llm.Script{Err: errUpstream})
	o := newOrchestrator(t, fake, []string{"k"}, nil, true)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Generate(ctx, blueprint.GenerationRequest{Goal: "g"}, rec.emit)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.events)
}

type countingObserver struct{ outcomes []string }

func (c *countingObserver) ObserveGeneration(_, outcome string, _ int) {
	c.outcomes = append(c.outcomes, outcome)
}

func TestObserverSeesOutcome(t *testing.T) {
	obs := &countingObserver{}
	o := New(llm.NewKeyring(nil, nil, nil), llm.NewRegistry(), nil, Config{}, WithObserver(obs))

	_, err := o.Generate(context.Background(), blueprint.GenerationRequest{Goal: "g"}, (&recorder{}).emit)
	require.NoError(t, err)
	assert.Equal(t, []string{OutcomeFallback}, obs.outcomes)
}

func TestPacerSplitsOnRunes(t *testing.T) {
	text := strings.Repeat("é", 120)
	var parts []string
	err := Pacer{ChunkRunes: 50}.Emit(context.Background(), text, func(s string) error {
		parts = append(parts, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, 50, len([]rune(parts[0])))
	assert.Equal(t, 20, len([]rune(parts[2])))
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestPacerWaitsBetweenChunks(t *testing.T) {
	start := time.Now()
	n := 0
	err := Pacer{ChunkRunes: 1, Interval: 10 * time.Millisecond}.Emit(context.Background(), "abcd", func(string) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
