package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ascend/internal/blueprint"
	"ascend/internal/llm"
	"ascend/internal/logger"
)

const instrumentationName = "ascend/orchestrator"

const (
	OutcomeComplete = "complete"
	OutcomeDone     = "done"
	OutcomeFallback = "fallback"
	OutcomeAborted  = "aborted"
)

// Emitter receives stream events in order. An error means the consumer is
// gone; generation stops and the error is returned to the caller.
type Emitter func(blueprint.StreamEvent) error

// Observer receives one record per finished generation.
type Observer interface {
	ObserveGeneration(mode, outcome string, attempts int)
}

type Config struct {
	Pacer Pacer
	// AttemptTimeout bounds one candidate call. Zero disables the bound.
	AttemptTimeout time.Duration
	// Stream prefers incremental upstream delivery when the client supports it.
	Stream bool
}

// Attempt records one candidate that was tried.
type Attempt struct {
	Candidate string
	Elapsed   time.Duration
	Err       error
}

// Result summarises a finished generation.
type Result struct {
	// Raw is the prepared text the interpreter saw.
	Raw string
	// Blueprint is nil when the stream ended with a done event.
	Blueprint    *blueprint.Blueprint
	Candidate    string
	Attempts     []Attempt
	UsedFallback bool
	Terminal     blueprint.EventType
}

// Orchestrator drives one generation: candidates in order, content events
// as text arrives, a local fallback when every candidate fails, and exactly
// one terminal event.
type Orchestrator struct {
	keyring  *llm.Keyring
	registry *llm.Registry
	interp   blueprint.ResponseInterpreter
	cfg      Config
	log      logger.Logger
	obs      Observer
	tracer   trace.Tracer
}

type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

func New(keyring *llm.Keyring, registry *llm.Registry, interp blueprint.ResponseInterpreter, cfg Config, opts ...Option) *Orchestrator {
	if interp == nil {
		interp = blueprint.HeuristicText{}
	}
	if cfg.Pacer.ChunkRunes <= 0 {
		cfg.Pacer.ChunkRunes = DefaultChunkRunes
	}
	o := &Orchestrator{
		keyring:  keyring,
		registry: registry,
		interp:   interp,
		cfg:      cfg,
		log:      logger.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Interpreter() blueprint.ResponseInterpreter { return o.interp }

// emitFailure marks errors that came from the consumer, not from upstream.
type emitFailure struct{ err error }

func (e *emitFailure) Error() string { return "emit: " + e.err.Error() }
func (e *emitFailure) Unwrap() error { return e.err }

// Generate validates req and runs it to completion. It returns
// blueprint.ErrEmptyGoal without calling upstream or emitting anything when
// the goal is blank. Upstream failures never surface as errors: the local
// fallback covers them.
func (o *Orchestrator) Generate(ctx context.Context, req blueprint.GenerationRequest, emit Emitter) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", req.Mode.String()),
		attribute.Bool("priority", req.Priority),
		attribute.String("interpreter", o.interp.Name()),
	)

	send := func(ev blueprint.StreamEvent) error {
		if err := emit(ev); err != nil {
			return &emitFailure{err: err}
		}
		return nil
	}
	content := func(text string) error {
		if text == "" {
			return nil
		}
		return send(blueprint.ContentEvent(text))
	}

	res, err := o.run(ctx, req, content)
	if err != nil {
		o.finish(span, req, OutcomeAborted, len(res.attempts), err)
		return Result{Attempts: res.attempts, Candidate: res.candidate}, unwrapEmit(err)
	}

	prepared := res.interp.Prepare(res.raw)
	out := Result{Raw: prepared, Candidate: res.candidate, Attempts: res.attempts, UsedFallback: res.fallback}

	outcome := OutcomeDone
	if bp, ok := res.interp.Interpret(prepared, req.Goal); ok {
		out.Blueprint = &bp
		out.Terminal = blueprint.EventComplete
		err = send(blueprint.CompleteEvent(bp))
		outcome = OutcomeComplete
	} else {
		out.Terminal = blueprint.EventDone
		err = send(blueprint.DoneEvent())
	}
	if res.fallback {
		outcome = OutcomeFallback
	}
	o.finish(span, req, outcome, len(out.Attempts), err)
	return out, unwrapEmit(err)
}

type runState struct {
	raw       string
	candidate string
	attempts  []Attempt
	fallback  bool
	interp    blueprint.ResponseInterpreter
}

func (o *Orchestrator) run(ctx context.Context, req blueprint.GenerationRequest, content func(string) error) (runState, error) {
	st := runState{interp: o.interp}
	llmReq := llm.Request{Prompt: o.interp.Prompt(req.Goal, req.Mode)}
	if o.interp.Style() == blueprint.StyleJSON {
		llmReq.JSON = true
		llmReq.Schema = blueprint.Schema()
	}

	var candidates []llm.Candidate
	if o.keyring != nil && o.registry != nil {
		candidates = o.keyring.Candidates(ctx, req.Priority)
	}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		start := time.Now()
		raw, delivered, err := o.attempt(ctx, c, llmReq, content)
		st.attempts = append(st.attempts, Attempt{Candidate: c.Label, Elapsed: time.Since(start), Err: err})

		var ef *emitFailure
		if errors.As(err, &ef) {
			return st, err
		}
		if cerr := ctx.Err(); cerr != nil {
			return st, cerr
		}
		if err == nil || delivered {
			if err != nil {
				o.log.Warn("stream interrupted, finalising partial text", map[string]any{
					"candidate": c.Label, "error": err, "bytes": len(raw),
				})
			}
			st.raw, st.candidate = raw, c.Label
			return st, nil
		}
		o.log.Warn("candidate failed", map[string]any{
			"candidate": c.Label, "error": err, "permanent": llm.IsPermanent(err),
		})
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	o.log.Info("using local fallback", map[string]any{
		"mode": req.Mode.String(), "candidates": len(candidates),
	})
	st.fallback = true
	st.interp = blueprint.HeuristicText{}
	st.raw = blueprint.Fallback(req.Goal, req.Mode)
	if err := o.cfg.Pacer.Emit(ctx, st.interp.Prepare(st.raw), content); err != nil {
		return st, err
	}
	return st, nil
}

// attempt runs one candidate. delivered reports whether any content event
// was emitted, after which the orchestrator must not move on.
func (o *Orchestrator) attempt(ctx context.Context, c llm.Candidate, req llm.Request, content func(string) error) (string, bool, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.attempt", trace.WithAttributes(
		attribute.String("candidate", c.Label),
		attribute.String("provider", c.Provider),
		attribute.String("model", c.Model),
	))
	defer span.End()

	actx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.AttemptTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	}
	defer cancel()

	cli, err := o.registry.Open(actx, c)
	if err != nil {
		recordErr(span, err)
		return "", false, err
	}
	defer func() { _ = cli.Close() }()

	if o.cfg.Stream && cli.Streams() {
		// Leading blank fragments are held until real text arrives; a blank
		// stream does not count as delivered.
		delivered := false
		var held strings.Builder
		raw, err := cli.GenerateStream(actx, req, func(chunk string) error {
			if !delivered {
				if strings.TrimSpace(chunk) == "" {
					held.WriteString(chunk)
					return nil
				}
				delivered = true
				chunk = held.String() + chunk
			}
			return content(chunk)
		})
		if err != nil {
			recordErr(span, err)
		}
		return raw, delivered, err
	}

	raw, err := cli.Generate(actx, req)
	if err != nil {
		recordErr(span, err)
		return "", false, err
	}
	if err := o.cfg.Pacer.Emit(ctx, o.interp.Prepare(raw), content); err != nil {
		return raw, true, err
	}
	return raw, true, nil
}

func (o *Orchestrator) finish(span trace.Span, req blueprint.GenerationRequest, outcome string, attempts int, err error) {
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("attempts", attempts))
	if err != nil {
		recordErr(span, err)
	}
	if o.obs != nil {
		o.obs.ObserveGeneration(req.Mode.String(), outcome, attempts)
	}
	o.log.Info("generation finished", map[string]any{
		"mode": req.Mode.String(), "outcome": outcome, "attempts": attempts,
	})
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func unwrapEmit(err error) error {
	var ef *emitFailure
	if errors.As(err, &ef) {
		return fmt.Errorf("orchestrator: %w", ef.err)
	}
	return err
}
