package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"ascend/internal/logger"
)

// -------- Retry with exponential backoff --------

// Retry retries up to maxAttempts total with exponential backoff starting
// at baseDelay. Permanent errors and context cancellation stop immediately.
// A stream that already delivered a fragment is never retried.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{passthrough: passthrough{next}, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	passthrough
	max  int
	base time.Duration
}

func (r *retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.base
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.max-1)), ctx)
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	err := backoff.Retry(func() error {
		text, err := r.next.Generate(ctx, req)
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	}, r.policy(ctx))
	return out, unwrapPermanent(err)
}

func (r *retrying) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	var out string
	delivered := false
	err := backoff.Retry(func() error {
		text, err := r.next.GenerateStream(ctx, req, func(chunk string) error {
			delivered = true
			return onChunk(chunk)
		})
		if err != nil {
			if delivered || IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	}, r.policy(ctx))
	return out, unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var bp *backoff.PermanentError
	if errors.As(err, &bp) {
		return bp.Err
	}
	return err
}

// -------- Rate limiting --------

// RateLimit waits on a token bucket before every upstream call. rps <= 0
// disables the limiter. The limiter is shared by every client the returned
// middleware wraps.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next Client) Client {
		return &rateLimited{passthrough: passthrough{next}, lim: lim}
	}
}

type rateLimited struct {
	passthrough
	lim *rate.Limiter
}

func (c *rateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Generate(ctx, req)
}

func (c *rateLimited) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateStream(ctx, req, onChunk)
}

// -------- Logging --------

// WithLogging logs request size, latency and failures. Prompts and
// credentials are never logged.
func WithLogging(log logger.Logger) Middleware {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next Client) Client {
		return &logging{passthrough: passthrough{next}, log: log}
	}
}

type logging struct {
	passthrough
	log logger.Logger
}

func (l *logging) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := l.next.Generate(ctx, req)
	l.done("generate", len(req.Prompt), len(text), start, err)
	return text, err
}

func (l *logging) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	start := time.Now()
	text, err := l.next.GenerateStream(ctx, req, onChunk)
	l.done("stream", len(req.Prompt), len(text), start, err)
	return text, err
}

func (l *logging) done(op string, in, out int, start time.Time, err error) {
	fields := map[string]any{
		"client":       l.Name(),
		"op":           op,
		"prompt_bytes": in,
		"output_bytes": out,
		"elapsed_ms":   time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		fields["permanent"] = IsPermanent(err)
		l.log.Warn("llm call failed", fields)
		return
	}
	l.log.Debug("llm call", fields)
}

// -------- Observation --------

// Observer receives the outcome of every upstream call.
type Observer interface {
	ObserveCall(client, op string, elapsed time.Duration, err error)
}

// WithObserver reports every call to obs.
func WithObserver(obs Observer) Middleware {
	if obs == nil {
		return nil
	}
	return func(next Client) Client {
		return &observed{passthrough: passthrough{next}, obs: obs}
	}
}

type observed struct {
	passthrough
	obs Observer
}

func (o *observed) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := o.next.Generate(ctx, req)
	o.obs.ObserveCall(o.Name(), "generate", time.Since(start), err)
	return text, err
}

func (o *observed) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	start := time.Now()
	text, err := o.next.GenerateStream(ctx, req, onChunk)
	o.obs.ObserveCall(o.Name(), "stream", time.Since(start), err)
	return text, err
}
