package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when a provider answers without any text.
	ErrEmptyResponse = errors.New("llm: empty response from model")
	// ErrNoCandidates is returned when no credential is configured at all.
	ErrNoCandidates = errors.New("llm: no credentials configured")
	// ErrUnknownProvider is returned by Registry.Open for unregistered providers.
	ErrUnknownProvider = errors.New("llm: unknown provider")
)

// Request is one prompt sent to one model.
type Request struct {
	Prompt string
	// System is an optional instruction sent ahead of the prompt.
	System string
	// JSON asks for a JSON document; Schema, when set, constrains it.
	JSON   bool
	Schema map[string]any
	// History holds earlier conversation turns, oldest first.
	History []Turn
}

// Turn is one message of a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Client is a single model bound to a single credential.
type Client interface {
	Name() string
	Close() error
	// Streams reports whether GenerateStream delivers text incrementally.
	Streams() bool
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateStream calls onChunk for every non-empty fragment in arrival
	// order and returns the concatenated text. An error from onChunk aborts
	// the call and is returned unchanged.
	GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error)
}

// PermanentError marks a failure that retrying the same credential will not
// fix (bad key, unknown model, malformed request).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "llm: permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError; nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Provider string
	Status   int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// classify marks 4xx responses other than 408 and 429 as permanent.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	se := &StatusError{Provider: provider, Status: status, Err: err}
	if status >= 400 && status < 500 && status != 408 && status != 429 {
		return Permanent(se)
	}
	return se
}

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order: Wrap(c, A, B) is A(B(c)).
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// passthrough lets middlewares override only the calls they care about.
type passthrough struct{ next Client }

func (p passthrough) Name() string  { return p.next.Name() }
func (p passthrough) Close() error  { return p.next.Close() }
func (p passthrough) Streams() bool { return p.next.Streams() }
