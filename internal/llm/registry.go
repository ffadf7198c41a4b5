package llm

import (
	"context"
	"fmt"
	"sync"
)

// Factory opens a client for one candidate.
type Factory func(ctx context.Context, c Candidate) (Client, error)

// Registry maps provider names to factories and applies a shared
// middleware chain to every client it opens.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	mws       []Middleware
}

func NewRegistry(mws ...Middleware) *Registry {
	return &Registry{factories: make(map[string]Factory), mws: mws}
}

func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Use appends middlewares applied to clients opened afterwards.
func (r *Registry) Use(mws ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mws = append(r.mws, mws...)
}

func (r *Registry) Open(ctx context.Context, c Candidate) (Client, error) {
	r.mu.RLock()
	f, ok := r.factories[c.Provider]
	mws := append([]Middleware(nil), r.mws...)
	r.mu.RUnlock()
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %s", ErrUnknownProvider, c.Provider))
	}
	cli, err := f(ctx, c)
	if err != nil {
		return nil, err
	}
	return Wrap(cli, mws...), nil
}

// DefaultRegistry registers the Gemini and Groq factories.
func DefaultRegistry(groqBaseURL string, mws ...Middleware) *Registry {
	r := NewRegistry(mws...)
	r.Register(ProviderGemini, NewGeminiClient)
	r.Register(ProviderGroq, NewGroqClient(groqBaseURL))
	return r
}
