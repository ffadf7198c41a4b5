package llm

import (
	"context"
	"strings"
	"sync"
)

const ProviderFake = "fake"

// Script describes how a fake client answers.
type Script struct {
	// Chunks are streamed in order; Generate returns their concatenation.
	Chunks []string
	// Err is returned after Chunks have been delivered.
	Err error
	// Flat makes the client report that it cannot stream.
	Flat bool
}

// FakeProvider scripts answers per credential and records every call. It
// backs tests and the offline demo mode.
type FakeProvider struct {
	mu      sync.Mutex
	scripts map[string]Script
	deflt   Script
	calls   []Candidate
}

func NewFakeProvider(deflt Script) *FakeProvider {
	return &FakeProvider{scripts: make(map[string]Script), deflt: deflt}
}

// On sets the script for one credential.
func (f *FakeProvider) On(credential string, s Script) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[credential] = s
	return f
}

// Calls returns the candidates that were invoked, in order.
func (f *FakeProvider) Calls() []Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Candidate(nil), f.calls...)
}

func (f *FakeProvider) Factory() Factory {
	return func(_ context.Context, c Candidate) (Client, error) {
		f.mu.Lock()
		s, ok := f.scripts[c.Credential]
		if !ok {
			s = f.deflt
		}
		f.mu.Unlock()
		return &fakeClient{p: f, c: c, s: s}, nil
	}
}

func (f *FakeProvider) record(c Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

type fakeClient struct {
	p *FakeProvider
	c Candidate
	s Script
}

func (c *fakeClient) Name() string  { return c.c.Label }
func (c *fakeClient) Close() error  { return nil }
func (c *fakeClient) Streams() bool { return !c.s.Flat }

func (c *fakeClient) Generate(ctx context.Context, _ Request) (string, error) {
	c.p.record(c.c)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.s.Err != nil {
		return "", c.s.Err
	}
	text := strings.Join(c.s.Chunks, "")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *fakeClient) GenerateStream(ctx context.Context, _ Request, onChunk func(string) error) (string, error) {
	c.p.record(c.c)
	var b strings.Builder
	for _, chunk := range c.s.Chunks {
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return b.String(), err
		}
	}
	if c.s.Err != nil {
		return b.String(), c.s.Err
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
