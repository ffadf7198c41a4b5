package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const HeaderUserID = "X-User-Id"

var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}

func (i Identity) IsZero() bool { return strings.TrimSpace(i.UserID) == "" }

// Provider resolves the caller of a request. It returns ErrUnauthenticated
// when the request carries no usable credentials.
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

// HeaderProvider trusts the X-User-Id header. Meant for local development
// and deployments behind an authenticating proxy.
type HeaderProvider struct{}

func (HeaderProvider) Authenticate(r *http.Request) (Identity, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: id}, nil
}

// Chain tries each provider in turn and returns the first identity found.
type Chain []Provider

func (c Chain) Authenticate(r *http.Request) (Identity, error) {
	for _, p := range c {
		id, err := p.Authenticate(r)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return Identity{}, err
		}
	}
	return Identity{}, ErrUnauthenticated
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && !id.IsZero()
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
