package auth

import (
	"errors"
	"net/http"

	"ascend/internal/logger"
)

// Middleware attaches the caller identity to the request context when one
// can be resolved. Anonymous requests pass through; handlers decide whether
// they need a caller.
func Middleware(p Provider, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := p.Authenticate(r)
			switch {
			case err == nil:
				r = r.WithContext(WithIdentity(r.Context(), id))
			case !errors.Is(err, ErrUnauthenticated):
				log.Warn("authentication failed", map[string]any{"error": err, "path": r.URL.Path})
			}
			next.ServeHTTP(w, r)
		})
	}
}
