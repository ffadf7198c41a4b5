package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascend/internal/logger"
)

var accepted = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusAccepted)
})

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example/"})(accepted)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusAccepted, w.Code)

	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	w := httptest.NewRecorder()
	CORS(nil)(accepted).ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-Id")
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	h := RequestID(Logging(logger.NewTest(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	})))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
}

type httpObs struct {
	route string
	code  int
}

func (o *httpObs) ObserveHTTP(route, _ string, code int, _ time.Duration) {
	o.route, o.code = route, code
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &httpObs{}
	router := mux.NewRouter()
	router.Use(Metrics(obs))
	router.Handle("/api/blueprints/{id}", accepted)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/blueprints/42", nil))
	assert.Equal(t, "/api/blueprints/{id}", obs.route)
	assert.Equal(t, http.StatusAccepted, obs.code)
}

func TestRateLimiterPerClient(t *testing.T) {
	require.Nil(t, NewRateLimiter(0, 1))
	h := NewRateLimiter(0.001, 2).Limit(accepted)

	call := func(addr string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusAccepted, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusAccepted, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusAccepted, call("10.0.0.2:1000"))
}

func TestRateLimiterForwardedFor(t *testing.T) {
	call := func(h http.Handler, remote, fwd string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		r.RemoteAddr = remote
		r.Header.Set("X-Forwarded-For", fwd)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// an untrusted peer cannot pick its own bucket
	h := NewRateLimiter(0.001, 1).Limit(accepted)
	assert.Equal(t, http.StatusAccepted, call(h, "203.0.113.9:1000", "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call(h, "203.0.113.9:1001", "2.2.2.2"))

	h = NewRateLimiter(0.001, 1, netip.MustParsePrefix("10.0.0.0/8")).Limit(accepted)
	assert.Equal(t, http.StatusAccepted, call(h, "10.0.0.5:1000", "1.1.1.1, 10.0.0.5"))
	assert.Equal(t, http.StatusAccepted, call(h, "10.0.0.5:1001", "2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, call(h, "10.0.0.6:1000", "1.1.1.1"))
	assert.Equal(t, http.StatusAccepted, call(h, "203.0.113.9:1000", "1.1.1.1"))
}

func TestRateLimiterSharesBucketUnderConcurrency(t *testing.T) {
	h := NewRateLimiter(0.001, 5).Limit(accepted)

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
			r.RemoteAddr = "10.9.9.9:1000"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code == http.StatusAccepted {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), admitted.Load())
}

func TestRecorderKeepsFlusher(t *testing.T) {
	w := httptest.NewRecorder()
	rec := newRecorder(w)
	var f http.Flusher = rec
	f.Flush()
	assert.True(t, w.Flushed)
	assert.Same(t, rec, newRecorder(rec))
}
