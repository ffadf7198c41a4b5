package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ascend/internal/auth"
	"ascend/internal/chat"
	"ascend/internal/gateway/repository/archive"
	"ascend/internal/gateway/repository/device"
	"ascend/internal/gateway/repository/usage"
	"ascend/internal/gateway/repository/vault"
	"ascend/internal/llm"
	"ascend/internal/logger"
	"ascend/internal/orchestrator"
)

const maxBodyBytes = 1 << 20

// Pinger reports database reachability for the status endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QuotaObserver counts generations refused by the daily limit.
type QuotaObserver interface {
	QuotaRejected()
}

type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Coach        *chat.Coach
	Keyring      *llm.Keyring
	Quota        *usage.Quota
	// EnforceQuota refuses generations once the daily limit is reached.
	EnforceQuota bool
	Guard        *device.Guard
	Vault        vault.Store
	Archive      archive.Store
	DB           Pinger
	Observer     QuotaObserver
	Log          logger.Logger
	// TrustClientIDs accepts userId from request bodies and queries when no
	// authenticated identity is attached.
	TrustClientIDs bool
	AuthMode       string
}

// Handler serves the JSON, SSE and websocket API.
type Handler struct {
	Deps
	now func() time.Time
	ws  wsTimings
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	return &Handler{Deps: d, now: time.Now, ws: defaultWSTimings}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// caller resolves the user a request acts for: the authenticated identity
// first, then the client supplied id when that is trusted.
func (h *Handler) caller(r *http.Request, claimed string) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.UserID
	}
	if h.TrustClientIDs {
		return strings.TrimSpace(claimed)
	}
	return ""
}
