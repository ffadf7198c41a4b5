package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ascend/internal/blueprint"
	"ascend/internal/gateway/repository/usage"
	"ascend/internal/orchestrator"
)

// admit validates req and reserves one generation from the daily quota.
// It returns the HTTP status and message to reject with, or 0. A nil
// reservation means nothing was charged.
func (h *Handler) admit(ctx context.Context, req *blueprint.GenerationRequest) (*usage.Reservation, int, string) {
	if err := req.Validate(); err != nil {
		return nil, http.StatusBadRequest, "Goal is required"
	}
	if !h.EnforceQuota || h.Quota == nil || req.CallerID == "" {
		return nil, 0, ""
	}
	res, err := h.Quota.Reserve(ctx, req.CallerID)
	switch {
	case errors.Is(err, usage.ErrQuotaExceeded):
		if h.Observer != nil {
			h.Observer.QuotaRejected()
		}
		return nil, http.StatusTooManyRequests, "Daily generation limit reached"
	case err != nil:
		// fail open
		h.Log.Warn("quota check failed", map[string]any{"error": err})
		return nil, 0, ""
	}
	return &res, 0, ""
}

// settle keeps the reservation when the generation produced a blueprint and
// refunds it otherwise. Without a reservation a complete generation is still
// counted.
func (h *Handler) settle(ctx context.Context, req blueprint.GenerationRequest, rsv *usage.Reservation, res orchestrator.Result, genErr error) {
	ctx = context.WithoutCancel(ctx)
	complete := genErr == nil && res.Terminal == blueprint.EventComplete
	if rsv != nil {
		if complete {
			return
		}
		if _, err := h.Quota.Release(ctx, *rsv); err != nil {
			h.Log.Warn("usage refund failed", map[string]any{"error": err})
		}
		return
	}
	if h.Quota == nil || req.CallerID == "" || !complete {
		return
	}
	if _, err := h.Quota.Consume(ctx, req.CallerID); err != nil {
		h.Log.Warn("usage increment failed", map[string]any{"error": err})
	}
}

// Generate streams a blueprint as server-sent events.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req blueprint.GenerationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.CallerID = h.caller(r, req.CallerID)
	rsv, status, msg := h.admit(r.Context(), &req)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	emit := func(ev blueprint.StreamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	res, err := h.Orchestrator.Generate(r.Context(), req, emit)
	h.settle(r.Context(), req, rsv, res, err)
	if err != nil {
		h.Log.Warn("generation aborted", map[string]any{"error": err, "goal_len": len(req.Goal)})
	}
}
