package handler

import (
	"context"
	"net/http"

	"ascend/internal/gateway/repository/usage"
)

type userRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) GetDailyUsage(w http.ResponseWriter, r *http.Request) {
	h.usage(w, r, h.Quota.Check)
}

func (h *Handler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	h.usage(w, r, h.Quota.Consume)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (usage.Usage, error)) {
	var in userRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	userID := h.caller(r, in.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID required")
		return
	}
	u, err := op(r.Context(), userID)
	if err != nil {
		h.Log.Error("usage lookup failed", map[string]any{"error": err})
		writeError(w, http.StatusInternalServerError, "Failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
