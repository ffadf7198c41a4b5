package handler

import (
	"net/http"
	"strings"

	"ascend/internal/gateway/repository/device"
)

type deviceRequest struct {
	DeviceFingerprint string `json:"deviceFingerprint"`
	UserID            string `json:"userId"`
}

func (h *Handler) CheckSpam(w http.ResponseWriter, r *http.Request) {
	var in deviceRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.DeviceFingerprint) == "" {
		writeError(w, http.StatusBadRequest, "Device fingerprint required")
		return
	}
	if h.Guard == nil {
		writeJSON(w, http.StatusOK, device.Verdict{})
		return
	}
	v, err := h.Guard.Check(r.Context(), in.DeviceFingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Device fingerprint required")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var in deviceRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	userID := h.caller(r, in.UserID)
	if strings.TrimSpace(in.DeviceFingerprint) == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "Device fingerprint and user ID required")
		return
	}
	if h.Guard != nil {
		if _, err := h.Guard.Register(r.Context(), in.DeviceFingerprint, userID); err != nil {
			h.Log.Error("device registration failed", map[string]any{"error": err})
			writeError(w, http.StatusInternalServerError, "Failed to register device")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Device registered"})
}
