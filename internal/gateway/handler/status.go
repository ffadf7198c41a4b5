package handler

import (
	"context"
	"net/http"
	"time"

	"ascend/internal/blueprint"
	"ascend/internal/llm"
)

type statusConfiguration struct {
	AuthMode             string               `json:"authMode"`
	SupabaseInitialized  bool                 `json:"supabaseInitialized"`
	GeminiKeysConfigured int                  `json:"geminiKeysConfigured"`
	Providers            []llm.ProviderStatus `json:"providers"`
	Interpreter          string               `json:"interpreter"`
}

type statusFeatures struct {
	DeviceSpamDetection bool `json:"deviceSpamDetection"`
	DailyUsageTracking  bool `json:"dailyUsageTracking"`
	DailyLimit          int  `json:"dailyLimit"`
}

type statusDatabase struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Server        string              `json:"server"`
	Timestamp     time.Time           `json:"timestamp"`
	Configuration statusConfiguration `json:"configuration"`
	Features      statusFeatures      `json:"features"`
	Database      statusDatabase      `json:"database"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	out := statusResponse{
		Server:    "online",
		Timestamp: h.now().UTC(),
		Configuration: statusConfiguration{
			AuthMode:            h.AuthMode,
			SupabaseInitialized: h.AuthMode == "supabase",
		},
		Features: statusFeatures{
			DeviceSpamDetection: h.Guard != nil,
			DailyUsageTracking:  h.EnforceQuota && h.Quota != nil,
		},
	}
	if h.Keyring != nil {
		out.Configuration.Providers = h.Keyring.Status()
		for _, p := range out.Configuration.Providers {
			if p.Name == llm.ProviderGemini {
				out.Configuration.GeminiKeysConfigured = p.Keys
			}
		}
	}
	if h.Orchestrator != nil {
		out.Configuration.Interpreter = h.Orchestrator.Interpreter().Name()
	}
	if h.Quota != nil {
		out.Features.DailyLimit = h.Quota.Limit()
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			out.Database.Error = err.Error()
		} else {
			out.Database.Connected = true
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) Modes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modes": blueprint.Modes()})
}
