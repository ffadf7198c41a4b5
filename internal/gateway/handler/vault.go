package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ascend/internal/blueprint"
	"ascend/internal/gateway/repository/vault"
)

const msgUnauthorized = "Unauthorized: User ID required"

type saveRequest struct {
	UserID    string              `json:"userId"`
	Goal      string              `json:"goal"`
	Mode      string              `json:"mode"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Pinned    bool                `json:"isPinned"`
}

type pinRequest struct {
	Pinned bool `json:"isPinned"`
}

func (h *Handler) vaultUser(r *http.Request) string {
	return h.caller(r, r.URL.Query().Get("userId"))
}

func (h *Handler) vaultError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "Blueprint not found or access denied")
	case errors.Is(err, vault.ErrUserRequired):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	default:
		h.Log.Error("vault "+op+" failed", map[string]any{"error": err})
		writeError(w, http.StatusInternalServerError, "Failed to "+op+" blueprint")
	}
}

func (h *Handler) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	userID := h.vaultUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	list, err := h.Vault.List(r.Context(), userID)
	if err != nil {
		h.vaultError(w, err, "list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blueprints": list})
}

func (h *Handler) SaveBlueprint(w http.ResponseWriter, r *http.Request) {
	var in saveRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	userID := h.caller(r, in.UserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	if strings.TrimSpace(in.Blueprint.GoalTitle) == "" {
		writeError(w, http.StatusBadRequest, "Blueprint is required")
		return
	}
	saved, err := h.Vault.Save(r.Context(), vault.SavedBlueprint{
		UserID:    userID,
		Goal:      strings.TrimSpace(in.Goal),
		Mode:      blueprint.ParseMode(in.Mode),
		Blueprint: in.Blueprint,
		Pinned:    in.Pinned,
	})
	if err != nil {
		h.vaultError(w, err, "save")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) GetBlueprint(w http.ResponseWriter, r *http.Request) {
	userID := h.vaultUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	bp, err := h.Vault.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.vaultError(w, err, "load")
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

func (h *Handler) DeleteBlueprint(w http.ResponseWriter, r *http.Request) {
	userID := h.vaultUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	if err := h.Vault.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.vaultError(w, err, "delete")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Blueprint deleted successfully"})
}

func (h *Handler) PinBlueprint(w http.ResponseWriter, r *http.Request) {
	userID := h.vaultUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	var in pinRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.Vault.SetPinned(r.Context(), userID, mux.Vars(r)["id"], in.Pinned); err != nil {
		h.vaultError(w, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "isPinned": in.Pinned})
}

// ExportBlueprint stores the blueprint document in the archive and returns
// a download link, or the document itself when the archive cannot link.
func (h *Handler) ExportBlueprint(w http.ResponseWriter, r *http.Request) {
	userID := h.vaultUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	bp, err := h.Vault.Get(r.Context(), userID, id)
	if err != nil {
		h.vaultError(w, err, "load")
		return
	}
	doc, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		h.vaultError(w, err, "export")
		return
	}
	if h.Archive == nil {
		writeDocument(w, id, doc)
		return
	}
	if err := h.Archive.Put(r.Context(), userID, id, doc); err != nil {
		h.vaultError(w, err, "export")
		return
	}
	url, err := h.Archive.URL(r.Context(), userID, id)
	if err != nil {
		h.vaultError(w, err, "export")
		return
	}
	if url == "" {
		writeDocument(w, id, doc)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresIn": 3600})
}

func writeDocument(w http.ResponseWriter, id string, doc []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="blueprint-`+id+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
