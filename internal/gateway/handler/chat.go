package handler

import (
	"errors"
	"net/http"
	"strings"

	"ascend/internal/chat"
	"ascend/internal/llm"
)

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

type chatRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []chatTurn `json:"conversationHistory"`
}

func (t chatTurn) toTurn() llm.Turn {
	text := t.Content
	if strings.TrimSpace(text) == "" {
		text = t.Text
	}
	role := llm.RoleUser
	switch strings.ToLower(strings.TrimSpace(t.Role)) {
	case "assistant", "model", "ai", "bot", "coach":
		role = llm.RoleModel
	}
	return llm.Turn{Role: role, Text: text}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	history := make([]llm.Turn, 0, len(in.ConversationHistory))
	for _, t := range in.ConversationHistory {
		history = append(history, t.toTurn())
	}
	reply, err := h.Coach.Reply(r.Context(), in.Message, history)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "Chat is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
