package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ascend/internal/blueprint"
	"ascend/internal/llm"
	"ascend/internal/logger"
)

// ErrEmptyMessage is returned when the user sends nothing.
var ErrEmptyMessage = errors.New("chat: message is required")

// maxHistory bounds how many earlier turns are forwarded upstream.
const maxHistory = 20

const coachInstruction = `You are a friendly and enthusiastic strategic coach for Ascend AI.

Guidelines:
- Use a conversational, warm tone and relevant emojis.
- Do not use markdown formatting of any kind.
- Write in natural flowing paragraphs, not bullet points.
- Be encouraging and keep answers concise, usually two or three sentences.

Help the user with goal achievement strategies, execution planning and roadmaps,
market insights and opportunities, career growth and personal development.`

// Reply is what the coach sends back.
type Reply struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Coach answers free-form strategy questions using the same candidates as
// blueprint generation, falling back to a canned encouragement.
type Coach struct {
	keyring  *llm.Keyring
	registry *llm.Registry
	timeout  time.Duration
	log      logger.Logger
	now      func() time.Time
}

func NewCoach(keyring *llm.Keyring, registry *llm.Registry, timeout time.Duration, log logger.Logger) *Coach {
	if log == nil {
		log = logger.NewNop()
	}
	return &Coach{keyring: keyring, registry: registry, timeout: timeout, log: log, now: time.Now}
}

// Reply answers message given earlier turns, oldest first.
func (c *Coach) Reply(ctx context.Context, message string, history []llm.Turn) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	req := llm.Request{
		System:  coachInstruction,
		Prompt:  message,
		History: trimHistory(history),
	}

	var candidates []llm.Candidate
	if c.keyring != nil && c.registry != nil {
		candidates = c.keyring.Candidates(ctx, false)
	}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}
		text, err := c.try(ctx, cand, req)
		if err != nil {
			c.log.Warn("chat candidate failed", map[string]any{"candidate": cand.Label, "error": err})
			continue
		}
		return Reply{Type: "chat", Message: text, Timestamp: c.now().UTC()}, nil
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	return Reply{Type: "chat", Message: FallbackReply(message), Timestamp: c.now().UTC(), Fallback: true}, nil
}

func (c *Coach) try(ctx context.Context, cand llm.Candidate, req llm.Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	cli, err := c.registry.Open(ctx, cand)
	if err != nil {
		return "", err
	}
	defer func() { _ = cli.Close() }()
	text, err := cli.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = blueprint.StripMarkup(text)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// FallbackReply is the canned answer used when no model responds.
func FallbackReply(message string) string {
	return fmt.Sprintf("Great question about %q! 😊 Right now I'm having a small technical hiccup, "+
		"but here's what I'd recommend: Start by breaking your goal into smaller, manageable steps 🎯 "+
		"Focus on one action today that moves you forward 🚀 You've got this! "+
		"Try asking me again in a moment and I'll give you more detailed guidance! 💪", message)
}

func trimHistory(history []llm.Turn) []llm.Turn {
	out := make([]llm.Turn, 0, len(history))
	for _, t := range history {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			continue
		}
		if t.Role != llm.RoleModel {
			t.Role = llm.RoleUser
		}
		out = append(out, t)
	}
	if len(out) > maxHistory {
		out = out[len(out)-maxHistory:]
	}
	return out
}
