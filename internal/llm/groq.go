package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	ProviderGroq    = "groq"
	groqDefaultBase = "https://api.groq.com/openai/v1"
)

// GroqClient calls Groq's OpenAI-compatible chat completions API.
type GroqClient struct {
	cli   *openai.Client
	model string
	label string
}

// NewGroqClient binds one API key to one model. baseURL may be empty.
func NewGroqClient(baseURL string) Factory {
	if baseURL == "" {
		baseURL = groqDefaultBase
	}
	return func(_ context.Context, c Candidate) (Client, error) {
		if c.Credential == "" {
			return nil, Permanent(errors.New("groq: missing api key"))
		}
		cfg := openai.DefaultConfig(c.Credential)
		cfg.BaseURL = baseURL
		return &GroqClient{cli: openai.NewClientWithConfig(cfg), model: c.Model, label: c.Label}, nil
	}
}

func (g *GroqClient) Name() string {
	if g.label != "" {
		return g.label
	}
	return "Groq:" + g.model
}
func (g *GroqClient) Close() error  { return nil }
func (g *GroqClient) Streams() bool { return true }

func (g *GroqClient) request(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	out := openai.ChatCompletionRequest{Model: g.model, Messages: msgs}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func (g *GroqClient) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.cli.CreateChatCompletion(ctx, g.request(req))
	if err != nil {
		return "", groqError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *GroqClient) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	r := g.request(req)
	r.Stream = true
	stream, err := g.cli.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return "", groqError(err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.String(), groqError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return b.String(), err
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func groqError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(ProviderGroq, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classify(ProviderGroq, reqErr.HTTPStatusCode, err)
	}
	return err
}
