package llm

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

const ProviderGemini = "gemini"

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
	label string
}

// NewGeminiClient binds one API key to one model.
func NewGeminiClient(ctx context.Context, c Candidate) (Client, error) {
	if c.Credential == "" {
		return nil, Permanent(errors.New("gemini: missing api key"))
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.Credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: c.Model, label: c.Label}, nil
}

func (g *GeminiClient) Name() string {
	if g.label != "" {
		return g.label
	}
	return "Gemini:" + g.model
}
func (g *GeminiClient) Close() error  { return nil }
func (g *GeminiClient) Streams() bool { return true }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, geminiContents(req), geminiConfig(req))
	if err != nil {
		return "", geminiError(err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiClient) GenerateStream(ctx context.Context, req Request, onChunk func(string) error) (string, error) {
	var b strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, geminiContents(req), geminiConfig(req)) {
		if err != nil {
			return b.String(), geminiError(err)
		}
		chunk := responseText(resp)
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

func geminiContents(req Request) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := string(genai.RoleUser)
		if t.Role == RoleModel {
			role = string(genai.RoleModel)
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
	}
	return append(out, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: req.Prompt}}})
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		if req.Schema != nil {
			cfg.ResponseSchema = GeminiSchema(req.Schema)
		}
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classify(ProviderGemini, apiErr.Code, err)
	}
	return err
}

// GeminiSchema converts a JSON Schema document into the subset genai
// understands: type, description, properties, items and required.
func GeminiSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := doc["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = GeminiSchema(sub)
			}
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = GeminiSchema(items)
	}
	switch req := doc["required"].(type) {
	case []string:
		s.Required = append([]string(nil), req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}
