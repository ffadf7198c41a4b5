package blueprint

// Schema is the JSON Schema a schema-first response must satisfy. Providers
// that accept a response schema receive the same document.
func Schema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goalTitle":       str("A short, punchy title for the strategy."),
			"visionStatement": str("An inspiring one-sentence vision."),
			"coreFocus": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
			"strategyRoadmap": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       str("Phase title."),
						"description": str("What happens in this phase."),
						"timeline":    str("Time range, e.g. 0-1 month."),
					},
					"required": []any{"title", "description", "timeline"},
				},
			},
			"marketAnalysis": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       str("Insight title."),
						"description": str("One sentence insight."),
					},
					"required": []any{"title", "description"},
				},
			},
		},
		"required": []any{"goalTitle", "visionStatement", "coreFocus", "strategyRoadmap", "marketAnalysis"},
	}
}
