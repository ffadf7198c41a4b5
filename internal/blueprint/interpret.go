package blueprint

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ResponseStyle tells the LLM layer what shape of output to request.
type ResponseStyle int

const (
	StyleText ResponseStyle = iota
	StyleJSON
)

// ResponseInterpreter turns accumulated upstream text into a Blueprint. The
// orchestrator owns one per request.
type ResponseInterpreter interface {
	Name() string
	Style() ResponseStyle
	Prompt(goal string, mode Mode) string
	// Prepare normalises accumulated text before Interpret sees it.
	Prepare(raw string) string
	// Interpret returns false when the text cannot yield a blueprint; the
	// caller then ends the stream with a done event instead of complete.
	Interpret(text, goal string) (Blueprint, bool)
}

// NewInterpreter maps a configuration name to an interpreter.
func NewInterpreter(name string) ResponseInterpreter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "schema", "schema-first", "json":
		return SchemaFirst{}
	default:
		return HeuristicText{}
	}
}

// HeuristicText requests plain text and recovers structure with Parse. It
// always succeeds.
type HeuristicText struct{}

func (HeuristicText) Name() string { return "heuristic" }
func (HeuristicText) Style() ResponseStyle { return StyleText }
func (HeuristicText) Prompt(goal string, mode Mode) string { return BuildTextPrompt(goal, mode) }
func (HeuristicText) Prepare(raw string) string { return StripMarkup(raw) }

func (HeuristicText) Interpret(text, goal string) (Blueprint, bool) {
	return Parse(text, goal), true
}

// SchemaFirst requests JSON constrained by Schema and validates it before
// decoding.
type SchemaFirst struct{}

func (SchemaFirst) Name() string { return "schema" }
func (SchemaFirst) Style() ResponseStyle { return StyleJSON }
func (SchemaFirst) Prompt(goal string, mode Mode) string { return BuildSchemaPrompt(goal, mode) }
func (SchemaFirst) Prepare(raw string) string { return trimFences(raw) }

func (SchemaFirst) Interpret(text, goal string) (Blueprint, bool) {
	bp, err := DecodeJSON([]byte(text))
	if err != nil {
		return Blueprint{}, false
	}
	for i := range bp.StrategyRoadmap {
		if bp.StrategyRoadmap[i].Status == "" {
			bp.StrategyRoadmap[i].Status = StatusPending
		}
	}
	if bp.GoalTitle == "" {
		bp.GoalTitle = goal
	}
	return bp, true
}

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(Schema()))
	})
	return compiledSchema, schemaErr
}

// DecodeJSON validates data against Schema and decodes it.
func DecodeJSON(data []byte) (Blueprint, error) {
	schema, err := loadSchema()
	if err != nil {
		return Blueprint{}, err
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Blueprint{}, err
	}
	if !res.Valid() {
		return Blueprint{}, &SchemaError{Problems: describe(res.Errors())}
	}
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, err
	}
	return bp, nil
}

// SchemaError lists the validation failures of a JSON response.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "blueprint: response does not match schema: " + strings.Join(e.Problems, "; ")
}

func describe(errs []gojsonschema.ResultError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.String())
	}
	return out
}

func trimFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
