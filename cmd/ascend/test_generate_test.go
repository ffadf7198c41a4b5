package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascend/internal/blueprint"
	"ascend/internal/llm"
	"ascend/internal/orchestrator"
)

func newOrchestrator(script llm.Script) *orchestrator.Orchestrator {
	kr := llm.NewKeyring([]llm.ProviderConfig{{Name: llm.ProviderFake, Keys: []string{"k"}, FastModel: "fast"}}, nil, nil)
	reg := llm.NewRegistry()
	reg.Register(llm.ProviderFake, llm.NewFakeProvider(script).Factory())
	return orchestrator.New(kr, reg, nil, orchestrator.Config{Stream: true})
}

func TestStreamBlueprintWritesText(t *testing.T) {
	o := newOrchestrator(llm.Script{Chunks: []string{"Plan\n", "\"Ship it\"\n"}})
	var out bytes.Buffer
	err := streamBlueprint(context.Background(), o, blueprint.GenerationRequest{Goal: "ship"}, &out, false)
	require.NoError(t, err)
	assert.Equal(t, "Plan\n\"Ship it\"\n\n", out.String())
}

func TestStreamBlueprintJSONUsesFallback(t *testing.T) {
	o := newOrchestrator(llm.Script{Err: errors.New("offline")})
	var out bytes.Buffer
	err := streamBlueprint(context.Background(), o, blueprint.GenerationRequest{Goal: "Run a 10k"}, &out, true)
	require.NoError(t, err)

	var bp blueprint.Blueprint
	require.NoError(t, json.Unmarshal(out.Bytes(), &bp))
	assert.Len(t, bp.StrategyRoadmap, 3)
	assert.NotEmpty(t, bp.GoalTitle)
}

func TestStreamBlueprintRejectsEmptyGoal(t *testing.T) {
	o := newOrchestrator(llm.Script{})
	err := streamBlueprint(context.Background(), o, blueprint.GenerationRequest{Goal: " "}, &bytes.Buffer{}, false)
	assert.ErrorIs(t, err, blueprint.ErrEmptyGoal)
}

func TestFallbackCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"fallback", "--goal", "Write a book", "--mode", "Rapid"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Write a book")
}
