package blueprint

import (
	"errors"
	"strings"
)

// ErrEmptyGoal is returned when a generation request carries no goal text.
var ErrEmptyGoal = errors.New("blueprint: goal is required")

const StatusPending = "pending"

// Blueprint is the structured strategy record shown to the user and stored
// in the vault.
type Blueprint struct {
	GoalTitle       string          `json:"goalTitle"`
	VisionStatement string          `json:"visionStatement"`
	CoreFocus       []string        `json:"coreFocus"`
	StrategyRoadmap []Milestone     `json:"strategyRoadmap"`
	MarketAnalysis  []MarketInsight `json:"marketAnalysis"`
}

type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timeline    string `json:"timeline"`
	Status      string `json:"status"`
}

// MarketInsight.SourceURL stays empty: no live search backs the analysis.
type MarketInsight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl"`
}

// Complete reports whether every top-level field carries a value.
func (b Blueprint) Complete() bool {
	return strings.TrimSpace(b.GoalTitle) != "" &&
		strings.TrimSpace(b.VisionStatement) != "" &&
		len(b.CoreFocus) > 0 &&
		len(b.StrategyRoadmap) > 0 &&
		len(b.MarketAnalysis) > 0
}

// GenerationRequest is created per call and never persisted.
type GenerationRequest struct {
	Goal     string `json:"goal"`
	Mode     Mode   `json:"mode"`
	Priority bool   `json:"isPriority"`
	// CallerID is opaque to the generation core; only usage accounting reads it.
	CallerID string `json:"userId,omitempty"`
}

// Validate trims the goal and normalises the mode in place.
func (r *GenerationRequest) Validate() error {
	r.Goal = strings.TrimSpace(r.Goal)
	if r.Goal == "" {
		return ErrEmptyGoal
	}
	r.Mode = ParseMode(string(r.Mode))
	return nil
}
