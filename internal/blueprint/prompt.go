package blueprint

import (
	"fmt"
	"strings"
)

type modeProfile struct {
	persona     string
	instruction string
}

var modeProfiles = map[Mode]modeProfile{
	ModeStandard: {
		persona:     "a senior strategy consultant",
		instruction: "Create a balanced, actionable strategy covering both growth and execution.",
	},
	ModeDetailed: {
		persona:     "a meticulous program architect",
		instruction: "Create an extremely detailed, granular strategy with specific sub-tasks and deep market analysis.",
	},
	ModeRapid: {
		persona:     "a startup operator who ships fast",
		instruction: "Create a lean, rapid-execution strategy focused on immediate wins and speed to market.",
	},
	ModeMarketIntel: {
		persona:     "a market intelligence analyst",
		instruction: "Focus heavily on competitive analysis, market trends, and positioning.",
	},
}

func profileFor(m Mode) modeProfile {
	if p, ok := modeProfiles[m]; ok {
		return p
	}
	return modeProfiles[ModeStandard]
}

// BuildTextPrompt asks for plain text in the exact shape Parse understands.
// Every header named here has a matching trigger in the parser.
func BuildTextPrompt(goal string, mode Mode) string {
	p := profileFor(mode)
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Generate a high-impact success blueprint for the goal: %q.\n", p.persona, goal)
	fmt.Fprintf(&b, "Mode: %s. %s\n\n", mode, p.instruction)
	b.WriteString("Respond in plain text only. Do not use markdown, asterisks, hashes or code fences.\n")
	b.WriteString("Follow this structure exactly, one item per line:\n\n")
	b.WriteString("Official Success Roadmap\n")
	b.WriteString("<A short, punchy title for the strategy>\n")
	b.WriteString("\"<An inspiring one-sentence vision statement in double quotes>\"\n\n")
	b.WriteString("Core Pillars\n")
	b.WriteString("1. <first pillar>\n2. <second pillar>\n3. <third pillar>\n\n")
	b.WriteString("Execution Sequence\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "Phase %d: <phase title>\nTimeline: <time range>\n<two or three sentences describing the phase>\n\n", i)
	}
	b.WriteString("Market Intelligence\n")
	b.WriteString("- <insight title>: <one sentence about a competitor, trend or gap>\n")
	b.WriteString("- <insight title>: <one sentence>\n")
	b.WriteString("- <insight title>: <one sentence>\n")
	return b.String()
}

// BuildSchemaPrompt asks for a single JSON document matching Schema.
func BuildSchemaPrompt(goal string, mode Mode) string {
	p := profileFor(mode)
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Act as a world-class strategic consultant and generate a high-impact success blueprint for the goal: %q.\n", p.persona, goal)
	fmt.Fprintf(&b, "Mode: %s. %s\n\n", mode, p.instruction)
	b.WriteString("Return ONLY a JSON object with these fields:\n")
	b.WriteString("- goalTitle: a short, punchy title\n")
	b.WriteString("- visionStatement: an inspiring one-sentence vision\n")
	b.WriteString("- coreFocus: exactly 3 core pillars as strings\n")
	b.WriteString("- strategyRoadmap: exactly 3 phases, each with title, description and timeline\n")
	b.WriteString("- marketAnalysis: 3 insights, each with title and description\n")
	b.WriteString("Do not wrap the JSON in code fences.\n")
	return b.String()
}
