package blueprint

import (
	"fmt"
	"strings"
)

type fallbackPlan struct {
	pillars [3]string
	phases  [3]Milestone
	market  []MarketInsight
}

// Descriptions carry a single %s for the goal.
var fallbackPlans = map[Mode]fallbackPlan{
	ModeStandard: {
		pillars: [3]string{"Execution Discipline", "Strategic Clarity", "Momentum Building"},
		phases: [3]Milestone{
			{Title: "Phase 1: Foundation", Timeline: "0-1 month", Description: "Set up core assets and validate assumptions for %s."},
			{Title: "Phase 2: Build", Timeline: "1-3 months", Description: "Execute MVP and gather user feedback for %s."},
			{Title: "Phase 3: Scale", Timeline: "3-12 months", Description: "Optimize, scale, and secure product-market fit for %s."},
		},
		market: []MarketInsight{
			{Title: "Market Opportunity", Description: "There is a growing demand for solutions related to %s."},
		},
	},
	ModeDetailed: {
		pillars: [3]string{"Comprehensive Analysis & Planning", "Deep Technical Implementation", "Rigorous Quality Assurance"},
		phases: [3]Milestone{
			{Title: "Phase 1: Detailed Discovery", Timeline: "0-2 months", Description: "Conduct comprehensive market research, stakeholder interviews, and technical analysis for %s."},
			{Title: "Phase 2: Detailed Build", Timeline: "2-6 months", Description: "Execute with granular milestones, extensive documentation, and iterative refinement for %s."},
			{Title: "Phase 3: Optimization & Scale", Timeline: "6-18 months", Description: "Deep optimization cycles, advanced analytics, and strategic expansion for %s."},
		},
		market: []MarketInsight{
			{Title: "Market Analysis", Description: "Detailed market intelligence and deep opportunity analysis for %s."},
		},
	},
	ModeRapid: {
		pillars: [3]string{"Quick Wins & Early Revenue", "Lean Execution Discipline", "Fast Market Testing"},
		phases: [3]Milestone{
			{Title: "Phase 1: MVP Sprint", Timeline: "0-2 weeks", Description: "Ship minimum viable product immediately for %s."},
			{Title: "Phase 2: Fast Scaling", Timeline: "2-8 weeks", Description: "Scale rapidly based on early user feedback for %s."},
			{Title: "Phase 3: Dominate", Timeline: "2-3 months", Description: "Capture market share aggressively for %s."},
		},
		market: []MarketInsight{
			{Title: "Market Opportunity", Description: "First-mover advantage in the %s market segment."},
		},
	},
	ModeMarketIntel: {
		pillars: [3]string{"Competitor Benchmarking", "Market Trend Analysis", "Customer Insights & Positioning"},
		phases: [3]Milestone{
			{Title: "Phase 1: Market Intelligence", Timeline: "0-1 month", Description: "Deep competitive analysis and market trend research for %s."},
			{Title: "Phase 2: Strategic Positioning", Timeline: "1-3 months", Description: "Position product based on market gaps and customer needs for %s."},
			{Title: "Phase 3: Market Dominance", Timeline: "3-12 months", Description: "Execute market penetration strategy with competitive advantages for %s."},
		},
		market: []MarketInsight{
			{Title: "Market Gap", Description: "Identified market gap and opportunity for %s."},
			{Title: "Competitive Advantage", Description: "Unique positioning strategy for %s."},
		},
	},
}

// FallbackBlueprint is the structured form of the offline template for goal.
func FallbackBlueprint(goal string, mode Mode) Blueprint {
	goal = singleLine(goal)
	plan, ok := fallbackPlans[mode]
	if !ok {
		plan = fallbackPlans[ModeStandard]
	}
	bp := Blueprint{
		GoalTitle:       "Strategic Blueprint: " + goal,
		VisionStatement: fmt.Sprintf("A focused vision to achieve %s with measurable milestones.", goal),
		CoreFocus:       append([]string(nil), plan.pillars[:]...),
	}
	for _, ph := range plan.phases {
		ph.Description = fmt.Sprintf(ph.Description, goal)
		ph.Status = StatusPending
		bp.StrategyRoadmap = append(bp.StrategyRoadmap, ph)
	}
	for _, m := range plan.market {
		// parsed insights keep the whole line as their description
		m.Description = m.Title + ": " + fmt.Sprintf(m.Description, goal)
		bp.MarketAnalysis = append(bp.MarketAnalysis, m)
	}
	return bp
}

// Fallback renders the offline template as text in the same layout the
// generation prompt requests, so Parse recovers three pillars and three
// phases from it for any goal.
func Fallback(goal string, mode Mode) string {
	bp := FallbackBlueprint(goal, mode)
	var b strings.Builder
	b.WriteString("Official Success Roadmap\n")
	b.WriteString(bp.GoalTitle + "\n\n")
	b.WriteString("\"" + bp.VisionStatement + "\"\n\n")
	b.WriteString("Core Pillars\n")
	for i, p := range bp.CoreFocus {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	b.WriteString("\nExecution Sequence\n")
	for _, ph := range bp.StrategyRoadmap {
		b.WriteString(ph.Title + "\n")
		b.WriteString("Timeline: " + ph.Timeline + "\n")
		b.WriteString(ph.Description + "\n\n")
	}
	b.WriteString("Market Intelligence\n")
	for _, m := range bp.MarketAnalysis {
		b.WriteString("- " + m.Description + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
