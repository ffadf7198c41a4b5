package blueprint

import (
	"regexp"
	"strings"
)

const (
	untitledGoal   = "Untitled Goal"
	visionFallback = "AI-generated execution roadmap."
	visionMaxRunes = 200
	bannerLine     = "official success roadmap"
)

var (
	rePillarHeader = regexp.MustCompile(`(?i)^(?:\d+[.)]\s*)?(?:core\s+pillars?|(?:key\s+)?focus\s+areas?)\b`)
	rePillarItem   = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s*`)
	rePhaseLine    = regexp.MustCompile(`(?i)^(?:[-*•]\s*|\d+[.)]\s*)?(phase\s+\d+.*)$`)
	reMonthsLine   = regexp.MustCompile(`(?i)^months\b`)
	reSequence     = regexp.MustCompile(`(?i)^execution\s+sequence\b`)
	reMarketHeader = regexp.MustCompile(`(?i)^market\s+intelligence\b`)
	reTimeline     = regexp.MustCompile(`(?i)^timeline\s*[:\-–]?\s*(.+)$`)
	reVisionMarker = regexp.MustCompile(`Vision`)
	reVisionLabel  = regexp.MustCompile(`(?i)^.*?vision(?:\s+statement)?\s*[:\-–]?\s*`)
	reQuoted       = regexp.MustCompile(`["“]([^"”]+)["”]`)
	reInsightLine  = regexp.MustCompile(`^(?:[-*•]|\d+[.)]|[A-Z])`)
	reInsightMark  = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
	reTitleMark    = regexp.MustCompile(`^[#*\s]+`)
)

type section int

const (
	sectionNone section = iota
	sectionVision
	sectionPillars
	sectionPhases
	sectionMarket
)

// Parse turns free text shaped like the generation prompt's template into a
// Blueprint. It never fails: missing sections are filled with defaults so
// every top-level field is non-empty. goal is used when no title line is
// found.
func Parse(raw, goal string) Blueprint {
	text := strings.TrimSpace(raw)
	p := &parser{goal: strings.TrimSpace(goal)}
	for _, line := range strings.Split(text, "\n") {
		p.line(strings.TrimSpace(line))
	}
	p.closePhase()
	return p.finish(text)
}

type parser struct {
	goal string

	bp        Blueprint
	section   section
	sawTitle  bool
	sawVision bool
	sawHeader bool
	phase     *Milestone
}

func (p *parser) line(line string) {
	if line == "" {
		return
	}

	if !p.sawTitle {
		p.sawTitle = true
		if strings.EqualFold(line, bannerLine) {
			p.sawTitle = false
			return
		}
		if !reVisionMarker.MatchString(line) && !strings.Contains(strings.ToLower(line), "pillar") {
			p.bp.GoalTitle = cleanTitle(line)
			return
		}
	}

	switch {
	case rePhaseLine.MatchString(line) || reMonthsLine.MatchString(line):
		p.startPhase(line)
		return
	case rePillarHeader.MatchString(line):
		p.enter(sectionPillars)
		return
	case reSequence.MatchString(line):
		p.enter(sectionPhases)
		return
	case reMarketHeader.MatchString(line):
		p.enter(sectionMarket)
		return
	}

	if p.visionLine(line) {
		return
	}

	switch p.section {
	case sectionPillars:
		if rePillarItem.MatchString(line) {
			if item := strings.TrimSpace(rePillarItem.ReplaceAllString(line, "")); item != "" {
				p.bp.CoreFocus = append(p.bp.CoreFocus, item)
			}
		}
	case sectionPhases:
		p.phaseLine(line)
	case sectionMarket:
		p.insightLine(line)
	}
}

// visionLine consumes the vision statement: either a line carrying the
// "Vision" marker or, before any section header, a quoted line. A bare
// marker with nothing after it opens the section for exactly one more line.
func (p *parser) visionLine(line string) bool {
	if p.sawVision {
		return false
	}
	if p.section == sectionVision {
		p.setVision(line)
		p.section = sectionNone
		return true
	}
	if reVisionMarker.MatchString(line) {
		if m := reQuoted.FindStringSubmatch(line); m != nil {
			p.setVision(m[1])
			return true
		}
		rest := strings.TrimSpace(reVisionLabel.ReplaceAllString(line, ""))
		if rest == "" {
			p.closePhase()
			p.section = sectionVision
			return true
		}
		p.setVision(rest)
		return true
	}
	if !p.sawHeader {
		if m := reQuoted.FindStringSubmatch(line); m != nil {
			p.setVision(m[1])
			return true
		}
	}
	return false
}

func (p *parser) setVision(line string) {
	if m := reQuoted.FindStringSubmatch(line); m != nil {
		line = m[1]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	p.bp.VisionStatement = line
	p.sawVision = true
}

func (p *parser) enter(s section) {
	p.closePhase()
	p.section = s
	p.sawHeader = true
}

func (p *parser) startPhase(line string) {
	p.enter(sectionPhases)
	title := line
	if m := rePhaseLine.FindStringSubmatch(line); m != nil {
		title = m[1]
	}
	p.phase = &Milestone{Title: strings.TrimSpace(title), Status: StatusPending}
}

func (p *parser) phaseLine(line string) {
	if p.phase == nil {
		return
	}
	if m := reTimeline.FindStringSubmatch(line); m != nil {
		p.phase.Timeline = strings.TrimSpace(m[1])
		return
	}
	if p.phase.Description == "" {
		p.phase.Description = line
		return
	}
	p.phase.Description += " " + line
}

func (p *parser) closePhase() {
	if p.phase == nil {
		return
	}
	p.bp.StrategyRoadmap = append(p.bp.StrategyRoadmap, *p.phase)
	p.phase = nil
}

func (p *parser) insightLine(line string) {
	if !reInsightLine.MatchString(line) {
		return
	}
	insight := strings.TrimSpace(reInsightMark.ReplaceAllString(line, ""))
	if len([]rune(insight)) <= 5 {
		return
	}
	title := insight
	if i := strings.Index(insight, ":"); i > 0 {
		title = strings.TrimSpace(insight[:i])
	}
	p.bp.MarketAnalysis = append(p.bp.MarketAnalysis, MarketInsight{
		Title:       title,
		Description: insight,
	})
}

func (p *parser) finish(text string) Blueprint {
	bp := p.bp
	if bp.GoalTitle == "" {
		bp.GoalTitle = p.goal
	}
	if bp.GoalTitle == "" {
		bp.GoalTitle = untitledGoal
	}
	if bp.VisionStatement == "" {
		bp.VisionStatement = truncateRunes(text, visionMaxRunes)
	}
	if bp.VisionStatement == "" {
		bp.VisionStatement = visionFallback
	}
	if len(bp.CoreFocus) == 0 {
		bp.CoreFocus = defaultCoreFocus()
	}
	if len(bp.StrategyRoadmap) == 0 {
		desc := text
		if desc == "" {
			desc = visionFallback
		}
		bp.StrategyRoadmap = []Milestone{{
			Title:       defaultMilestoneTitle,
			Description: desc,
			Timeline:    "Ongoing",
			Status:      StatusPending,
		}}
	}
	if len(bp.MarketAnalysis) == 0 {
		bp.MarketAnalysis = []MarketInsight{{
			Title:       defaultInsightTitle,
			Description: defaultInsightDescription,
		}}
	}
	return bp
}

const (
	defaultMilestoneTitle     = "Strategic Implementation"
	defaultInsightTitle       = "Market Analysis"
	defaultInsightDescription = "Strategic market insights and opportunities identified."
)

func defaultCoreFocus() []string {
	return []string{"Execution Discipline", "Strategic Clarity", "Momentum Building"}
}

func cleanTitle(line string) string {
	title := strings.TrimSpace(reTitleMark.ReplaceAllString(line, ""))
	if title == "" {
		return line
	}
	return title
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
