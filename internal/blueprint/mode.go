package blueprint

import "strings"

// Mode selects the emphasis of the generated strategy.
type Mode string

const (
	ModeStandard    Mode = "Standard"
	ModeDetailed    Mode = "Detailed"
	ModeRapid       Mode = "Rapid"
	ModeMarketIntel Mode = "Market Intel"
)

// Modes lists every supported mode in display order.
func Modes() []Mode {
	return []Mode{ModeStandard, ModeDetailed, ModeRapid, ModeMarketIntel}
}

// ParseMode maps free-form input to a Mode. Unknown values, including the
// empty string, fall back to ModeStandard.
func ParseMode(raw string) Mode {
	key := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch key {
	case "detailed":
		return ModeDetailed
	case "rapid", "speed":
		return ModeRapid
	case "marketintel", "market", "marketintelligence":
		return ModeMarketIntel
	default:
		return ModeStandard
	}
}

func (m Mode) String() string { return string(m) }
