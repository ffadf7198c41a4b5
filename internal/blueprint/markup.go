package blueprint

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reHeading  = regexp.MustCompile(`##+[ \t]*`)
	reBacktick = regexp.MustCompile("`+")
	reLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// StripMarkup removes the markdown decoration models like to add: bold and
// italic markers, heading hashes, code spans, and link syntax (keeping the
// link text). A '*' followed by whitespace is a list bullet and is kept.
func StripMarkup(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = stripEmphasis(text)
	text = reHeading.ReplaceAllString(text, "")
	text = reBacktick.ReplaceAllString(text, "")
	text = reLink.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func stripEmphasis(text string) string {
	if !strings.Contains(text, "*") {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		if r == '*' && (i+1 >= len(runes) || !unicode.IsSpace(runes[i+1])) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
