package extraction

import (
	"regexp"
	"strings"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	runsOfBlanks   = regexp.MustCompile(`[ \t]+`)
	runsOfNewlines = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: control characters are dropped (keeping
// newlines and tabs), line endings become \n, runs of spaces collapse to one,
// and runs of blank lines collapse to a single blank line.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = runsOfBlanks.ReplaceAllString(text, " ")
	text = runsOfNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
