package thread

import (
	"regexp"
	"strings"
)

var (
	nbspReplacer = strings.NewReplacer("\u00a0", " ", "\u2007", " ", "\u202f", " ")
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	lineEdge     = regexp.MustCompile(` ?\n ?`)
	blankRun     = regexp.MustCompile(`\n{3,}`)
)

// Normalize canonicalizes line endings and whitespace of a message body.
// It keeps at most one blank line between paragraphs and is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = nbspReplacer.Replace(text)
	text = spaceRun.ReplaceAllString(text, " ")
	text = lineEdge.ReplaceAllString(text, "\n")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
