package thread

import (
	"regexp"
	"strings"
)

// DedupePrefix is how many leading runes of two adjacent segments must match for the
// second to be treated as a duplicate. Short distinct messages that share a long quoted
// preamble can collide; the value is a tuning knob, not a guarantee.
var DedupePrefix = 300

// fromLookahead is how many lines after a From: line are searched for a companion header.
const fromLookahead = 8

var (
	originalMessageLine = regexp.MustCompile(`(?i)^-+\s*original message\s*-+$`)
	fromLabelLine       = regexp.MustCompile(`(?i)^from:`)
	companionLabel      = regexp.MustCompile(`(?i)(to|subject|sent|date):`)
	onWroteLine         = regexp.MustCompile(`(?i)^on\s.+\swrote:$`)
	dividerLine         = regexp.MustCompile(`^(_{8,}|-{8,})$`)
)

// Segment is a contiguous run of normalized body lines between two thread boundaries.
type Segment struct {
	Start int
	Text  string
}

// Lines returns the segment text split on newlines.
func (s Segment) Lines() []string {
	return strings.Split(s.Text, "\n")
}

// BoundaryRule marks line i as the start of an embedded message.
type BoundaryRule struct {
	Name  string
	Match func(lines []string, i int) bool
}

// BoundaryRules is evaluated in order for every line; the first match wins.
var BoundaryRules = []BoundaryRule{
	{Name: "original-message", Match: isOriginalMessage},
	{Name: "quoted-from", Match: isQuotedFrom},
	{Name: "on-wrote", Match: isOnWrote},
	{Name: "divider", Match: isDivider},
}

func isOriginalMessage(lines []string, i int) bool {
	return originalMessageLine.MatchString(strings.TrimSpace(lines[i]))
}

// isQuotedFrom requires a companion header shortly after, which separates a quoted
// header block from a body sentence that happens to begin with "From:".
func isQuotedFrom(lines []string, i int) bool {
	if !fromLabelLine.MatchString(strings.TrimSpace(lines[i])) {
		return false
	}
	last := min(len(lines)-1, i+fromLookahead)
	for j := i + 1; j <= last; j++ {
		if companionLabel.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

func isOnWrote(lines []string, i int) bool {
	return onWroteLine.MatchString(strings.TrimSpace(lines[i]))
}

func isDivider(lines []string, i int) bool {
	return dividerLine.MatchString(strings.TrimSpace(lines[i]))
}

// MatchBoundary reports the name of the first rule matching line i, or "".
func MatchBoundary(lines []string, i int) string {
	for _, rule := range BoundaryRules {
		if rule.Match(lines, i) {
			return rule.Name
		}
	}
	return ""
}

// Boundaries returns the ascending line indexes where segments start. Line 0 is always one.
func Boundaries(lines []string) []int {
	indexes := []int{0}
	for i := 1; i < len(lines); i++ {
		if MatchBoundary(lines, i) != "" {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// Split cuts normalized text into ordered, non-empty, de-duplicated segments.
func Split(normalized string) []Segment {
	if strings.TrimSpace(normalized) == "" {
		return nil
	}
	lines := strings.Split(normalized, "\n")
	bounds := Boundaries(lines)

	var segments []Segment
	for n, start := range bounds {
		end := len(lines)
		if n+1 < len(bounds) {
			end = bounds[n+1]
		}
		text := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if text == "" {
			continue
		}
		if len(segments) > 0 && samePrefix(segments[len(segments)-1].Text, text, DedupePrefix) {
			continue
		}
		segments = append(segments, Segment{Start: start, Text: text})
	}
	return segments
}

func samePrefix(a, b string, n int) bool {
	return prefixRunes(a, n) == prefixRunes(b, n)
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
