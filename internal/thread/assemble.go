package thread

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const minBodyRunes = 10

var quoteMarker = regexp.MustCompile(`(?m)^(?:>+ ?)+`)

// StripQuotes removes leading ">" quote markers from every line.
func StripQuotes(text string) string {
	return quoteMarker.ReplaceAllString(text, "")
}

// Assemble turns segments into records. Fields missing from a segment's header block
// fall back to the parent message. Segments whose body is empty, shorter than ten
// characters or only divider lines are dropped; when nothing survives, the segments are
// joined back into a single record so non-empty input never yields zero records.
func Assemble(segments []Segment, fallback Fields) []Record {
	whole := make([]string, 0, len(segments))
	for _, segment := range segments {
		whole = append(whole, segment.Text)
	}
	return assemble(segments, fallback, strings.Join(whole, "\n\n"))
}

// assemble falls back to body, the unsegmented text, so segments dropped as duplicates
// are not lost from the single fallback record.
func assemble(segments []Segment, fallback Fields, body string) []Record {
	var records []Record
	for _, segment := range segments {
		lines := skipLeadIn(segment.Lines())
		block := ParseHeaderBlock(lines)
		text := Normalize(StripQuotes(strings.Join(lines[block.Consumed:], "\n")))
		if isNoise(text) {
			continue
		}
		records = append(records, newRecord(resolveFields(block, fallback), text))
	}
	if len(records) > 0 {
		return records
	}
	return []Record{newRecord(resolveFields(HeaderBlock{}, fallback), Normalize(StripQuotes(body)))}
}

// Extract runs the full pipeline for one decoded message and names the records after the
// source file. When a thread splits into several records each name gets a "[i/n]" suffix.
func Extract(msg RawMessage) []Record {
	normalized := Normalize(msg.Body)
	records := assemble(Split(normalized), msg.Top, normalized)
	for i := range records {
		records[i].FileName = msg.SourceName
		if len(records) > 1 {
			records[i].FileName = fmt.Sprintf("%s [%d/%d]", msg.SourceName, i+1, len(records))
		}
	}
	return records
}

func newRecord(fields Fields, body string) Record {
	if strings.TrimSpace(body) == "" {
		body = Placeholder
	}
	return Record{
		From:    fields.From,
		To:      fields.To,
		Subject: fields.Subject,
		Date:    fields.Date,
		Body:    body,
	}
}

// skipLeadIn drops the lines that introduce a quoted message rather than belong to it:
// "On ... wrote:", "Original Message" and divider runs.
func skipLeadIn(lines []string) []string {
	for len(lines) > 0 {
		line := strings.TrimSpace(lines[0])
		if line == "" || isMarker(line) {
			lines = lines[1:]
			continue
		}
		break
	}
	return lines
}

func isMarker(line string) bool {
	return onWroteLine.MatchString(line) || originalMessageLine.MatchString(line) || dividerLine.MatchString(line)
}

func isNoise(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < minBodyRunes {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !dividerLine.MatchString(line) && !originalMessageLine.MatchString(line) {
			return false
		}
	}
	return true
}
