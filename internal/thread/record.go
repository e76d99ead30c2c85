// Package thread splits the decoded plain-text body of a single message into the
// individual messages of its reply/forward chain.
//
// The pipeline is Normalize -> Segment -> ParseHeaderBlock -> Assemble. Every stage is
// pure: it takes values, returns new values and never fails on text input. Ambiguous
// structure degrades to fewer, more complete records instead of an error.
package thread

import "strings"

// Placeholder replaces a body that is empty after quote stripping.
const Placeholder = "(No body text)"

// Fields holds the four header values a message carries through the pipeline.
type Fields struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// RawMessage is one decoded upload. Body is the plain-text body as decoded, not normalized.
type RawMessage struct {
	SourceName string
	Top        Fields
	Body       string
}

// Record is a reconstructed message of a thread, the unit every exporter consumes.
type Record struct {
	FileName string `json:"file_name"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Body     string `json:"body_text"`
}

// Resolve returns the first source that is not blank, trimmed. Precedence is argument order.
func Resolve(sources ...string) string {
	for _, source := range sources {
		if trimmed := strings.TrimSpace(source); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveFields(parsed HeaderBlock, fallback Fields) Fields {
	return Fields{
		From:    Resolve(parsed.From, fallback.From),
		To:      Resolve(parsed.To, fallback.To),
		Subject: Resolve(parsed.Subject, fallback.Subject),
		Date:    Resolve(parsed.Date, fallback.Date),
	}
}
