package thread

import (
	"regexp"
	"strings"
)

const (
	headerScanLimit = 10
	headerMinFields = 2
)

var (
	fromHeader    = regexp.MustCompile(`(?i)^from:\s*(.*)$`)
	toHeader      = regexp.MustCompile(`(?i)^to:\s*(.*)$`)
	subjectHeader = regexp.MustCompile(`(?i)^subject:\s*(.*)$`)
	dateHeader    = regexp.MustCompile(`(?i)^(?:sent|date):\s*(.*)$`)
	headerShaped  = regexp.MustCompile(`^[A-Za-z][\w-]*:`)
)

// HeaderBlock is the result of ParseHeaderBlock. Consumed is the number of leading lines
// that belong to the header block; zero means the segment is all body.
type HeaderBlock struct {
	From     string
	To       string
	Subject  string
	Date     string
	Consumed int
}

// Found counts the non-empty fields.
func (h HeaderBlock) Found() int {
	n := 0
	for _, v := range []string{h.From, h.To, h.Subject, h.Date} {
		if v != "" {
			n++
		}
	}
	return n
}

// ParseHeaderBlock looks for a From/To/Subject/Sent-or-Date block in the first lines of a
// segment. Scanning stops at the first blank line, or at the first line that is not shaped
// like a header once a field has been seen. A block with fewer than two fields is rejected
// and reported as an empty HeaderBlock.
func ParseHeaderBlock(lines []string) HeaderBlock {
	var block HeaderBlock
	scanned := 0
	for _, raw := range lines {
		if scanned == headerScanLimit {
			break
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			break
		}
		if block.Found() > 0 && !headerShaped.MatchString(line) {
			break
		}
		scanned++

		switch {
		case fromHeader.MatchString(line):
			setOnce(&block.From, fromHeader.FindStringSubmatch(line)[1])
		case toHeader.MatchString(line):
			setOnce(&block.To, toHeader.FindStringSubmatch(line)[1])
		case subjectHeader.MatchString(line):
			setOnce(&block.Subject, subjectHeader.FindStringSubmatch(line)[1])
		case dateHeader.MatchString(line):
			setOnce(&block.Date, dateHeader.FindStringSubmatch(line)[1])
		}
	}

	if block.Found() < headerMinFields {
		return HeaderBlock{}
	}
	block.Consumed = scanned
	return block
}

func setOnce(field *string, value string) {
	if *field == "" {
		*field = strings.TrimSpace(value)
	}
}
