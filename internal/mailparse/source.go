package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
)

var ErrUnsupported = errors.New("unsupported file type")

const maxFileNameRunes = 140

var (
	unsafeFileRunes = regexp.MustCompile(`[^\w.\-()]+`)
	underscoreRun   = regexp.MustCompile(`_+`)
)

// Source is one RFC 822 message ready for Decode.
type Source struct {
	Name string
	Raw  []byte
}

// Sources expands an uploaded file into its messages. Plain message files yield one source and
// mbox archives one per message.
func Sources(name string, raw []byte) ([]Source, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml", ".txt":
		return []Source{{Name: name, Raw: raw}}, nil
	case ".mbox":
		return SplitMbox(name, raw)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
}

// SplitMbox reads every message of an mbox archive. Messages are named name#N, counting from 1.
func SplitMbox(name string, raw []byte) ([]Source, error) {
	reader := mboxlib.NewReader(bytes.NewReader(raw))
	var sources []Source
	for idx := 1; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sources, nil
			}
			return sources, fmt.Errorf("mbox %s message %d: %w", name, idx, err)
		}
		data, err := io.ReadAll(msgReader)
		if err != nil {
			return sources, fmt.Errorf("mbox %s message %d read: %w", name, idx, err)
		}
		sources = append(sources, Source{Name: fmt.Sprintf("%s#%d", name, idx), Raw: data})
	}
}

// SafeFileName replaces anything outside word characters, dots, dashes and parentheses with an
// underscore and caps the length.
func SafeFileName(name string) string {
	name = unsafeFileRunes.ReplaceAllString(name, "_")
	name = underscoreRun.ReplaceAllString(name, "_")
	if runes := []rune(name); len(runes) > maxFileNameRunes {
		name = string(runes[:maxFileNameRunes])
	}
	return name
}
