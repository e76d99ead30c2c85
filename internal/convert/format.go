package convert

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
)

// AllFormats lists every export in the order "all" expands to.
var AllFormats = []Format{FormatXLSX, FormatPDF, FormatCSV}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// FileName is the download name of an export.
func (f Format) FileName() string {
	return "converted-emails." + string(f)
}

// ParseFormats reads a comma separated format list. "all" expands to every format and
// duplicates are dropped. An empty list returns nil.
func ParseFormats(value string) ([]Format, error) {
	return ParseFormatList(strings.Split(value, ","))
}

func ParseFormatList(values []string) ([]Format, error) {
	seen := map[Format]bool{}
	var formats []Format
	add := func(f Format) {
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	for _, value := range values {
		name := strings.ToLower(strings.TrimSpace(value))
		switch name {
		case "":
		case "all":
			for _, f := range AllFormats {
				add(f)
			}
		case string(FormatXLSX), string(FormatPDF), string(FormatCSV):
			add(Format(name))
		default:
			return nil, fmt.Errorf("%q: %w", value, ErrUnknownFormat)
		}
	}
	return formats, nil
}
