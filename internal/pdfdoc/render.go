package pdfdoc

import (
	"bytes"

	"github.io/infrasutra/emlconvert/internal/thread"
)

// Render lays out records as an A4 PDF and returns the document bytes.
func Render(records []thread.Record, opts Options) ([]byte, error) {
	surface := NewPDFSurface(opts.Title, opts.GeneratedAt)
	NewLayout(surface, opts).DrawDocument(records)

	var buf bytes.Buffer
	if err := surface.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
