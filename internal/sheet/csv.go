package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.io/infrasutra/emlconvert/internal/thread"
)

// CSVHeader matches the column names of the original CSV export.
var CSVHeader = []string{"file_name", "from", "to", "subject", "date", "body_text"}

// BuildCSV writes records as RFC 4180 CSV with a header row.
func BuildCSV(records []thread.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.FileName, r.From, r.To, r.Subject, r.Date, r.Body}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
