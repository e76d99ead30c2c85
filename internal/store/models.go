package store

import (
	"database/sql"
	"time"
)

// ErrNotFound is returned when a conversion does not exist or belongs to another owner.
var ErrNotFound = sql.ErrNoRows

type User struct {
	Email     string
	CreatedAt time.Time
	LastLogin time.Time
}

type Conversion struct {
	ID          string
	Owner       string
	DisplayName string
	SourceCount int
	RecordCount int
	Records     []byte
	CreatedAt   time.Time
	Outputs     []Output
	Sources     []SourceFile
}

// Output is one generated export. Data is only loaded by GetOutput.
type Output struct {
	ConversionID string
	Format       string
	ContentType  string
	Data         []byte
	Size         int64
}

// SourceFile is an uploaded file kept alongside its conversion.
type SourceFile struct {
	ConversionID string
	FileName     string
	Raw          []byte
	Size         int64
}

type ConversionSummary struct {
	ID          string
	DisplayName string
	SourceCount int
	RecordCount int
	Formats     []string
	CreatedAt   time.Time
}
