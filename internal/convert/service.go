// Package convert runs uploads through decoding, thread extraction and the exporters, then
// records the result for the owner's history.
package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.io/infrasutra/emlconvert/internal/mailparse"
	"github.io/infrasutra/emlconvert/internal/pdfdoc"
	"github.io/infrasutra/emlconvert/internal/sheet"
	"github.io/infrasutra/emlconvert/internal/sse"
	"github.io/infrasutra/emlconvert/internal/store"
	"github.io/infrasutra/emlconvert/internal/thread"
)

var (
	ErrNoFiles    = errors.New("no files uploaded")
	ErrNoMessages = errors.New("no messages could be decoded")
)

type Upload struct {
	Name string
	Data []byte
}

type Request struct {
	Owner   string
	Uploads []Upload
	// Formats defaults to the service's configured formats when empty.
	Formats []Format
}

type Result struct {
	ID          string
	DisplayName string
	Records     []thread.Record
	Formats     []Format
	Outputs     map[Format][]byte
	Skipped     []string
	CreatedAt   time.Time
}

// Primary is the first requested export, the one returned to an uploading client.
func (r Result) Primary() (Format, []byte) {
	if len(r.Formats) == 0 {
		return "", nil
	}
	return r.Formats[0], r.Outputs[r.Formats[0]]
}

// Summary is the public shape of a conversion, used in events and API responses.
type Summary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Records   int      `json:"records"`
	Formats   []Format `json:"formats"`
	Size      string   `json:"size"`
	CreatedAt string   `json:"createdAt"`
}

func (r Result) Summary() Summary {
	var total uint64
	for _, data := range r.Outputs {
		total += uint64(len(data))
	}
	return Summary{
		ID:        r.ID,
		Name:      r.DisplayName,
		Records:   len(r.Records),
		Formats:   r.Formats,
		Size:      humanize.Bytes(total),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type Options struct {
	DefaultFormats []Format
	Document       pdfdoc.Options
}

type Service struct {
	store  *store.Store
	hub    *sse.Hub
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// NewService wires a conversion service. The store and hub may be nil when results are
// neither kept nor announced.
func NewService(store *store.Store, hub *sse.Hub, logger *slog.Logger, opts Options) *Service {
	if len(opts.DefaultFormats) == 0 {
		opts.DefaultFormats = []Format{FormatXLSX}
	}
	if opts.Document.BodySize == 0 {
		doc := pdfdoc.DefaultOptions()
		if opts.Document.Title != "" {
			doc.Title = opts.Document.Title
		}
		if opts.Document.Brand != "" {
			doc.Brand = opts.Document.Brand
		}
		opts.Document = doc
	}
	return &Service{store: store, hub: hub, logger: logger, opts: opts, now: time.Now}
}

func (s *Service) DefaultFormats() []Format {
	return s.opts.DefaultFormats
}

func (s *Service) Convert(ctx context.Context, req Request) (Result, error) {
	if len(req.Uploads) == 0 {
		return Result{}, ErrNoFiles
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = s.opts.DefaultFormats
	}
	started := s.now()

	var (
		records  []thread.Record
		sources  []store.SourceFile
		accepted []string
		skipped  []string
	)
	for _, upload := range req.Uploads {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		decoded, err := s.decode(upload)
		if err != nil {
			s.logger.Warn("skip upload", "file", upload.Name, "error", err)
			skipped = append(skipped, upload.Name)
			continue
		}
		records = append(records, decoded...)
		accepted = append(accepted, upload.Name)
		sources = append(sources, store.SourceFile{FileName: mailparse.SafeFileName(upload.Name), Raw: upload.Data})
	}
	if len(accepted) == 0 {
		return Result{}, ErrNoMessages
	}

	outputs, err := s.build(records, formats, started)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{
		ID:          uuid.NewString(),
		DisplayName: displayName(accepted),
		Records:     records,
		Formats:     formats,
		Outputs:     outputs,
		Skipped:     skipped,
		CreatedAt:   started,
	}

	if s.store != nil {
		if err := s.save(ctx, req.Owner, result, sources); err != nil {
			return Result{}, err
		}
	}
	summary := result.Summary()
	if s.hub != nil {
		s.hub.Publish(req.Owner, sse.Event{Type: sse.EventConversion, Data: summary})
	}
	s.logger.Info("conversion complete",
		"id", result.ID,
		"owner", req.Owner,
		"files", len(accepted),
		"skipped", len(skipped),
		"records", len(records),
		"formats", formats,
		"size", summary.Size,
		"duration", time.Since(started),
	)
	return result, nil
}

// decode returns the records of every message in one upload. An upload with no decodable
// message is an error.
func (s *Service) decode(upload Upload) ([]thread.Record, error) {
	messages, err := mailparse.Sources(upload.Name, upload.Data)
	if err != nil {
		return nil, err
	}
	var records []thread.Record
	decoded := 0
	for _, source := range messages {
		msg, err := mailparse.Decode(source.Name, source.Raw)
		if err != nil {
			s.logger.Debug("skip message", "source", source.Name, "error", err)
			continue
		}
		records = append(records, thread.Extract(msg)...)
		decoded++
	}
	if decoded == 0 {
		return nil, fmt.Errorf("%s: %w", upload.Name, ErrNoMessages)
	}
	return records, nil
}

// build renders every format concurrently. The first failure wins.
func (s *Service) build(records []thread.Record, formats []Format, generated time.Time) (map[Format][]byte, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	outputs := make(map[Format][]byte, len(formats))
	for _, format := range formats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := s.Render(format, records, generated)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("build %s: %w", format, err)
				}
				return
			}
			outputs[format] = data
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return outputs, nil
}

// Render produces one export of records.
func (s *Service) Render(format Format, records []thread.Record, generated time.Time) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return sheet.BuildXLSX(records)
	case FormatCSV:
		return sheet.BuildCSV(records)
	case FormatPDF:
		opts := s.opts.Document
		opts.GeneratedAt = generated
		return pdfdoc.Render(records, opts)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

func (s *Service) save(ctx context.Context, owner string, result Result, sources []store.SourceFile) error {
	encoded, err := json.Marshal(result.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	conversion := store.Conversion{
		ID:          result.ID,
		Owner:       owner,
		DisplayName: result.DisplayName,
		SourceCount: len(sources),
		RecordCount: len(result.Records),
		Records:     encoded,
		CreatedAt:   result.CreatedAt,
		Sources:     sources,
	}
	for _, format := range result.Formats {
		conversion.Outputs = append(conversion.Outputs, store.Output{
			Format:      string(format),
			ContentType: format.ContentType(),
			Data:        result.Outputs[format],
		})
	}
	if err := s.store.InsertConversion(ctx, conversion); err != nil {
		return fmt.Errorf("save conversion: %w", err)
	}
	return nil
}

func displayName(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	return fmt.Sprintf("%d files", len(names))
}
