package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            email TEXT PRIMARY KEY,
            created_at INTEGER NOT NULL,
            last_login INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS conversions (
            id TEXT PRIMARY KEY,
            owner_email TEXT NOT NULL,
            display_name TEXT NOT NULL,
            source_count INTEGER NOT NULL,
            record_count INTEGER NOT NULL,
            records BLOB,
            created_at_ms INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS outputs (
            conversion_id TEXT NOT NULL,
            format TEXT NOT NULL,
            content_type TEXT NOT NULL,
            data BLOB NOT NULL,
            size INTEGER NOT NULL,
            PRIMARY KEY(conversion_id, format),
            FOREIGN KEY(conversion_id) REFERENCES conversions(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS sources (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            conversion_id TEXT NOT NULL,
            file_name TEXT NOT NULL,
            raw BLOB NOT NULL,
            size INTEGER NOT NULL,
            FOREIGN KEY(conversion_id) REFERENCES conversions(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_owner_created ON conversions(owner_email, created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_sources_conversion ON sources(conversion_id);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, email string, now time.Time) error {
	query := `INSERT INTO users (email, created_at, last_login)
        VALUES (?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET last_login = excluded.last_login;`
	_, err := s.db.ExecContext(ctx, query, email, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// InsertConversion stores a conversion with its outputs and sources in one transaction.
func (s *Store) InsertConversion(ctx context.Context, conversion Conversion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO conversions
        (id, owner_email, display_name, source_count, record_count, records, created_at_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?);`,
		conversion.ID,
		conversion.Owner,
		conversion.DisplayName,
		conversion.SourceCount,
		conversion.RecordCount,
		conversion.Records,
		conversion.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}

	for _, output := range conversion.Outputs {
		_, err = tx.ExecContext(ctx, `INSERT INTO outputs (conversion_id, format, content_type, data, size)
            VALUES (?, ?, ?, ?, ?);`,
			conversion.ID,
			output.Format,
			output.ContentType,
			output.Data,
			int64(len(output.Data)),
		)
		if err != nil {
			return fmt.Errorf("insert output: %w", err)
		}
	}

	for _, source := range conversion.Sources {
		_, err = tx.ExecContext(ctx, `INSERT INTO sources (conversion_id, file_name, raw, size)
            VALUES (?, ?, ?, ?);`,
			conversion.ID,
			source.FileName,
			source.Raw,
			int64(len(source.Raw)),
		)
		if err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversion: %w", err)
	}
	return nil
}

// ListConversions returns one page of an owner's history and the owner's total count.
func (s *Store) ListConversions(ctx context.Context, owner, sort string, offset, limit int32) ([]ConversionSummary, int32, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM conversions WHERE owner_email = ?;`, owner).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("count conversions: %w", err)
	}
	if totalCount > int64(^uint32(0)>>1) {
		totalCount = int64(^uint32(0) >> 1)
	}

	// rowid breaks ties in insertion order.
	orderBy := " ORDER BY c.created_at_ms DESC, c.rowid DESC"
	switch sort {
	case "oldest", "asc":
		orderBy = " ORDER BY c.created_at_ms ASC, c.rowid ASC"
	}

	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.display_name, c.source_count, c.record_count, c.created_at_ms,
        COALESCE((SELECT GROUP_CONCAT(o.format) FROM outputs o WHERE o.conversion_id = c.id), '')
        FROM conversions c
        WHERE c.owner_email = ?`+orderBy+" LIMIT ? OFFSET ?", owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var conversions []ConversionSummary
	for rows.Next() {
		var summary ConversionSummary
		var createdAt int64
		var formats string
		if err := rows.Scan(
			&summary.ID,
			&summary.DisplayName,
			&summary.SourceCount,
			&summary.RecordCount,
			&createdAt,
			&formats,
		); err != nil {
			return nil, 0, fmt.Errorf("scan conversion: %w", err)
		}
		summary.CreatedAt = time.UnixMilli(createdAt)
		summary.Formats = splitFormats(formats)
		conversions = append(conversions, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	return conversions, int32(totalCount), nil
}

// GetConversion loads a conversion with output and source metadata but no blobs.
func (s *Store) GetConversion(ctx context.Context, owner, id string) (Conversion, error) {
	var conversion Conversion
	var createdAt int64
	row := s.db.QueryRowContext(ctx, `SELECT id, owner_email, display_name, source_count, record_count, records, created_at_ms
        FROM conversions
        WHERE id = ? AND owner_email = ?;`, id, owner)
	if err := row.Scan(
		&conversion.ID,
		&conversion.Owner,
		&conversion.DisplayName,
		&conversion.SourceCount,
		&conversion.RecordCount,
		&conversion.Records,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversion{}, ErrNotFound
		}
		return Conversion{}, fmt.Errorf("get conversion: %w", err)
	}
	conversion.CreatedAt = time.UnixMilli(createdAt)

	outputs, err := s.getOutputs(ctx, id)
	if err != nil {
		return Conversion{}, err
	}
	sources, err := s.getSources(ctx, id)
	if err != nil {
		return Conversion{}, err
	}
	conversion.Outputs = outputs
	conversion.Sources = sources
	return conversion, nil
}

func (s *Store) GetOutput(ctx context.Context, owner, id, format string) (Output, error) {
	var output Output
	row := s.db.QueryRowContext(ctx, `SELECT o.conversion_id, o.format, o.content_type, o.data, o.size
        FROM outputs o
        JOIN conversions c ON c.id = o.conversion_id
        WHERE o.conversion_id = ? AND o.format = ? AND c.owner_email = ?;`,
		id, format, owner)
	if err := row.Scan(
		&output.ConversionID,
		&output.Format,
		&output.ContentType,
		&output.Data,
		&output.Size,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Output{}, ErrNotFound
		}
		return Output{}, fmt.Errorf("get output: %w", err)
	}
	return output, nil
}

func (s *Store) DeleteConversion(ctx context.Context, owner, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = ? AND owner_email = ?;`, id, owner)
	if err != nil {
		return false, fmt.Errorf("delete conversion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversion: %w", err)
	}
	return rows > 0, nil
}

func (s *Store) getOutputs(ctx context.Context, conversionID string) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversion_id, format, content_type, size FROM outputs WHERE conversion_id = ? ORDER BY format;`, conversionID)
	if err != nil {
		return nil, fmt.Errorf("get outputs: %w", err)
	}
	defer rows.Close()

	var outputs []Output
	for rows.Next() {
		var output Output
		if err := rows.Scan(&output.ConversionID, &output.Format, &output.ContentType, &output.Size); err != nil {
			return nil, fmt.Errorf("get outputs: %w", err)
		}
		outputs = append(outputs, output)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get outputs: %w", err)
	}
	return outputs, nil
}

func (s *Store) getSources(ctx context.Context, conversionID string) ([]SourceFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversion_id, file_name, size FROM sources WHERE conversion_id = ? ORDER BY id;`, conversionID)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceFile
	for rows.Next() {
		var source SourceFile
		if err := rows.Scan(&source.ConversionID, &source.FileName, &source.Size); err != nil {
			return nil, fmt.Errorf("get sources: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}
	return sources, nil
}

func splitFormats(joined string) []string {
	if joined == "" {
		return nil
	}
	formats := strings.Split(joined, ",")
	slices.Sort(formats)
	return formats
}
