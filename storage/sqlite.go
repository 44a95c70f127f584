// SQLite trace log.
//
// Information Hiding:
// - SQLite connection management hidden behind TraceStore
// - Schema and span-tree flattening encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/richinex/scout/trace"
)

// SqliteStore implements TraceStore using SQLite.
// Every exported trace is written as one traces row plus one spans row per
// span, so finished turns can be inspected offline with `scout traces`.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}
	return newSqliteStore(db)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory SQLite")
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSqliteStore(db)
}

func newSqliteStore(db *sql.DB) (*SqliteStore, error) {
	s := &SqliteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return s, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Name returns the backend name.
func (s *SqliteStore) Name() string { return "sqlite" }

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			input TEXT,
			output TEXT,
			metadata TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_traces_start
		ON traces(start_time DESC);

		CREATE TABLE IF NOT EXISTS spans (
			id TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			parent_id TEXT,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			status_message TEXT,
			input TEXT,
			output TEXT,
			metadata TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			PRIMARY KEY (trace_id, id),
			FOREIGN KEY (trace_id) REFERENCES traces(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_spans_trace
		ON spans(trace_id, position);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	return nil
}

// Export writes the trace and its spans in one transaction. Re-exporting a
// trace ID replaces the earlier copy.
func (s *SqliteStore) Export(ctx context.Context, t trace.Trace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM spans WHERE trace_id = ?", t.ID); err != nil {
		return errors.Wrap(err, "failed to clear old spans")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO traces
		(id, name, status, input, output, metadata, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Name,
		string(t.Status),
		encodeJSON(t.Input),
		encodeJSON(t.Output),
		encodeJSON(t.Metadata),
		unixNano(t.StartTime),
		unixNano(t.EndTime),
	)
	if err != nil {
		return errors.Wrap(err, "failed to store trace")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spans
		(id, trace_id, parent_id, position, name, kind, status, status_message, input, output, metadata, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare span insert")
	}
	defer stmt.Close()

	for i, span := range t.Spans() {
		_, err = stmt.ExecContext(ctx,
			span.ID,
			t.ID,
			nullString(span.ParentID),
			i,
			span.Name,
			string(span.Kind),
			string(span.Status),
			nullString(span.StatusMessage),
			encodeJSON(span.Input),
			encodeJSON(span.Output),
			encodeJSON(span.Metadata),
			unixNano(span.StartTime),
			unixNano(span.EndTime),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to store span %s", span.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// LoadTrace rebuilds a stored trace with its span tree.
func (s *SqliteStore) LoadTrace(ctx context.Context, id string) (trace.Trace, error) {
	var t trace.Trace
	var status string
	var input, output, metadata sql.NullString
	var start, end int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, input, output, metadata, start_time, end_time
		FROM traces WHERE id = ?`, id).Scan(
		&t.ID, &t.Name, &status, &input, &output, &metadata, &start, &end,
	)
	if err == sql.ErrNoRows {
		return trace.Trace{}, ErrTraceNotFound
	}
	if err != nil {
		return trace.Trace{}, errors.Wrap(err, "failed to get trace")
	}

	t.Status = trace.Status(status)
	t.Input = decodeJSON(input)
	t.Output = decodeJSON(output)
	t.Metadata = decodeMetadata(metadata)
	t.StartTime = fromUnixNano(start)
	t.EndTime = fromUnixNano(end)

	root, err := s.loadSpans(ctx, id)
	if err != nil {
		return trace.Trace{}, err
	}
	t.Root = root
	return t, nil
}

func (s *SqliteStore) loadSpans(ctx context.Context, traceID string) (*trace.Span, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, name, kind, status, status_message, input, output, metadata, start_time, end_time
		FROM spans WHERE trace_id = ?
		ORDER BY position ASC`, traceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query spans")
	}
	defer rows.Close()

	byID := make(map[string]*trace.Span)
	var root *trace.Span
	for rows.Next() {
		span := &trace.Span{TraceID: traceID}
		var parentID, statusMessage, input, output, metadata sql.NullString
		var kind, status string
		var start, end int64

		if err := rows.Scan(
			&span.ID, &parentID, &span.Name, &kind, &status, &statusMessage,
			&input, &output, &metadata, &start, &end,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan span")
		}

		span.ParentID = parentID.String
		span.Kind = trace.Kind(kind)
		span.Status = trace.Status(status)
		span.StatusMessage = statusMessage.String
		span.Input = decodeJSON(input)
		span.Output = decodeJSON(output)
		span.Metadata = decodeMetadata(metadata)
		span.StartTime = fromUnixNano(start)
		span.EndTime = fromUnixNano(end)

		byID[span.ID] = span
		// Pre-order storage guarantees a parent row precedes its children.
		if parent, ok := byID[span.ParentID]; ok && span.ParentID != "" {
			parent.Children = append(parent.Children, span)
		} else if root == nil {
			root = span
		}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating spans")
	}
	return root, nil
}

// ListTraces returns the newest traces first.
func (s *SqliteStore) ListTraces(ctx context.Context, limit int) ([]TraceSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.status, t.input, t.start_time, t.end_time,
			(SELECT COUNT(*) FROM spans s WHERE s.trace_id = t.id)
		FROM traces t
		ORDER BY t.start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query traces")
	}
	defer rows.Close()

	summaries := []TraceSummary{}
	for rows.Next() {
		var sum TraceSummary
		var status string
		var input sql.NullString
		var start, end int64
		if err := rows.Scan(&sum.ID, &sum.Name, &status, &input, &start, &end, &sum.SpanCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan trace")
		}
		sum.Status = trace.Status(status)
		if v, ok := decodeJSON(input).(string); ok {
			sum.Input = v
		}
		sum.StartTime = fromUnixNano(start)
		sum.EndTime = fromUnixNano(end)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating traces")
	}
	return summaries, nil
}

func encodeJSON(v any) any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeJSON(s sql.NullString) any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return s.String
	}
	return v
}

func decodeMetadata(s sql.NullString) map[string]any {
	m, _ := decodeJSON(s).(map[string]any)
	return m
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ TraceStore = (*SqliteStore)(nil)
