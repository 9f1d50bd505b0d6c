package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Scan row caps. A scan with no explicit limit is still bounded.
const (
	DefaultScanLimit = 100
	MaxScanLimit     = 1000
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      TEXT NOT NULL,
	request_id     TEXT,
	session_id     TEXT,
	client_name    TEXT,
	client_version TEXT,
	tool_name      TEXT NOT NULL,
	parameters     TEXT,
	success        INTEGER NOT NULL,
	error_msg      TEXT,
	duration_ms    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_timestamp ON tool_calls(timestamp);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session_id ON tool_calls(session_id);
CREATE INDEX IF NOT EXISTS idx_tool_calls_tool_name ON tool_calls(tool_name);
CREATE INDEX IF NOT EXISTS idx_tool_calls_client ON tool_calls(client_name);
`

// Store is an append-only SQLite log of invocation events.
//
// Construction performs no I/O: the backing database is created lazily by
// the first call that needs it, from whichever goroutine gets there first.
// A failed initialization leaves the store untouched so a later call can
// retry. Appends are serialized through a single-connection pool; reads go
// through a separate pool so WAL readers are never stalled by a writer.
type Store struct {
	path string

	mu     sync.RWMutex
	writer *sql.DB
	reader *sql.DB
}

// Open returns a Store for the given database path without touching storage.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing database path.
func (s *Store) Path() string {
	return s.path
}

// EnsureReady initializes the backing database if it has not been
// initialized yet. It is idempotent and safe to call concurrently: exactly
// one caller runs the setup, everyone else waits and observes the result.
func (s *Store) EnsureReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.writer != nil
	s.mu.RUnlock()
	if ready {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return nil
	}
	return s.initLocked(ctx)
}

// initLocked opens both connection pools and creates the schema.
// Called with s.mu held. On any failure it closes whatever was opened and
// leaves the store uninitialized.
func (s *Store) initLocked(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("audit: create directory: %w", err)
		}
	}

	writer, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("audit: open database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)

	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return fmt.Errorf("audit: connect: %w", err)
	}

	if _, err := writer.ExecContext(ctx, schema); err != nil {
		writer.Close()
		return fmt.Errorf("audit: create schema: %w", err)
	}

	reader, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		writer.Close()
		return fmt.Errorf("audit: open read pool: %w", err)
	}
	if err := reader.PingContext(ctx); err != nil {
		writer.Close()
		reader.Close()
		return fmt.Errorf("audit: connect read pool: %w", err)
	}

	s.writer = writer
	s.reader = reader
	return nil
}

// dsn applies the WAL pragmas on every pooled connection.
func (s *Store) dsn() string {
	return "file:" + s.path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
}

// writeDB returns the writer pool, initializing the store if needed.
func (s *Store) writeDB(ctx context.Context) (*sql.DB, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writer == nil {
		return nil, fmt.Errorf("audit: store is closed")
	}
	return s.writer, nil
}

// readDB returns the reader pool, initializing the store if needed.
func (s *Store) readDB(ctx context.Context) (*sql.DB, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return nil, fmt.Errorf("audit: store is closed")
	}
	return s.reader, nil
}

// Append validates the event, persists it, and returns the assigned id.
// Ids are strictly increasing in the order appends are accepted.
func (s *Store) Append(ctx context.Context, ev Event) (int64, error) {
	if err := validateEvent(ev); err != nil {
		return 0, err
	}
	db, err := s.writeDB(ctx)
	if err != nil {
		return 0, err
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO tool_calls (timestamp, request_id, session_id, client_name, client_version, tool_name, parameters, success, error_msg, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Timestamp.UTC().Format(TimestampFormat),
		nullable(ev.RequestID),
		nullable(ev.SessionID),
		nullable(ev.ClientName),
		nullable(ev.ClientVersion),
		ev.Operation,
		nullable(ev.Arguments),
		boolToInt(ev.Status == StatusSuccess),
		nullable(ev.ErrorDetail),
		ev.DurationMS,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: append event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("audit: last insert id: %w", err)
	}
	return id, nil
}

func validateEvent(ev Event) error {
	if ev.Operation == "" {
		return fmt.Errorf("audit: event has empty operation name")
	}
	if ev.DurationMS < 0 {
		return fmt.Errorf("audit: event has negative duration %v", ev.DurationMS)
	}
	switch ev.Status {
	case StatusSuccess:
		if ev.ErrorDetail != "" {
			return fmt.Errorf("audit: success event carries error detail")
		}
	case StatusError:
		if ev.ErrorDetail == "" {
			return fmt.Errorf("audit: error event has no error detail")
		}
	default:
		return fmt.Errorf("audit: unknown status %q", ev.Status)
	}
	return nil
}

// Scan returns events matching the filter, most recent first (descending
// id). Filter predicates combine with AND; time bounds are inclusive.
// An empty store yields an empty slice, not an error.
func (s *Store) Scan(ctx context.Context, f Filter) ([]Event, error) {
	db, err := s.readDB(ctx)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.Operation != "" {
		where = append(where, "tool_name = ?")
		args = append(args, f.Operation)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.ClientName != "" {
		where = append(where, "client_name = ?")
		args = append(args, f.ClientName)
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(TimestampFormat))
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until.UTC().Format(TimestampFormat))
	}
	if f.ErrorsOnly {
		where = append(where, "success = 0")
	}

	query := "SELECT id, timestamp, request_id, session_id, client_name, client_version, tool_name, parameters, success, error_msg, duration_ms FROM tool_calls"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: scan events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultScanLimit
	}
	if limit > MaxScanLimit {
		return MaxScanLimit
	}
	return limit
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		ev        Event
		ts        string
		requestID sql.NullString
		sessionID sql.NullString
		client    sql.NullString
		version   sql.NullString
		params    sql.NullString
		success   int
		errMsg    sql.NullString
	)
	if err := rows.Scan(&ev.ID, &ts, &requestID, &sessionID, &client, &version, &ev.Operation, &params, &success, &errMsg, &ev.DurationMS); err != nil {
		return Event{}, fmt.Errorf("audit: scan row: %w", err)
	}

	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return Event{}, fmt.Errorf("audit: parse stored timestamp %q: %w", ts, err)
	}
	ev.Timestamp = t
	ev.RequestID = requestID.String
	ev.SessionID = sessionID.String
	ev.ClientName = client.String
	ev.ClientVersion = version.String
	ev.Arguments = params.String
	ev.ErrorDetail = errMsg.String
	if success == 1 {
		ev.Status = StatusSuccess
	} else {
		ev.Status = StatusError
	}
	return ev, nil
}

// Aggregate computes the summary over the whole log. On an empty store it
// returns all-zero totals and an empty breakdown.
func (s *Store) Aggregate(ctx context.Context) (Summary, error) {
	db, err := s.readDB(ctx)
	if err != nil {
		return Summary{}, err
	}

	var (
		sum      Summary
		errCount sql.NullInt64
		avgDur   sql.NullFloat64
		maxDur   sql.NullFloat64
		first    sql.NullString
		last     sql.NullString
	)
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT tool_name),
		       COUNT(DISTINCT client_name),
		       COUNT(DISTINCT session_id),
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		       AVG(duration_ms),
		       MAX(duration_ms),
		       MIN(timestamp),
		       MAX(timestamp)
		FROM tool_calls
	`).Scan(&sum.TotalCalls, &sum.UniqueOps, &sum.UniqueClients, &sum.UniqueSessions,
		&errCount, &avgDur, &maxDur, &first, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: aggregate totals: %w", err)
	}

	sum.ErrorCount = errCount.Int64
	sum.AvgDurationMS = avgDur.Float64
	sum.MaxDurationMS = maxDur.Float64
	sum.FirstCall = first.String
	sum.LastCall = last.String
	if sum.TotalCalls > 0 {
		sum.ErrorRate = float64(sum.ErrorCount) / float64(sum.TotalCalls)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tool_name,
		       COUNT(*),
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		       AVG(duration_ms),
		       MAX(duration_ms)
		FROM tool_calls
		GROUP BY tool_name
		ORDER BY COUNT(*) DESC, tool_name ASC
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: aggregate by operation: %w", err)
	}
	defer rows.Close()

	sum.Operations = []OperationStats{}
	for rows.Next() {
		var op OperationStats
		if err := rows.Scan(&op.Operation, &op.Calls, &op.Errors, &op.AvgDurationMS, &op.MaxDurationMS); err != nil {
			return Summary{}, fmt.Errorf("audit: scan operation stats: %w", err)
		}
		if op.Calls > 0 {
			op.ErrorRate = float64(op.Errors) / float64(op.Calls)
		}
		sum.Operations = append(sum.Operations, op)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("audit: iterate operation stats: %w", err)
	}
	return sum, nil
}

// Close closes both connection pools. A closed store can be reinitialized
// by a later EnsureReady.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			firstErr = err
		}
		s.writer = nil
	}
	if s.reader != nil {
		if err := s.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.reader = nil
	}
	return firstErr
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
