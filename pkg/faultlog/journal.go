// Package faultlog persists sync faults to a local SQLite journal and reads them back.
// It backs `alerthub faults` and serves as a faults.Reporter for long-running sessions.
package faultlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one persisted fault.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Component string    `json:"component"`
	Op        string    `json:"op,omitempty"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal appends faults to the database.
type Journal struct {
	db        *sql.DB
	sessionID string
	log       zerolog.Logger
}

// Open opens (creating if needed) the journal at path with WAL and a 5s busy timeout.
// ":memory:" opens a private in-memory journal.
func Open(path, sessionID string, log zerolog.Logger) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(context.Background(), protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init fault schema: %w", err)
	}
	return &Journal{db: db, sessionID: sessionID, log: log}, nil
}

// openDB opens a SQLite database at path and enforces WAL journal mode and a
// 5-second busy timeout, pinging before returning.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	return db, nil
}

// Record inserts f.
func (j *Journal) Record(ctx context.Context, f faults.Fault) error {
	at := f.Time
	if at.IsZero() {
		at = time.Now()
	}
	count := f.Count
	if count <= 0 {
		count = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO faults (kind, component, op, message, count, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(f.Kind), f.Component, f.Op, f.Message, count, j.sessionID, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record fault: %w", err)
	}
	return nil
}

// Report implements faults.Reporter. Write failures are logged, never returned.
func (j *Journal) Report(f faults.Fault) {
	ctx, cancel := context.WithTimeout(context.Background(), protocol.DefaultHTTPTimeout)
	defer cancel()
	if err := j.Record(ctx, f); err != nil {
		j.log.Error().Err(err).Msg("fault journal write failed")
	}
}

// Query reads entries from the journal's own connection.
func (j *Journal) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	return query(ctx, j.db, opts)
}

// Close releases the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// QueryOpts filters journal reads.
type QueryOpts struct {
	// Kind filters to one fault kind (e.g. "transport").
	Kind string

	// Component filters to one producer (e.g. "push").
	Component string

	// After filters entries created at or after this time.
	After *time.Time

	// Before filters entries created at or before this time.
	Before *time.Time

	// Limit restricts the number of results, newest first (0 = no limit).
	Limit int
}

// Reader provides read-only access to a journal another process may be writing.
type Reader struct {
	db *sql.DB
}

// NewReader opens the journal read-only. The file must exist.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("fault journal not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open fault journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping fault journal: %w", err)
	}
	return &Reader{db: db}, nil
}

// Query returns entries matching opts, newest first. No match yields an empty slice.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	return query(ctx, r.db, opts)
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func query(ctx context.Context, db *sql.DB, opts QueryOpts) ([]Entry, error) {
	q, args := buildQuery(opts)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query faults: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e            Entry
			createdAtStr string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Component, &e.Op, &e.Message, &e.Count, &e.SessionID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		if createdAtStr != "" {
			parsed, err := time.Parse(timeLayout, createdAtStr)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, createdAtStr)
				if err != nil {
					return nil, fmt.Errorf("parse created_at: %w", err)
				}
			}
			e.CreatedAt = parsed
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faults: %w", err)
	}
	return entries, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	q := "SELECT id, kind, component, op, message, count, session_id, created_at FROM faults WHERE 1=1"

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.Component != "" {
		conditions = append(conditions, "component = ?")
		args = append(args, opts.Component)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(timeLayout))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format(timeLayout))
	}

	if len(conditions) > 0 {
		q += " AND " + strings.Join(conditions, " AND ")
	}
	q += " ORDER BY id DESC"
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return q, args
}
