package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by an SQLite database file. WAL mode is
// enabled so readers (the CLI history command) never block a recording run.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// DefaultPath returns the default history database location.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "orchestra", "history.db")
}

// OpenSQLite opens (and migrates) the database at path, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// pragmas in the DSN apply to every pooled connection
	conn, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

var migrations = []struct {
	version int
	sql     string
}{
	{1, migrationV1Runs},
	{2, migrationV2Invocations},
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	state TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	failure_kind TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
`

const migrationV2Invocations = `
CREATE TABLE IF NOT EXISTS invocations (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	key TEXT NOT NULL,
	role TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	failure_kind TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, key)
);
`

func (s *SQLiteStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v int
	if err := s.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

// Save inserts or replaces rec together with its invocation records.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, rec.RunID); err != nil {
		return fmt.Errorf("replace run %s: %w", rec.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, request_id, state, started_at, duration_ns, failure_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.RequestID, string(rec.State), formatTime(rec.StartedAt), int64(rec.Duration), string(rec.FailureKind), rec.Error); err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}

	for i, inv := range rec.Invocations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invocations (run_id, position, key, role, status, attempts, failure_kind, message, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.RunID, i, inv.Key, string(inv.Role), string(inv.Status), inv.Attempts, string(inv.FailureKind), inv.Message, int64(inv.Duration)); err != nil {
			return fmt.Errorf("insert invocation %s/%s: %w", rec.RunID, inv.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", rec.RunID, err)
	}

	return nil
}

// Get returns the record of runID or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx, `
		SELECT run_id, request_id, state, started_at, duration_ns, failure_kind, error
		FROM runs WHERE run_id = ?
	`, runID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	if rec.Invocations, err = s.invocations(ctx, runID); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// List returns up to limit records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT run_id, request_id, state, started_at, duration_ns, failure_kind, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var out []Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for i := range out {
		if out[i].Invocations, err = s.invocations(ctx, out[i].RunID); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Count returns the number of stored runs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) invocations(ctx context.Context, runID string) ([]InvocationRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT key, role, status, attempts, failure_kind, message, duration_ns
		FROM invocations WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list invocations of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var (
			inv InvocationRecord
			dur int64
		)
		if err := rows.Scan(&inv.Key, &inv.Role, &inv.Status, &inv.Attempts, &inv.FailureKind, &inv.Message, &dur); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.Duration = time.Duration(dur)
		out = append(out, inv)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Record, error) {
	var (
		rec       Record
		startedAt string
		dur       int64
	)
	if err := row.Scan(&rec.RunID, &rec.RequestID, &rec.State, &startedAt, &dur, &rec.FailureKind, &rec.Error); err != nil {
		return Record{}, err
	}
	rec.StartedAt, _ = parseTime(startedAt)
	rec.Duration = time.Duration(dur)
	return rec, nil
}

// formatTime uses a fixed-width layout so that lexical order is chronological.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
