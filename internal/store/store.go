package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/imkarma/logiri/internal/clock"
)

// Store provides access to the logiri database.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// New opens (or creates) the SQLite database at the given path and brings
// its schema up to date.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode so dashboard reads see either the old or the new
	// snapshot while an ingest transaction runs.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, clock: clock.RealClock{}}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Set("_time_format", "sqlite")
	return path + "?" + q.Encode()
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(c clock.Clock) {
	s.clock = c
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		title             TEXT NOT NULL,
		description       TEXT DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'pending',
		priority          TEXT NOT NULL DEFAULT 'medium',
		assigned_to       TEXT DEFAULT '',
		estimated_hours   REAL NOT NULL DEFAULT 1,
		logged_hours      REAL NOT NULL DEFAULT 0,
		created_at        DATETIME NOT NULL,
		updated_at        DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id     INTEGER NOT NULL REFERENCES tasks(id),
		actor       TEXT DEFAULT '',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'running',
		error        TEXT DEFAULT '',
		started_at   DATETIME NOT NULL,
		finished_at  DATETIME
	);

	CREATE TABLE IF NOT EXISTS ingest_segments (
		run_id   TEXT NOT NULL REFERENCES ingest_runs(id),
		segment  TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		status   TEXT NOT NULL,
		error    TEXT DEFAULT '',
		PRIMARY KEY (run_id, segment)
	);

	CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON ingest_runs(source, started_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Columns added after the first release of the tasks table.
	taskColumnsAdded := []struct{ name, def string }{
		{"rule_id", "TEXT DEFAULT ''"},
		{"assigned_role", "TEXT DEFAULT ''"},
		{"due_date", "TEXT DEFAULT ''"},
		{"recheck_type", "TEXT DEFAULT ''"},
		{"recheck_date", "TEXT DEFAULT ''"},
		{"recheck_verified", "INTEGER NOT NULL DEFAULT 0"},
		{"recheck_result", "TEXT DEFAULT ''"},
		{"completed_at", "DATETIME"},
	}
	for _, c := range taskColumnsAdded {
		if err := s.addColumnIfMissing(ctx, "tasks", c.name, c.def); err != nil {
			return err
		}
	}

	for _, src := range Sources {
		if err := s.EnsureSnapshotSchema(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
// Used for additive migrations on existing databases.
func (s *Store) addColumnIfMissing(ctx context.Context, table, column, colDef string) error {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return err
	}
	if cols[column] {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+column+" "+colDef); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue *string
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

const maxTxRetries = 3

// RunTx runs fn in a transaction, retrying when SQLite reports the
// database as busy.
func (s *Store) RunTx(ctx context.Context, fn func(*sql.Tx) error) error {
	for i := range maxTxRetries {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) || i == maxTxRetries-1 {
			return err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("transaction retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("transaction: max retries exceeded")
}

func (s *Store) runOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
