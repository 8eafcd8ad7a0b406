// ABOUTME: SQLite implementation of the dxchart store using modernc.org/sqlite
// ABOUTME: Handles schema creation, idempotent migrations, and handle lifecycle

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current schema version recorded in the database.
// Version 1 carried a unique index on (user_id, file_no, visit_date);
// version 2 downgraded it to non-unique so SaveChartAsNew can insert
// duplicate triples.
const schemaVersion = 2

// SQLiteStore implements the store interfaces using SQLite.
// The handle is opened once and reused across calls; Reopen replaces it
// when a caller needs to observe state written by another handle.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path.
// The schema is created and migrated automatically. Parent directories are
// created if needed. Open failure is fatal to the caller; there is no retry
// at this layer.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	s := &SQLiteStore{
		path:   path,
		logger: logger,
	}

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "schema_version", schemaVersion)
	return s, nil
}

// openDB opens a fresh connection with the required pragmas applied.
func (s *SQLiteStore) openDB() (*sql.DB, error) {
	if s.path != ":memory:" {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent readers alongside the writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Reopen closes the live handle and opens a fresh one. Used when a caller
// must observe the latest committed state after another execution context
// wrote to the store. Schema work is not repeated; the store was already
// migrated at construction.
func (s *SQLiteStore) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing stale handle: %w", err)
		}
	}

	db, err := s.openDB()
	if err != nil {
		return err
	}
	s.db = db

	s.logger.Info("SQLite store reopened", "path", s.path)
	return nil
}

// conn returns the current handle under the read lock.
func (s *SQLiteStore) conn() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// createSchema creates the database objects if they don't exist.
//
// The username index is a real unique constraint on the case-folded value:
// constraint violations map to ErrUsernameTaken instead of a racy
// scan-then-insert pre-check. The chart visit index is deliberately
// non-unique because legitimate records share user_id+file_no across visit
// dates; uniqueness of the full triple is enforced by SaveChart's upsert.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id                   TEXT PRIMARY KEY,
			username             TEXT NOT NULL,
			password_hash        TEXT NOT NULL,
			clinic_name          TEXT,
			therapist_name       TEXT,
			therapist_license_no TEXT,
			is_admin             INTEGER NOT NULL DEFAULT 0,
			is_approved          INTEGER NOT NULL DEFAULT 0,
			approved_at          TEXT,
			approved_by          TEXT,
			created_at           TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username_ci
			ON accounts(lower(username));

		CREATE TABLE IF NOT EXISTS patient_charts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			file_no    TEXT NOT NULL,
			visit_date TEXT NOT NULL,
			chart_type TEXT NOT NULL DEFAULT 'new',
			chart_data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (chart_type IN ('new', 'follow-up'))
		);

		CREATE INDEX IF NOT EXISTS idx_charts_user ON patient_charts(user_id);
		CREATE INDEX IF NOT EXISTS idx_charts_file_no ON patient_charts(file_no);
		CREATE INDEX IF NOT EXISTS idx_charts_user_file ON patient_charts(user_id, file_no);
		CREATE INDEX IF NOT EXISTS idx_charts_visit ON patient_charts(user_id, file_no, visit_date);

		CREATE TABLE IF NOT EXISTS clinic_profiles (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id              TEXT NOT NULL,
			clinic_name          TEXT,
			clinic_logo          TEXT,
			therapist_name       TEXT,
			therapist_license_no TEXT,
			updated_at           TEXT NOT NULL,

			UNIQUE(user_id)
		);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed the version row on first-ever open
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("seeding schema version: %w", err)
		}
	}

	return nil
}

// runMigrations applies schema migrations for existing databases.
// Migrations are additive and non-destructive: missing columns and indices
// are added without touching rows. The one drop-and-recreate case is an
// index whose uniqueness was downgraded; data is never dropped.
func (s *SQLiteStore) runMigrations() error {
	// Migration: add chart_type to databases created before it existed.
	// SQLite has no ADD COLUMN IF NOT EXISTS, so check first.
	columns := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('patient_charts') WHERE name = 'chart_type'`,
			apply:  `ALTER TABLE patient_charts ADD COLUMN chart_type TEXT NOT NULL DEFAULT 'new'`,
			column: "chart_type",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('accounts') WHERE name = 'is_admin'`,
			apply:  `ALTER TABLE accounts ADD COLUMN is_admin INTEGER NOT NULL DEFAULT 0`,
			column: "is_admin",
		},
	}

	for _, m := range columns {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}

	// Migration: version 1 created idx_charts_visit UNIQUE, which blocks
	// SaveChartAsNew. Recreate it non-unique. Rows are untouched.
	var isUnique int
	err := s.db.QueryRow(`
		SELECT 1 FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_charts_visit' AND sql LIKE 'CREATE UNIQUE%'
	`).Scan(&isUnique)
	if err == nil {
		if _, err := s.db.Exec(`DROP INDEX idx_charts_visit`); err != nil {
			return fmt.Errorf("dropping unique visit index: %w", err)
		}
		if _, err := s.db.Exec(`
			CREATE INDEX idx_charts_visit ON patient_charts(user_id, file_no, visit_date)
		`); err != nil {
			return fmt.Errorf("recreating visit index: %w", err)
		}
		s.logger.Info("applied migration", "index", "idx_charts_visit", "change", "unique downgraded")
	}

	if _, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	return nil
}

// SchemaVersion reports the version recorded in the database.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	var v int
	if err := s.conn().QueryRow("SELECT version FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("closing SQLite store")
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements the store interfaces
var (
	_ AccountStore = (*SQLiteStore)(nil)
	_ ChartStore   = (*SQLiteStore)(nil)
	_ ClinicStore  = (*SQLiteStore)(nil)
	_ BackupStore  = (*SQLiteStore)(nil)
)
