// ABOUTME: Package documentation for the dxchart persistence layer
// ABOUTME: Describes the schema, interfaces, and error conventions

// Package store provides persistent storage for dxchart using SQLite.
//
// # Architecture
//
// The package exposes small capability interfaces:
//
//   - AccountStore: practitioner accounts with an approval gate
//   - ChartStore: patient chart records with visit-keyed upsert
//   - ClinicStore: one clinic settings record per account
//   - BackupStore: portable export and idempotent restore
//
// SQLiteStore implements all of them in one struct so services can depend
// on exactly the capability they need while sharing a single handle.
//
// # Identity rules
//
// Accounts are unique by case-folded username, enforced by a real unique
// index on lower(username); violations surface as ErrUsernameTaken.
//
// Chart records carry a composite identity (user_id, file_no, visit_date).
// The same file number legitimately recurs across visit dates, so the
// supporting index is non-unique; at-most-one-per-triple is enforced by
// SaveChart's select-then-write upsert inside a transaction.
// SaveChartAsNew deliberately bypasses that rule.
//
// # SQLite configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Times are stored as RFC3339 UTC strings. The chart payload column is
// opaque JSON text; the store never interprets its shape.
//
// # Handle lifecycle
//
// One handle is opened at construction and reused across calls. Reopen
// replaces it when a caller needs to observe state committed through a
// different handle. Close releases it.
//
// # Errors
//
//   - ErrNotFound: entity absent for the given key
//   - ErrUsernameTaken: case-insensitive username conflict
//   - ErrValidation: malformed input or restore document
//   - ErrPasswordVerify: password write committed but not observed on re-read
//   - ErrStorageTimeout: caller-imposed deadline exceeded (set by services)
//
// All methods accept context.Context.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") or a t.TempDir() path for tests.
package store
