package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever a table definition changes.
const SchemaVersion = "2"

// CreateSchema creates all tables and indexes of the snapshot store.
// Uses a transaction so schema creation succeeds or fails as a whole, and is
// safe to call on an existing database.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"snapshots", createSnapshotsTable},
		{"snapshot_files", createSnapshotFilesTable},
		{"lines", createLinesTable},
		{"symbols", createSymbolsTable},
		{"includes", createIncludesTable},
		{"snapshot_units", createSnapshotUnitsTable},
		{"diagnostics", createDiagnosticsTable},
		{"metadata", createMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)",
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to bootstrap metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// GetSchemaVersion retrieves the schema version from metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	version, err := getMetadata(db, "schema_version")
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	cwd TEXT NOT NULL,
	created_at TEXT NOT NULL,
	line_count INTEGER NOT NULL,
	symbol_count INTEGER NOT NULL
)`

const createSnapshotFilesTable = `
CREATE TABLE IF NOT EXISTS snapshot_files (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	path TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createLinesTable = `
CREATE TABLE IF NOT EXISTS lines (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	original_file TEXT NOT NULL,
	original_line INTEGER NOT NULL,
	generated_file TEXT NOT NULL,
	generated_line INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	unit TEXT NOT NULL,
	generated_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	ctype TEXT NOT NULL DEFAULT '',
	has_attr INTEGER NOT NULL DEFAULT 0,
	attr_type INTEGER NOT NULL DEFAULT 0,
	attr_length INTEGER NOT NULL DEFAULT 0,
	attr_digits INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	parent_name TEXT NOT NULL DEFAULT '',
	path_unit TEXT NOT NULL,
	path_parent TEXT NOT NULL DEFAULT '',
	path_name TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createIncludesTable = `
CREATE TABLE IF NOT EXISTS includes (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	from_path TEXT NOT NULL,
	to_path TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createSnapshotUnitsTable = `
CREATE TABLE IF NOT EXISTS snapshot_units (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	unit TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createDiagnosticsTable = `
CREATE TABLE IF NOT EXISTS diagnostics (
	snapshot_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
)`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_lines_original ON lines(snapshot_id, original_file, original_line)",
		"CREATE INDEX IF NOT EXISTS idx_lines_generated ON lines(snapshot_id, generated_file, generated_line)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_generated ON symbols(snapshot_id, unit, generated_name)",
	}
}
