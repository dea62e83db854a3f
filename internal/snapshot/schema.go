package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the tables or the type encoding change.
// Snapshots are only readable by the schema version that wrote them.
const SchemaVersion = "1"

// ErrSchemaVersion is returned when opening a snapshot written by another
// schema version.
var ErrSchemaVersion = errors.New("snapshot schema version mismatch")

// CreateSchema creates all tables and indexes and records the schema
// version, in one transaction.
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
		{"snapshot_meta", createMetaTable},
		{"runs", createRunsTable},
		{"globals", createGlobalsTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`INSERT INTO snapshot_meta (key, value, updated_at) VALUES ('schema_version', ?, ?)`, SchemaVersion, now); err != nil {
		return fmt.Errorf("failed to bootstrap snapshot_meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the stored schema version, or "0" for a new database.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='snapshot_meta'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check snapshot_meta existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM snapshot_meta WHERE key = 'schema_version'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("schema_version key not found in snapshot_meta")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createMetaTable = `
CREATE TABLE snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

const createRunsTable = `
CREATE TABLE runs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,       -- Insertion order, newest wins on load
    run_id TEXT NOT NULL UNIQUE,                 -- UUID
    module TEXT NOT NULL,                        -- Binding module the names were issued under
    source TEXT NOT NULL,                        -- Main file of the translation unit
    created_at TEXT NOT NULL                     -- ISO 8601
)
`

const createGlobalsTable = `
CREATE TABLE globals (
    run_seq INTEGER NOT NULL,
    seq INTEGER NOT NULL,                        -- Position within the run
    variant TEXT NOT NULL,                       -- struct, union, enum, typedef, function, var, builtin
    file_path TEXT NOT NULL,
    line INTEGER NOT NULL,
    col INTEGER NOT NULL,
    spelling TEXT NOT NULL,
    cursor_kind TEXT NOT NULL,
    external_name TEXT NOT NULL,
    type_blob BLOB,                              -- msgpack encoded type, NULL for composites and enums
    PRIMARY KEY (run_seq, seq),
    FOREIGN KEY (run_seq) REFERENCES runs(seq) ON DELETE CASCADE
)
`

var indexes = []string{
	"CREATE INDEX idx_globals_shape ON globals(file_path, line, col, spelling, cursor_kind)",
	"CREATE INDEX idx_globals_name ON globals(external_name)",
}
