package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion identifies the current layout of the catalog database.
const SchemaVersion = "1.0"

// CreateSchema creates all tables and indexes for the entity catalog.
// Uses a transaction for atomicity - all schema creation succeeds or
// fails together.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Enable foreign keys (must be set for each connection)
	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create all tables in dependency order
	tables := []struct {
		name string
		ddl  string
	}{
		{"units", createUnitsTable},
		{"entities", createEntitiesTable},
		{"warnings", createWarningsTable},
		{"catalog_metadata", createCatalogMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range catalogIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	// Bootstrap catalog_metadata
	now := time.Now().UTC().Format(time.RFC3339)
	bootstrapSQL := `
		INSERT INTO catalog_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('created_at', ?, ?)
	`
	if _, err := tx.Exec(bootstrapSQL, SchemaVersion, now, now, now); err != nil {
		return fmt.Errorf("failed to bootstrap catalog_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// GetSchemaVersion retrieves the schema version from catalog_metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='catalog_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check catalog_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil // New database
	}

	var version string
	query := "SELECT value FROM catalog_metadata WHERE key = 'schema_version'"
	err = db.QueryRow(query).Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in catalog_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// UpdateSchemaVersion sets or updates the schema version in catalog_metadata.
func UpdateSchemaVersion(db *sql.DB, version string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO catalog_metadata (key, value, updated_at)
		VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := db.Exec(query, version, now)
	if err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// Table DDL constants

const createUnitsTable = `
CREATE TABLE units (
    unit_path TEXT PRIMARY KEY,                  -- Natural key: relative path of the source unit
    language TEXT NOT NULL,                      -- rust, python, typescript, etc.
    content_hash TEXT NOT NULL,                  -- SHA-256 for change detection
    state TEXT NOT NULL,                         -- Terminal pipeline state (complete, failed)
    run_id TEXT NOT NULL,                        -- UUID of the extraction run that wrote this row
    entity_count INTEGER NOT NULL DEFAULT 0,     -- Denormalized count
    warning_count INTEGER NOT NULL DEFAULT 0,    -- Denormalized count
    extracted_at TEXT NOT NULL                   -- ISO 8601 when this unit was extracted
)
`

const createEntitiesTable = `
CREATE TABLE entities (
    entity_id TEXT PRIMARY KEY,                  -- UUID
    unit_path TEXT NOT NULL,
    handler TEXT NOT NULL,                       -- Namespaced handler that produced the row
    entity_type TEXT NOT NULL,                   -- function, method, struct, enum, ...
    name TEXT NOT NULL,
    qualified_name TEXT NOT NULL,
    parent_scope TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL,
    start_line INTEGER NOT NULL,                 -- 1-based
    start_column INTEGER NOT NULL,               -- 1-based
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    start_byte INTEGER NOT NULL,
    end_byte INTEGER NOT NULL,
    visibility TEXT NOT NULL DEFAULT '',
    documentation TEXT NOT NULL DEFAULT '',
    owner_type TEXT NOT NULL DEFAULT '',         -- Owning type for methods and impls
    trait_name TEXT NOT NULL DEFAULT '',         -- Implemented trait, when present
    field_type TEXT NOT NULL DEFAULT '',         -- Type annotation for fields/consts/aliases
    position INTEGER NOT NULL,                   -- Discovery order within the unit
    FOREIGN KEY (unit_path) REFERENCES units(unit_path) ON DELETE CASCADE
)
`

const createWarningsTable = `
CREATE TABLE warnings (
    warning_id TEXT PRIMARY KEY,                 -- UUID
    unit_path TEXT NOT NULL,
    handler TEXT NOT NULL,                       -- Handler the warning is reported against
    message TEXT NOT NULL,
    position INTEGER NOT NULL,                   -- Report order within the unit
    FOREIGN KEY (unit_path) REFERENCES units(unit_path) ON DELETE CASCADE
)
`

const createCatalogMetadataTable = `
CREATE TABLE catalog_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

var catalogIndexes = []string{
	"CREATE INDEX idx_entities_unit ON entities(unit_path)",
	"CREATE INDEX idx_entities_type ON entities(entity_type)",
	"CREATE INDEX idx_entities_name ON entities(name)",
	"CREATE INDEX idx_entities_qualified ON entities(qualified_name)",
	"CREATE INDEX idx_warnings_unit ON warnings(unit_path)",
	"CREATE INDEX idx_units_language ON units(language)",
}
