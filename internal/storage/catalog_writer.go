package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/quarry-dev/quarry/internal/entity"
)

// CatalogWriter persists extraction results. One catalog is written per
// transaction so a unit is either fully stored or not stored at all.
type CatalogWriter struct {
	db *sql.DB
}

// NewCatalogWriter creates a writer backed by an open catalog database.
func NewCatalogWriter(db *sql.DB) *CatalogWriter {
	return &CatalogWriter{db: db}
}

// WriteCatalog stores a catalog under its unit path, replacing any
// previous extraction of the same unit. The replace on the units row
// cascades to the old entity and warning rows, so a rewrite never
// leaves stale children behind.
func (w *CatalogWriter) WriteCatalog(cat *entity.Catalog, state, contentHash string) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	now := time.Now().UTC().Format(time.RFC3339)
	unitSQL, unitArgs, err := sq.Insert("units").
		Options("OR REPLACE").
		Columns("unit_path", "language", "content_hash", "state", "run_id",
			"entity_count", "warning_count", "extracted_at").
		Values(cat.Unit, cat.Language, contentHash, state, cat.RunID,
			cat.Len(), len(cat.Warnings()), now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build unit insert: %w", err)
	}
	if _, err := tx.Exec(unitSQL, unitArgs...); err != nil {
		return fmt.Errorf("failed to insert unit %s: %w", cat.Unit, err)
	}

	if err := insertEntities(tx, cat); err != nil {
		return err
	}
	if err := insertWarnings(tx, cat); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog for %s: %w", cat.Unit, err)
	}
	return nil
}

func insertEntities(tx *sql.Tx, cat *entity.Catalog) error {
	entities := cat.Entities()
	if len(entities) == 0 {
		return nil
	}

	insertSQL, _, err := sq.Insert("entities").
		Columns("entity_id", "unit_path", "handler", "entity_type", "name",
			"qualified_name", "parent_scope", "language",
			"start_line", "start_column", "end_line", "end_column",
			"start_byte", "end_byte",
			"visibility", "documentation", "owner_type", "trait_name",
			"field_type", "position").
		Values("", "", "", "", "", "", "", "", 0, 0, 0, 0, 0, 0, "", "", "", "", "", 0).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build entity insert: %w", err)
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entities {
		_, err := stmt.Exec(
			uuid.New().String(), cat.Unit, e.Handler, string(e.Type), e.Name,
			e.QualifiedName, e.ParentScope, e.Language,
			int(e.Location.StartLine), int(e.Location.StartColumn),
			int(e.Location.EndLine), int(e.Location.EndColumn),
			int(e.Location.StartByte), int(e.Location.EndByte),
			string(e.Visibility), e.Documentation, e.OwnerType, e.TraitName,
			e.FieldType, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.QualifiedName, err)
		}
	}
	return nil
}

func insertWarnings(tx *sql.Tx, cat *entity.Catalog) error {
	warnings := cat.Warnings()
	if len(warnings) == 0 {
		return nil
	}

	insertSQL, _, err := sq.Insert("warnings").
		Columns("warning_id", "unit_path", "handler", "message", "position").
		Values("", "", "", "", 0).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build warning insert: %w", err)
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare warning insert: %w", err)
	}
	defer stmt.Close()

	for i, warn := range warnings {
		if _, err := stmt.Exec(uuid.New().String(), cat.Unit, warn.Handler, warn.Message, i); err != nil {
			return fmt.Errorf("failed to insert warning for %s: %w", warn.Handler, err)
		}
	}
	return nil
}

// DeleteUnit removes a unit and, via cascade, its entities and warnings.
// Deleting an absent unit is not an error.
func (w *CatalogWriter) DeleteUnit(unitPath string) error {
	if _, err := w.db.Exec("DELETE FROM units WHERE unit_path = ?", unitPath); err != nil {
		return fmt.Errorf("failed to delete unit %s: %w", unitPath, err)
	}
	return nil
}
