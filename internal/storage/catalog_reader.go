package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// CatalogReader answers queries over a stored catalog.
type CatalogReader struct {
	db *sql.DB
}

// NewCatalogReader creates a reader backed by an open catalog database.
func NewCatalogReader(db *sql.DB) *CatalogReader {
	return &CatalogReader{db: db}
}

// GetUnit returns the stored record for one unit, or nil when the unit
// has never been extracted.
func (r *CatalogReader) GetUnit(unitPath string) (*UnitRecord, error) {
	query, args, err := sq.Select("unit_path", "language", "content_hash", "state",
		"run_id", "entity_count", "warning_count", "extracted_at").
		From("units").
		Where(sq.Eq{"unit_path": unitPath}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unit query: %w", err)
	}

	var u UnitRecord
	err = r.db.QueryRow(query, args...).Scan(
		&u.UnitPath, &u.Language, &u.ContentHash, &u.State,
		&u.RunID, &u.EntityCount, &u.WarningCount, &u.ExtractedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit %s: %w", unitPath, err)
	}
	return &u, nil
}

// UnitSummaries returns all stored units ordered by path.
func (r *CatalogReader) UnitSummaries() ([]UnitRecord, error) {
	query, args, err := sq.Select("unit_path", "language", "content_hash", "state",
		"run_id", "entity_count", "warning_count", "extracted_at").
		From("units").
		OrderBy("unit_path").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unit summary query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []UnitRecord
	for rows.Next() {
		var u UnitRecord
		if err := rows.Scan(&u.UnitPath, &u.Language, &u.ContentHash, &u.State,
			&u.RunID, &u.EntityCount, &u.WarningCount, &u.ExtractedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// EntitiesForUnit returns a unit's entities in discovery order.
func (r *CatalogReader) EntitiesForUnit(unitPath string) ([]EntityRecord, error) {
	query, args, err := sq.Select("entity_id", "unit_path", "handler", "entity_type",
		"name", "qualified_name", "parent_scope", "language",
		"start_line", "start_column", "end_line", "end_column",
		"start_byte", "end_byte",
		"visibility", "documentation", "owner_type", "trait_name",
		"field_type", "position").
		From("entities").
		Where(sq.Eq{"unit_path": unitPath}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build entity query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities for %s: %w", unitPath, err)
	}
	defer rows.Close()

	var entities []EntityRecord
	for rows.Next() {
		var e EntityRecord
		if err := rows.Scan(&e.EntityID, &e.UnitPath, &e.Handler, &e.EntityType,
			&e.Name, &e.QualifiedName, &e.ParentScope, &e.Language,
			&e.StartLine, &e.StartColumn, &e.EndLine, &e.EndColumn,
			&e.StartByte, &e.EndByte,
			&e.Visibility, &e.Documentation, &e.OwnerType, &e.TraitName,
			&e.FieldType, &e.Position); err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// WarningsForUnit returns a unit's warnings in report order.
func (r *CatalogReader) WarningsForUnit(unitPath string) ([]WarningRecord, error) {
	query, args, err := sq.Select("warning_id", "unit_path", "handler", "message", "position").
		From("warnings").
		Where(sq.Eq{"unit_path": unitPath}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build warning query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings for %s: %w", unitPath, err)
	}
	defer rows.Close()

	var warnings []WarningRecord
	for rows.Next() {
		var w WarningRecord
		if err := rows.Scan(&w.WarningID, &w.UnitPath, &w.Handler, &w.Message, &w.Position); err != nil {
			return nil, fmt.Errorf("failed to scan warning row: %w", err)
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// EntityTypeCounts returns how many stored entities exist per entity type.
func (r *CatalogReader) EntityTypeCounts() (map[string]int, error) {
	rows, err := r.db.Query("SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type")
	if err != nil {
		return nil, fmt.Errorf("failed to query entity type counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[entityType] = count
	}
	return counts, rows.Err()
}
