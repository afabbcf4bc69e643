package runner

import (
	"database/sql"

	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/storage"
)

// StorageSink adapts the SQLite catalog store to the Sink interface.
type StorageSink struct {
	writer *storage.CatalogWriter
	reader *storage.CatalogReader
}

// NewStorageSink wraps an open catalog database.
func NewStorageSink(db *sql.DB) *StorageSink {
	return &StorageSink{
		writer: storage.NewCatalogWriter(db),
		reader: storage.NewCatalogReader(db),
	}
}

func (s *StorageSink) WriteCatalog(cat *entity.Catalog, state, contentHash string) error {
	return s.writer.WriteCatalog(cat, state, contentHash)
}

func (s *StorageSink) DeleteUnit(unitPath string) error {
	return s.writer.DeleteUnit(unitPath)
}

func (s *StorageSink) LastContentHash(unitPath string) (string, error) {
	unit, err := s.reader.GetUnit(unitPath)
	if err != nil || unit == nil {
		return "", err
	}
	return unit.ContentHash, nil
}
