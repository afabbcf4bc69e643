package storage

// Database row representations for the entity catalog. One struct per
// table, fields in column order so scans stay mechanical.

// UnitRecord represents one row of the units table.
type UnitRecord struct {
	UnitPath     string // Primary key: relative path of the source unit
	Language     string
	ContentHash  string // SHA-256 of the unit content
	State        string // Terminal pipeline state (complete, failed)
	RunID        string // UUID of the extraction run that wrote this row
	EntityCount  int
	WarningCount int
	ExtractedAt  string // ISO 8601
}

// EntityRecord represents one row of the entities table.
type EntityRecord struct {
	EntityID      string // UUID primary key
	UnitPath      string // Foreign key to units
	Handler       string
	EntityType    string
	Name          string
	QualifiedName string
	ParentScope   string
	Language      string
	StartLine     int // 1-based
	StartColumn   int // 1-based
	EndLine       int
	EndColumn     int
	StartByte     int
	EndByte       int
	Visibility    string
	Documentation string
	OwnerType     string
	TraitName     string
	FieldType     string
	Position      int // Discovery order within the unit
}

// WarningRecord represents one row of the warnings table.
type WarningRecord struct {
	WarningID string // UUID primary key
	UnitPath  string // Foreign key to units
	Handler   string
	Message   string
	Position  int // Report order within the unit
}
