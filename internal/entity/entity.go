package entity

import "fmt"

// Type classifies an extracted entity.
type Type string

const (
	TypeFunction    Type = "function"
	TypeMethod      Type = "method"
	TypeClass       Type = "class"
	TypeStruct      Type = "struct"
	TypeInterface   Type = "interface"
	TypeTrait       Type = "trait"
	TypeImpl        Type = "impl"
	TypeEnum        Type = "enum"
	TypeModule      Type = "module"
	TypePackage     Type = "package"
	TypeConstant    Type = "constant"
	TypeStatic      Type = "static"
	TypeUnion       Type = "union"
	TypeExternBlock Type = "extern_block"
	TypeVariable    Type = "variable"
	TypeTypeAlias   Type = "type_alias"
	TypeMacro       Type = "macro"
	TypeProperty    Type = "property"
	TypeEnumVariant Type = "enum_variant"

	// TypeUnknown marks entities whose definition omitted an entity type.
	// Dispatch records these with a classification warning instead of failing.
	TypeUnknown Type = "unknown"
)

// ParseType converts an annotation value like "Function" or "EnumVariant"
// to its Type. Unrecognized values map to TypeUnknown with ok=false so
// callers can decide whether to warn.
func ParseType(s string) (Type, bool) {
	switch s {
	case "Function":
		return TypeFunction, true
	case "Method":
		return TypeMethod, true
	case "Class":
		return TypeClass, true
	case "Struct":
		return TypeStruct, true
	case "Interface":
		return TypeInterface, true
	case "Trait":
		return TypeTrait, true
	case "Impl":
		return TypeImpl, true
	case "Enum":
		return TypeEnum, true
	case "Module":
		return TypeModule, true
	case "Package":
		return TypePackage, true
	case "Constant":
		return TypeConstant, true
	case "Static":
		return TypeStatic, true
	case "Union":
		return TypeUnion, true
	case "ExternBlock":
		return TypeExternBlock, true
	case "Variable":
		return TypeVariable, true
	case "TypeAlias":
		return TypeTypeAlias, true
	case "Macro":
		return TypeMacro, true
	case "Property":
		return TypeProperty, true
	case "EnumVariant":
		return TypeEnumVariant, true
	default:
		return TypeUnknown, false
	}
}

// Visibility describes how widely an entity is exported.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
)

// Location identifies an entity's span within its source unit.
// Lines and columns are 1-based; byte offsets index the unit's content.
type Location struct {
	StartLine   uint32 `json:"start_line"`
	StartColumn uint32 `json:"start_column"`
	EndLine     uint32 `json:"end_line"`
	EndColumn   uint32 `json:"end_column"`
	StartByte   uint32 `json:"start_byte"`
	EndByte     uint32 `json:"end_byte"`
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", l.StartLine, l.StartColumn, l.EndLine, l.EndColumn)
}

// Entity is one normalized structural fact extracted from a source unit.
// Entities are immutable after construction; relational fields (OwnerType,
// TraitName) are populated from captures in the same match, never by a
// separate resolution pass.
type Entity struct {
	Handler       string     `json:"handler"`
	Type          Type       `json:"entity_type"`
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualified_name"`
	ParentScope   string     `json:"parent_scope,omitempty"`
	Unit          string     `json:"unit"`
	Language      string     `json:"language"`
	Location      Location   `json:"location"`
	Visibility    Visibility `json:"visibility,omitempty"`
	Documentation string     `json:"documentation,omitempty"`

	// OwnerType names the type a Method or Impl belongs to.
	OwnerType string `json:"owner_type,omitempty"`
	// TraitName names the implemented trait for trait impls and their methods.
	TraitName string `json:"trait_name,omitempty"`
	// FieldType carries the declared type for fields, constants and statics.
	FieldType string `json:"field_type,omitempty"`
}

// Key returns the identity tuple used by the catalog's duplicate check.
func (e *Entity) Key() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d", e.Type, e.Name, e.Handler, e.Location.StartByte, e.Location.EndByte)
}
