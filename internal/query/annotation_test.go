package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/entity"
)

// Test Plan for the annotation parser:
// - A fully annotated pattern yields handler, entity type, capture, description
// - Captures are collected in order of first appearance
// - Structural predicates are parsed; built-ins pass through untouched
// - Missing @handler fails with MissingHandlerError naming the line
// - Un-namespaced handler names fail with PatternError
// - Duplicate handlers within one text fail with DuplicateHandlerError
// - Unknown predicate operators and wrong arities fail at load
// - Predicates referencing unbound captures fail at load
// - Permissive mode: absent entity type defaults to Unknown
// - A blank line between annotations and pattern breaks the association
// - File header comments do not leak metadata into later patterns

const structDefinition = `
; @handler rust::struct_definition
; @entity_type Struct
; @capture struct
; @description Struct definitions with their visibility modifier
(struct_item
  (visibility_modifier)? @visibility
  name: (type_identifier) @name) @struct
`

// Test: A fully annotated pattern round-trips all metadata
func TestParse_FullAnnotationBlock(t *testing.T) {
	t.Parallel()

	defs, err := Parse(structDefinition)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, "rust::struct_definition", d.Handler)
	assert.Equal(t, "rust", d.Language)
	assert.Equal(t, "struct_definition", d.Name)
	assert.Equal(t, entity.TypeStruct, d.EntityType)
	assert.Equal(t, "struct", d.PrimaryCapture)
	assert.Equal(t, "Struct definitions with their visibility modifier", d.Description)
	assert.Equal(t, []string{"visibility", "name", "struct"}, d.Captures)
	assert.Empty(t, d.Predicates)
	assert.Equal(t, 6, d.Line)
	assert.Contains(t, d.Pattern, "struct_item")
}

// Test: Structural predicates parse into op, capture and kind
func TestParse_StructuralPredicates(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::free_function
; @entity_type Function
; @capture func
((function_item
   name: (identifier) @name) @func
 (#not-has-ancestor? @func impl_item))
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	require.Len(t, d.Predicates, 1)
	p := d.Predicates[0]
	assert.Equal(t, OpNotHasAncestor, p.Op)
	assert.Equal(t, "func", p.Capture)
	assert.Equal(t, "impl_item", p.Kind)
	assert.True(t, p.Negated)
	assert.Equal(t, []string{"name", "func"}, d.Captures)
}

// Test: Built-in predicates stay in the pattern for tree-sitter
func TestParse_BuiltinPredicatesPassThrough(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::named_main
; @entity_type Function
; @capture func
((function_item name: (identifier) @name) @func
 (#eq? @name "main"))
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Empty(t, defs[0].Predicates)
	assert.Contains(t, defs[0].Pattern, "#eq?")
}

// Test: A pattern without @handler names its line in the error
func TestParse_MissingHandler(t *testing.T) {
	t.Parallel()

	src := `
; @entity_type Struct
; @capture struct
(struct_item name: (type_identifier) @name) @struct
`
	_, err := Parse(src)
	require.Error(t, err)

	var missing *MissingHandlerError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 4, missing.Line)
}

// Test: A bare pattern with no annotations at all is also an error
func TestParse_NoAnnotationBlock(t *testing.T) {
	t.Parallel()

	_, err := Parse(`(struct_item) @struct`)
	var missing *MissingHandlerError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, missing.Line)
}

// Test: Handler names must be namespaced language::name
func TestParse_UnnamespacedHandler(t *testing.T) {
	t.Parallel()

	src := `
; @handler struct_definition
; @capture struct
(struct_item) @struct
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "struct_definition", perr.Handler)
	assert.Contains(t, perr.Reason, "namespaced")
}

// Test: Two patterns claiming one handler fail the whole set
func TestParse_DuplicateHandler(t *testing.T) {
	t.Parallel()

	src := structDefinition + `
; @handler rust::struct_definition
; @capture union
(union_item name: (type_identifier) @name) @union
`
	_, err := Parse(src)
	var dup *DuplicateHandlerError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "rust::struct_definition", dup.Handler)
}

// Test: Unknown predicate operators fail at load time
func TestParse_UnknownPredicateOperator(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::bad
; @capture func
((function_item) @func (#inside-macro? @func impl_item))
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "rust::bad", perr.Handler)
	assert.Contains(t, perr.Reason, "unknown predicate #inside-macro?")
}

// Test: Predicate arity is exactly two
func TestParse_PredicateArity(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::bad
; @capture func
((function_item) @func (#not-has-child? @func))
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "expects 2 arguments, got 1")
}

// Test: Predicates must reference captures the pattern binds
func TestParse_PredicateUnboundCapture(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::bad
; @capture func
((function_item) @func (#not-has-ancestor? @missing impl_item))
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "undefined capture @missing")
}

// Test: Declared primary capture must exist in the pattern
func TestParse_PrimaryCaptureUnbound(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::bad
; @capture body
(function_item) @func
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "primary capture @body")
}

// Test: Absent entity type defaults to Unknown, absent capture to first
func TestParse_PermissiveDefaults(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::mystery
(macro_definition name: (identifier) @name) @macro
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, entity.TypeUnknown, d.EntityType)
	assert.Empty(t, d.PrimaryCapture)
	assert.Equal(t, "name", d.Anchor())
}

// Test: Unrecognized entity type labels stay Unknown but keep the label
func TestParse_UnrecognizedEntityType(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::odd
; @entity_type Gadget
; @capture m
(macro_definition) @m
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, entity.TypeUnknown, defs[0].EntityType)
	assert.Equal(t, "Gadget", defs[0].TypeLabel)
}

// Test: A blank line between annotations and pattern severs them
func TestParse_BlankLineBreaksAssociation(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::orphaned
; @capture s

(struct_item) @s
`
	_, err := Parse(src)
	var missing *MissingHandlerError
	require.ErrorAs(t, err, &missing)
}

// Test: File header comments do not bind to later patterns
func TestParse_HeaderCommentIgnored(t *testing.T) {
	t.Parallel()

	src := `; Structural patterns for Rust entities.
; Each pattern carries its own handler metadata.

; @handler rust::macro_definition
; @entity_type Macro
; @capture macro
(macro_definition name: (identifier) @name) @macro
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "rust::macro_definition", defs[0].Handler)
}

// Test: Patterns come back in definition order
func TestParse_PreservesOrder(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::first
; @capture a
(struct_item) @a

; @handler rust::second
; @capture b
(enum_item) @b

; @handler rust::third
; @capture c
(union_item) @c
`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "rust::first", defs[0].Handler)
	assert.Equal(t, "rust::second", defs[1].Handler)
	assert.Equal(t, "rust::third", defs[2].Handler)
}

// Test: Unterminated patterns fail with their starting line
func TestParse_UnterminatedPattern(t *testing.T) {
	t.Parallel()

	src := `
; @handler rust::broken
; @capture s
(struct_item (field_declaration_list @s
`
	_, err := Parse(src)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "unterminated")
}

// Test: Stray text outside patterns is rejected
func TestParse_StrayText(t *testing.T) {
	t.Parallel()

	_, err := Parse("struct_item @s\n")
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Reason, "unexpected character")
}
