package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/parsers"
	"github.com/quarry-dev/quarry/internal/query"
)

// Test Plan for the extraction pipeline:
// - A clean unit runs to Complete with its matches counted
// - The Point/Shape/Drawable unit yields exactly its five entities
// - Re-running extraction over the same tree is deterministic
// - Free functions and inherent-impl methods keep disjoint handlers
// - A trait impl never registers as an inherent impl
// - A match missing its primary capture warns and spares the rest
// - A definition without an entity type still records, with a warning
// - A cancelled context fails the unit before anything is dispatched
// - Patterns the grammar rejects fail engine construction, not matching
// - Duplicate matches on one anchor abort the unit as a matcher fault

func newRustEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := query.LoadEmbedded()
	require.NoError(t, err)
	set, ok := store.Set("rust")
	require.True(t, ok)
	grammar, ok := parsers.Lookup("rust")
	require.True(t, ok)
	eng, err := New(set, grammar)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func extractRust(t *testing.T, eng *Engine, source string) *Result {
	t.Helper()
	src, err := parsers.Parse("unit.rs", "rust", []byte(source))
	require.NoError(t, err)
	t.Cleanup(src.Close)
	return eng.Extract(context.Background(), "unit.rs", src.Root(), src.Content)
}

func findEntity(t *testing.T, entities []entity.Entity, name string) entity.Entity {
	t.Helper()
	for _, e := range entities {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no entity named %q in %d entities", name, len(entities))
	return entity.Entity{}
}

func handlersOf(entities []entity.Entity, name string) []string {
	var handlers []string
	for _, e := range entities {
		if e.Name == name {
			handlers = append(handlers, e.Handler)
		}
	}
	return handlers
}

// Test: A clean unit runs to Complete with its matches counted
func TestEngine_CompletesCleanUnit(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	res := extractRust(t, eng, "fn main() {}\n")

	assert.Equal(t, StateComplete, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.Matches)
	require.Equal(t, 1, res.Catalog.Len())
	assert.Empty(t, res.Catalog.Warnings())

	main := res.Catalog.Entities()[0]
	assert.Equal(t, "rust::free_function", main.Handler)
	assert.Equal(t, entity.TypeFunction, main.Type)
	assert.Equal(t, "main", main.Name)
}

// Test: The Point/Shape/Drawable unit yields exactly its five entities
func TestEngine_PointShapeDrawable(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	source := `/// A point in the plane.
pub struct Point;

pub enum Shape {}

pub trait Drawable {}

impl Point {
    pub fn area(&self) -> f64 {
        0.0
    }
}
`
	res := extractRust(t, eng, source)
	require.Equal(t, StateComplete, res.State)
	require.Empty(t, res.Catalog.Warnings())

	entities := res.Catalog.Entities()
	require.Len(t, entities, 5)

	implBlock := findEntity(t, entities, "impl Point")
	assert.Equal(t, entity.TypeImpl, implBlock.Type)
	assert.Equal(t, "Point", implBlock.OwnerType)
	assert.Empty(t, implBlock.TraitName)

	area := findEntity(t, entities, "area")
	assert.Equal(t, entity.TypeMethod, area.Type)
	assert.Equal(t, "Point::area", area.QualifiedName)
	assert.Equal(t, "Point", area.OwnerType)
	assert.Empty(t, area.TraitName)
	assert.Equal(t, entity.VisibilityPublic, area.Visibility)

	point := findEntity(t, entities, "Point")
	assert.Equal(t, entity.TypeStruct, point.Type)
	assert.Equal(t, "A point in the plane.", point.Documentation)

	assert.Equal(t, entity.TypeEnum, findEntity(t, entities, "Shape").Type)
	assert.Equal(t, entity.TypeTrait, findEntity(t, entities, "Drawable").Type)
}

// Test: Re-running extraction over the same tree is deterministic
func TestEngine_DeterministicAcrossRuns(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	source := `mod geometry {
    pub fn distance() -> f64 {
        0.0
    }

    pub struct Grid {
        pub cells: u32,
    }
}
`
	src, err := parsers.Parse("unit.rs", "rust", []byte(source))
	require.NoError(t, err)
	t.Cleanup(src.Close)

	first := eng.Extract(context.Background(), "unit.rs", src.Root(), src.Content)
	second := eng.Extract(context.Background(), "unit.rs", src.Root(), src.Content)

	require.Equal(t, StateComplete, first.State)
	require.Equal(t, StateComplete, second.State)
	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, first.Catalog.Entities(), second.Catalog.Entities())
}

// Test: Free functions and inherent-impl methods keep disjoint handlers
func TestEngine_FreeFunctionMethodExclusive(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	source := `fn standalone() {}

struct Widget;

impl Widget {
    fn render(&self) {}
}
`
	res := extractRust(t, eng, source)
	require.Equal(t, StateComplete, res.State)
	entities := res.Catalog.Entities()

	assert.Equal(t, []string{"rust::free_function"}, handlersOf(entities, "standalone"))
	assert.Equal(t, []string{"rust::method_in_inherent_impl"}, handlersOf(entities, "render"))
}

// Test: A trait impl never registers as an inherent impl
func TestEngine_TraitImplInherentImplExclusive(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	source := `pub struct Canvas;

pub trait Render {
    fn draw(&self);
}

impl Render for Canvas {
    fn draw(&self) {}
}
`
	res := extractRust(t, eng, source)
	require.Equal(t, StateComplete, res.State)
	entities := res.Catalog.Entities()

	var implHandlers []string
	for _, e := range entities {
		if e.Type == entity.TypeImpl {
			implHandlers = append(implHandlers, e.Handler)
		}
	}
	assert.Equal(t, []string{"rust::trait_impl"}, implHandlers)

	traitImpl := findEntity(t, entities, "<Canvas as Render>")
	assert.Equal(t, "Canvas", traitImpl.OwnerType)
	assert.Equal(t, "Render", traitImpl.TraitName)

	assert.Equal(t,
		[]string{"rust::method_in_trait_impl", "rust::method_in_trait_def"},
		handlersOf(entities, "draw"))
}

// Test: A match missing its primary capture warns and spares the rest
func TestEngine_MissingCaptureWarnsWithoutCascade(t *testing.T) {
	t.Parallel()

	defs := `; @handler rust::exported_marker
; @entity_type Function
; @capture marker
; @description Anchors on the visibility modifier, which private items lack
(function_item
  (visibility_modifier)? @marker
  name: (identifier) @name) @func

; @handler rust::struct_definition
; @entity_type Struct
; @capture struct
(struct_item
  name: (type_identifier) @name) @struct
`
	store := query.NewStore()
	require.NoError(t, store.LoadText("rust", defs))
	set, ok := store.Set("rust")
	require.True(t, ok)
	grammar, ok := parsers.Lookup("rust")
	require.True(t, ok)
	eng, err := New(set, grammar)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	source := `pub fn exported() {}

fn hidden() {}

struct Marker;
`
	res := extractRust(t, eng, source)

	require.Equal(t, StateComplete, res.State)
	assert.Equal(t, 3, res.Matches)
	require.Equal(t, 2, res.Catalog.Len())

	names := []string{res.Catalog.Entities()[0].Name, res.Catalog.Entities()[1].Name}
	assert.ElementsMatch(t, []string{"exported", "Marker"}, names)

	warnings := res.Catalog.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "rust::exported_marker", warnings[0].Handler)
	assert.Contains(t, warnings[0].Message, "marker")
}

// Test: A definition without an entity type still records, with a warning
func TestEngine_UnknownEntityTypeWarnsAndRecords(t *testing.T) {
	t.Parallel()

	defs := `; @handler rust::bare_function
; @capture func
(function_item
  name: (identifier) @name) @func
`
	store := query.NewStore()
	require.NoError(t, store.LoadText("rust", defs))
	set, ok := store.Set("rust")
	require.True(t, ok)
	grammar, ok := parsers.Lookup("rust")
	require.True(t, ok)
	eng, err := New(set, grammar)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	res := extractRust(t, eng, "fn probe() {}\n")

	require.Equal(t, StateComplete, res.State)
	require.Equal(t, 1, res.Catalog.Len())

	probe := res.Catalog.Entities()[0]
	assert.Equal(t, entity.TypeUnknown, probe.Type)
	assert.Equal(t, "probe", probe.Name)

	warnings := res.Catalog.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "rust::bare_function", warnings[0].Handler)
	assert.Contains(t, warnings[0].Message, "entity type")
}

// Test: A cancelled context fails the unit before anything is dispatched
func TestEngine_CancelledContextFailsUnit(t *testing.T) {
	t.Parallel()
	eng := newRustEngine(t)

	src, err := parsers.Parse("unit.rs", "rust", []byte("fn main() {}\n"))
	require.NoError(t, err)
	t.Cleanup(src.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := eng.Extract(ctx, "unit.rs", src.Root(), src.Content)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, res.Catalog.Len())
}

// Test: Patterns the grammar rejects fail engine construction, not matching
func TestEngine_UncompilablePatternFailsConstruction(t *testing.T) {
	t.Parallel()

	defs := `; @handler rust::broken
; @entity_type Function
; @capture func
(flurble_item
  name: (identifier) @name) @func
`
	store := query.NewStore()
	require.NoError(t, store.LoadText("rust", defs))
	set, ok := store.Set("rust")
	require.True(t, ok)
	grammar, ok := parsers.Lookup("rust")
	require.True(t, ok)

	eng, err := New(set, grammar)
	require.Error(t, err)
	assert.Nil(t, eng)

	var patternErr *query.PatternError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, "rust::broken", patternErr.Handler)
}

// Test: Duplicate matches on one anchor abort the unit as a matcher fault
func TestEngine_DuplicateAnchorIsMatcherFault(t *testing.T) {
	t.Parallel()

	defs := `; @handler rust::struct_definition
; @entity_type Struct
; @capture struct
(struct_item
  name: (type_identifier) @name) @struct
`
	store := query.NewStore()
	require.NoError(t, store.LoadText("rust", defs))
	set, ok := store.Set("rust")
	require.True(t, ok)
	grammar, ok := parsers.Lookup("rust")
	require.True(t, ok)
	eng, err := New(set, grammar)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	// Register the same compiled pattern twice so the second pass
	// revisits every anchor the first already claimed.
	dup, qerr := sitter.NewQuery(grammar, set.Definitions()[0].Pattern)
	require.Nil(t, qerr)
	eng.matcher.patterns = append(eng.matcher.patterns, &compiledPattern{
		handler: eng.registry.Handlers()[0],
		query:   dup,
	})

	res := extractRust(t, eng, "struct Solo;\n")

	assert.Equal(t, StateFailed, res.State)
	var matchErr *MatchError
	require.ErrorAs(t, res.Err, &matchErr)
	assert.Equal(t, "rust::struct_definition", matchErr.Handler)
	assert.Zero(t, res.Catalog.Len())
}
