package engine

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/query"
)

// State tracks one unit's progress through extraction.
type State string

const (
	// StateLoaded means the unit's tree and query set are paired but no
	// pattern has run yet.
	StateLoaded State = "loaded"
	// StateMatching means patterns are being applied and matches
	// accumulated.
	StateMatching State = "matching"
	// StateDispatching means accumulated matches are being handed to
	// their constructors.
	StateDispatching State = "dispatching"
	// StateComplete means every match was dispatched; warnings may have
	// been recorded along the way.
	StateComplete State = "complete"
	// StateFailed means matching aborted, either on a matcher fault or
	// on cancellation. No entities were dispatched.
	StateFailed State = "failed"
)

// Result is the outcome of extracting one unit. A Failed result
// carries the fatal error and an empty catalog; a Complete result may
// still carry per-entity warnings on the catalog.
type Result struct {
	State   State
	Catalog *entity.Catalog
	Matches int
	Err     error
}

// Engine applies one language's query set to parsed units. Construction
// compiles every pattern once; afterwards the engine is immutable and
// safe for concurrent use across units.
type Engine struct {
	language string
	registry *Registry
	matcher  *matcher
}

// New compiles the set's patterns against the grammar and wires each
// definition to its constructor. Any pattern the grammar rejects fails
// construction with a PatternError naming the definition.
func New(set *query.Set, grammar *sitter.Language) (*Engine, error) {
	reg := NewRegistry(set)
	m, err := newMatcher(reg, grammar)
	if err != nil {
		return nil, err
	}
	return &Engine{language: set.Language, registry: reg, matcher: m}, nil
}

// Close releases the compiled queries.
func (e *Engine) Close() { e.matcher.close() }

// Language returns the language the engine serves.
func (e *Engine) Language() string { return e.language }

// Registry exposes the wired handlers.
func (e *Engine) Registry() *Registry { return e.registry }

// Extract runs the full pipeline for one unit: match every pattern in
// registration order, then dispatch the accumulated matches in the
// order they were found. Matching is the only phase that can fail the
// unit; dispatch faults degrade to catalog warnings so one bad match
// never discards its neighbors.
func (e *Engine) Extract(ctx context.Context, unit string, root *sitter.Node, content []byte) *Result {
	catalog := entity.NewCatalog(unit, e.language)
	res := &Result{State: StateLoaded, Catalog: catalog}

	res.State = StateMatching
	matches, err := e.matcher.run(ctx, root, content)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}
	res.Matches = len(matches)

	res.State = StateDispatching
	for _, m := range matches {
		e.dispatch(m, catalog, content)
	}

	res.State = StateComplete
	return res
}

func (e *Engine) dispatch(m *Match, catalog *entity.Catalog, content []byte) {
	h, ok := e.registry.Get(m.Handler)
	if !ok {
		catalog.Warn(m.Handler, "%v", &UnknownHandlerError{Handler: m.Handler})
		return
	}

	anchor := m.Captures[h.Definition.Anchor()]
	if anchor == nil {
		catalog.Warn(m.Handler, "%v", &MissingCaptureError{Handler: m.Handler, Capture: h.Definition.Anchor()})
		return
	}

	if h.Definition.EntityType == entity.TypeUnknown {
		catalog.Warn(m.Handler, "definition carries no recognized entity type, recording match as unknown")
	}

	bctx := &Context{
		handler:  h,
		unit:     catalog.Unit,
		language: e.language,
		source:   content,
		captures: m.Captures,
	}

	ent, err := h.Build(bctx)
	if err != nil {
		catalog.Warn(m.Handler, "%v", err)
		return
	}
	if ent == nil {
		return
	}

	if err := catalog.Add(*ent); err != nil {
		catalog.Warn(m.Handler, "%v", err)
	}
}
