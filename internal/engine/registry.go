package engine

import (
	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/query"
)

// BuildFunc turns one match into an entity. Returning (nil, nil) skips
// the match silently, the deliberate choice for matches the constructor
// recognizes as out of scope. An error becomes a catalog warning for
// that match alone.
type BuildFunc func(*Context) (*entity.Entity, error)

// Handler binds a loaded definition to the constructor that realizes
// its entities.
type Handler struct {
	Definition *query.Definition
	Build      BuildFunc
}

// Registry holds one language's handlers, keyed by namespaced name and
// ordered by registration. It is immutable after construction, so
// concurrent extraction tasks share it by reference.
type Registry struct {
	language string
	ordered  []*Handler
	byName   map[string]*Handler
}

// NewRegistry pairs each definition in the set with its constructor.
// Definitions without a specialized constructor get the generic one, so
// query files added at runtime produce entities without recompilation.
func NewRegistry(set *query.Set) *Registry {
	specialized := buildersFor(set.Language)
	r := &Registry{
		language: set.Language,
		byName:   make(map[string]*Handler),
	}
	for _, def := range set.Definitions() {
		build, ok := specialized[def.Name]
		if !ok {
			build = buildGeneric
		}
		h := &Handler{Definition: def, Build: build}
		r.ordered = append(r.ordered, h)
		r.byName[def.Handler] = h
	}
	return r
}

// Handlers returns the handlers in registration order.
func (r *Registry) Handlers() []*Handler { return r.ordered }

// Get looks up a handler by its namespaced name.
func (r *Registry) Get(handler string) (*Handler, bool) {
	h, ok := r.byName[handler]
	return h, ok
}

// Language returns the language the registry serves.
func (r *Registry) Language() string { return r.language }

// Len returns the number of registered handlers.
func (r *Registry) Len() int { return len(r.ordered) }

func buildersFor(language string) map[string]BuildFunc {
	switch language {
	case "rust":
		return rustBuilders
	case "python":
		return pythonBuilders
	case "typescript", "tsx":
		return typescriptBuilders
	default:
		return nil
	}
}

// buildGeneric serves definitions that have no specialized constructor.
// It reads the conventional capture names, so a hand-written pattern
// that binds @name plus any of the ownership captures yields a usable
// entity out of the box.
func buildGeneric(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}

	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), ctx.Language())
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, separatorFor(ctx.Language()))

	for _, owner := range [...]string{"impl_type", "class_name", "struct_name", "enum_name"} {
		if text, ok := ctx.CaptureText(owner); ok {
			e.OwnerType = text
			break
		}
	}
	if trait, ok := ctx.CaptureText("trait_name"); ok {
		e.TraitName = trait
	}
	return &e, nil
}
