package query

import (
	"fmt"
	"strings"

	"github.com/quarry-dev/quarry/internal/entity"
)

// PredicateOp names a structural predicate operator.
type PredicateOp string

const (
	OpHasChild       PredicateOp = "has-child?"
	OpNotHasChild    PredicateOp = "not-has-child?"
	OpHasAncestor    PredicateOp = "has-ancestor?"
	OpNotHasAncestor PredicateOp = "not-has-ancestor?"
)

// Predicate is one structural filter attached to a pattern. The matcher
// evaluates it against the anchor capture's immediate tree context after
// the pattern itself matches.
type Predicate struct {
	Op      PredicateOp `json:"op"`
	Capture string      `json:"capture"`
	Kind    string      `json:"kind"`
	Negated bool        `json:"negated"`
}

func (p Predicate) String() string {
	return fmt.Sprintf("(#%s @%s %s)", p.Op, p.Capture, p.Kind)
}

// Definition pairs one structural pattern with its handler metadata.
// Definitions are immutable once loaded; the matcher and dispatcher hold
// shared read references only.
type Definition struct {
	// Handler is the namespaced name, e.g. "rust::free_function".
	Handler string `json:"handler"`
	// Language and Name are the two halves of Handler.
	Language string `json:"language"`
	Name     string `json:"name"`

	EntityType entity.Type `json:"entity_type"`
	// TypeLabel preserves the raw @entity_type value so load-time
	// diagnostics can name unrecognized labels.
	TypeLabel string `json:"type_label,omitempty"`

	// PrimaryCapture names the capture whose node anchors the entity.
	// Empty means the pattern's first capture is used.
	PrimaryCapture string `json:"primary_capture,omitempty"`
	Description    string `json:"description,omitempty"`

	// Pattern is the S-expression text handed to the tree-sitter query
	// compiler, predicates included.
	Pattern string `json:"pattern"`
	// Captures lists capture names in order of first appearance.
	Captures []string `json:"captures"`
	// Predicates are the parsed structural filters from Pattern.
	Predicates []Predicate `json:"predicates,omitempty"`

	// Line is the 1-based line of the pattern's opening parenthesis in
	// the definition text it was loaded from.
	Line int `json:"line"`
}

// HasCapture reports whether the pattern binds the named capture.
func (d *Definition) HasCapture(name string) bool {
	for _, c := range d.Captures {
		if c == name {
			return true
		}
	}
	return false
}

// Anchor returns the capture used to position the entity: the declared
// primary capture, falling back to the pattern's first capture.
func (d *Definition) Anchor() string {
	if d.PrimaryCapture != "" {
		return d.PrimaryCapture
	}
	if len(d.Captures) > 0 {
		return d.Captures[0]
	}
	return ""
}

// validate enforces the structural invariants that must hold before a
// definition enters a registry.
func (d *Definition) validate() error {
	if d.Handler == "" {
		return &MissingHandlerError{Line: d.Line}
	}
	lang, name, ok := splitHandler(d.Handler)
	if !ok {
		return &PatternError{
			Handler: d.Handler,
			Line:    d.Line,
			Reason:  "handler name must be namespaced as language::name",
		}
	}
	d.Language = lang
	d.Name = name

	if len(d.Captures) == 0 {
		return &PatternError{
			Handler: d.Handler,
			Line:    d.Line,
			Reason:  "pattern binds no captures",
		}
	}
	if d.PrimaryCapture != "" && !d.HasCapture(d.PrimaryCapture) {
		return &PatternError{
			Handler: d.Handler,
			Line:    d.Line,
			Reason:  fmt.Sprintf("primary capture @%s is not bound by the pattern", d.PrimaryCapture),
		}
	}
	for _, p := range d.Predicates {
		if !d.HasCapture(p.Capture) {
			return &PatternError{
				Handler: d.Handler,
				Line:    d.Line,
				Reason:  fmt.Sprintf("predicate %s references undefined capture @%s", p, p.Capture),
			}
		}
	}
	return nil
}

func splitHandler(handler string) (language, name string, ok bool) {
	idx := strings.Index(handler, "::")
	if idx <= 0 || idx+2 >= len(handler) {
		return "", "", false
	}
	return handler[:idx], handler[idx+2:], true
}
