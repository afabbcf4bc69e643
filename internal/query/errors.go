package query

import "fmt"

// MissingHandlerError reports a pattern whose preceding metadata block
// lacks an @handler line. Line is the 1-based line of the pattern's
// opening parenthesis in the definition text.
type MissingHandlerError struct {
	Line int
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("pattern at line %d has no @handler annotation", e.Line)
}

// DuplicateHandlerError reports two patterns claiming the same handler
// name within one language's query set.
type DuplicateHandlerError struct {
	Handler string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("duplicate handler %q in query set", e.Handler)
}

// PatternError reports a structurally invalid definition: an
// un-namespaced handler name, an unknown predicate operator, a predicate
// with the wrong arity, or a predicate referencing a capture the pattern
// never binds. These fail at load time, never during matching.
type PatternError struct {
	Handler string
	Line    int
	Reason  string
}

func (e *PatternError) Error() string {
	if e.Handler == "" {
		return fmt.Sprintf("invalid pattern at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid pattern %q at line %d: %s", e.Handler, e.Line, e.Reason)
}

// LoadError wraps any failure that blocks a language's query set from
// loading. Extraction for that language cannot proceed.
type LoadError struct {
	Language string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s query set: %v", e.Language, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
