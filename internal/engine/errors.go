package engine

import "fmt"

// UnknownHandlerError reports a match tagged with a handler name that no
// registered constructor claims. Dispatch must never drop a match
// silently, so this surfaces as an engine fault.
type UnknownHandlerError struct {
	Handler string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("no constructor registered for handler %q", e.Handler)
}

// MissingCaptureError reports a required capture absent from one match.
// It is recoverable: the dispatcher records it as a catalog warning and
// continues with the remaining matches.
type MissingCaptureError struct {
	Handler string
	Capture string
}

func (e *MissingCaptureError) Error() string {
	return fmt.Sprintf("handler %s: match is missing required capture @%s", e.Handler, e.Capture)
}

// MatchError reports an internal matcher fault, such as a duplicate
// match for one anchor node. It indicates an engine bug, not bad input.
type MatchError struct {
	Handler string
	Detail  string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("matcher fault in %s: %s", e.Handler, e.Detail)
}
