package engine

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
)

// Context hands one match to an entity constructor: the anchor node,
// the full capture set, and the unit's source text. Constructors read
// captures by the names the pattern bound; nothing here mutates the
// tree.
type Context struct {
	handler  *Handler
	unit     string
	language string
	source   []byte
	captures map[string]*sitter.Node
}

// Node returns the node bound to the handler's primary capture.
func (c *Context) Node() *sitter.Node {
	return c.captures[c.handler.Definition.Anchor()]
}

// Capture returns the node bound to a capture name, if the match
// produced one. Optional captures (a quantified visibility modifier,
// say) are legitimately absent.
func (c *Context) Capture(name string) (*sitter.Node, bool) {
	node, ok := c.captures[name]
	if !ok || node == nil {
		return nil, false
	}
	return node, true
}

// Text returns the source spanned by a node.
func (c *Context) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

// CaptureText returns the text of a named capture.
func (c *Context) CaptureText(name string) (string, bool) {
	node, ok := c.Capture(name)
	if !ok {
		return "", false
	}
	return c.Text(node), true
}

// RequireText returns the text of a capture the constructor cannot do
// without. Its absence is a per-entity fault, reported against the
// handler, never a reason to abandon the unit.
func (c *Context) RequireText(name string) (string, error) {
	text, ok := c.CaptureText(name)
	if !ok {
		return "", &MissingCaptureError{Handler: c.handler.Definition.Handler, Capture: name}
	}
	return text, nil
}

// Unit returns the path of the source unit being extracted.
func (c *Context) Unit() string { return c.unit }

// Language returns the grammar the unit was parsed with.
func (c *Context) Language() string { return c.language }

// Source returns the unit's raw content.
func (c *Context) Source() []byte { return c.source }

// Location converts the anchor node's span to 1-based line and column
// coordinates plus the byte range.
func (c *Context) Location() entity.Location {
	node := c.Node()
	if node == nil {
		return entity.Location{}
	}
	start := node.StartPosition()
	end := node.EndPosition()
	return entity.Location{
		StartLine:   uint32(start.Row) + 1,
		StartColumn: uint32(start.Column) + 1,
		EndLine:     uint32(end.Row) + 1,
		EndColumn:   uint32(end.Column) + 1,
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}

// NewEntity seeds an entity with everything the definition and anchor
// already determine. Constructors fill in the name-dependent fields.
func (c *Context) NewEntity(name string) entity.Entity {
	return entity.Entity{
		Handler:  c.handler.Definition.Handler,
		Type:     c.handler.Definition.EntityType,
		Name:     name,
		Unit:     c.unit,
		Language: c.language,
		Location: c.Location(),
	}
}
