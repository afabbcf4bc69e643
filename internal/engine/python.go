package engine

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
)

// pythonBuilders maps handler local names to constructors, matching
// the definitions in queries/python.scm. Python has no visibility
// keywords, so everything is recorded public.
var pythonBuilders = map[string]BuildFunc{
	"function":        buildPythonCallable,
	"method":          buildPythonMethod,
	"class":           buildPythonClass,
	"module_constant": buildPythonConstant,
}

func buildPythonCallable(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), "python")
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, ".")
	e.Visibility = entity.VisibilityPublic
	e.Documentation = pythonDocstring(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildPythonMethod(ctx *Context) (*entity.Entity, error) {
	ent, err := buildPythonCallable(ctx)
	if err != nil {
		return nil, err
	}
	if owner, ok := ctx.CaptureText("class_name"); ok {
		ent.OwnerType = owner
	}
	return ent, nil
}

func buildPythonClass(ctx *Context) (*entity.Entity, error) {
	return buildPythonCallable(ctx)
}

func buildPythonConstant(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), "python")
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, ".")
	e.Visibility = entity.VisibilityPublic
	return &e, nil
}

// pythonDocstring reads the first statement of the node's body and
// returns its text when it is a bare string expression.
func pythonDocstring(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	expr := first.NamedChild(0)
	if expr == nil || expr.Kind() != "string" {
		return ""
	}
	return normalizeDocstring(string(source[expr.StartByte():expr.EndByte()]))
}

// normalizeDocstring strips the quoting from a docstring literal along
// with surrounding whitespace.
func normalizeDocstring(text string) string {
	for _, q := range [...]string{`"""`, "'''", `"`, "'"} {
		text = strings.TrimPrefix(text, q)
		text = strings.TrimSuffix(text, q)
	}
	return strings.TrimSpace(text)
}
