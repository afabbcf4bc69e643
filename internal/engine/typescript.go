package engine

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
)

// typescriptBuilders maps handler local names to constructors,
// matching the definitions in queries/typescript.scm. The same table
// serves the tsx grammar.
var typescriptBuilders = map[string]BuildFunc{
	"function":   buildTSDeclaration,
	"class":      buildTSDeclaration,
	"interface":  buildTSDeclaration,
	"enum":       buildTSDeclaration,
	"type_alias": buildTSDeclaration,
	"method":     buildTSMethod,
}

// buildTSDeclaration covers every top-level declaration form, where
// visibility is a matter of export status.
func buildTSDeclaration(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), ctx.Language())
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, ".")
	if hasAncestor(ctx.Node(), "export_statement") {
		e.Visibility = entity.VisibilityPublic
	} else {
		e.Visibility = entity.VisibilityPrivate
	}
	return &e, nil
}

func buildTSMethod(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), ctx.Language())
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, ".")
	e.Visibility = tsMethodVisibility(ctx.Node())
	if owner, ok := ctx.CaptureText("class_name"); ok {
		e.OwnerType = owner
	}
	return &e, nil
}

// tsMethodVisibility reads the accessibility modifier off a method
// definition. Methods without one are public.
func tsMethodVisibility(node *sitter.Node) entity.Visibility {
	if node == nil {
		return entity.VisibilityPublic
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "accessibility_modifier" {
			continue
		}
		if modifier := child.Child(0); modifier != nil {
			switch modifier.Kind() {
			case "private":
				return entity.VisibilityPrivate
			case "protected":
				return entity.VisibilityProtected
			}
		}
		return entity.VisibilityPublic
	}
	return entity.VisibilityPublic
}
