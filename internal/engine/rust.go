package engine

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/entity"
)

// rustBuilders maps handler local names to constructors, matching the
// definitions in queries/rust.scm.
var rustBuilders = map[string]BuildFunc{
	"free_function":                        buildRustFreeFunction,
	"inherent_impl":                        buildRustInherentImpl,
	"trait_impl":                           buildRustTraitImpl,
	"method_in_inherent_impl":              buildRustInherentMethod,
	"method_in_trait_impl":                 buildRustTraitImplMethod,
	"associated_function_in_inherent_impl": buildRustAssociatedFunction,
	"struct_definition":                    buildRustItem,
	"enum_definition":                      buildRustItem,
	"trait_definition":                     buildRustItem,
	"module_declaration":                   buildRustItem,
	"union_definition":                     buildRustItem,
	"struct_field":                         buildRustStructField,
	"enum_variant":                         buildRustEnumVariant,
	"constant":                             buildRustTypedItem("const_type"),
	"static_item":                          buildRustTypedItem("static_type"),
	"type_alias":                           buildRustTypedItem("aliased_type"),
	"macro_definition":                     buildRustMacro,
	"method_in_trait_def":                  buildRustTraitDefMethod,
}

// rustStandard seeds an entity whose qualified name is the enclosing
// scope walk plus the name, the shape shared by most item kinds.
func rustStandard(ctx *Context, name string) entity.Entity {
	e := ctx.NewEntity(name)
	scope := parentScope(ctx.Node(), ctx.Source(), "rust")
	e.ParentScope = scope
	e.QualifiedName = qualify(scope, name, "::")
	return e
}

func buildRustFreeFunction(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	e.Visibility = rustVisibility(ctx)
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustInherentImpl(ctx *Context) (*entity.Entity, error) {
	implType, err := ctx.RequireText("impl_type")
	if err != nil {
		return nil, err
	}
	name := "impl " + implType

	e := ctx.NewEntity(name)
	base := parentScope(ctx.Node(), ctx.Source(), "rust")
	e.QualifiedName = qualify(base, name, "::")
	e.ParentScope = implScope(e.QualifiedName)
	e.OwnerType = implType
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustTraitImpl(ctx *Context) (*entity.Entity, error) {
	implType, err := ctx.RequireText("impl_type")
	if err != nil {
		return nil, err
	}
	traitName, err := ctx.RequireText("trait_name")
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("<%s as %s>", implType, traitName)

	e := ctx.NewEntity(name)
	base := parentScope(ctx.Node(), ctx.Source(), "rust")
	e.QualifiedName = qualify(base, name, "::")
	e.ParentScope = implScope(e.QualifiedName)
	e.OwnerType = implType
	e.TraitName = traitName
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustInherentMethod(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	implType, err := ctx.RequireText("impl_type")
	if err != nil {
		return nil, err
	}

	e := ctx.NewEntity(name)
	implNode, _ := ctx.Capture("impl")
	base := parentScope(implNode, ctx.Source(), "rust")
	e.QualifiedName = joinScope("::", base, implType, name)
	e.ParentScope = scopeAbove(e.QualifiedName, "::")
	e.OwnerType = implType
	e.Visibility = rustVisibility(ctx)
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustTraitImplMethod(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	implType, err := ctx.RequireText("impl_type")
	if err != nil {
		return nil, err
	}
	traitName, err := ctx.RequireText("trait_name")
	if err != nil {
		return nil, err
	}

	e := ctx.NewEntity(name)
	implNode, _ := ctx.Capture("impl")
	base := parentScope(implNode, ctx.Source(), "rust")
	owner := fmt.Sprintf("<%s as %s>", implType, traitName)
	e.QualifiedName = joinScope("::", base, owner, name)
	e.ParentScope = scopeAbove(e.QualifiedName, "::")
	e.OwnerType = implType
	e.TraitName = traitName
	e.Visibility = rustVisibility(ctx)
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustAssociatedFunction(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	implType, err := ctx.RequireText("impl_type")
	if err != nil {
		return nil, err
	}

	e := ctx.NewEntity(name)
	implNode, _ := ctx.Capture("impl")
	base := parentScope(implNode, ctx.Source(), "rust")
	e.QualifiedName = joinScope("::", base, implType, name)
	e.ParentScope = scopeAbove(e.QualifiedName, "::")
	e.OwnerType = implType
	e.Visibility = rustVisibility(ctx)
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

// buildRustItem covers structs, enums, traits, modules and unions,
// which share the standard shape.
func buildRustItem(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	e.Visibility = rustVisibility(ctx)
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustStructField(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	e.Visibility = rustVisibility(ctx)
	if owner, ok := ctx.CaptureText("struct_name"); ok {
		e.OwnerType = owner
	}
	if fieldType, ok := ctx.CaptureText("field_type"); ok {
		e.FieldType = fieldType
	}
	return &e, nil
}

func buildRustEnumVariant(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	if owner, ok := ctx.CaptureText("enum_name"); ok {
		e.OwnerType = owner
	}
	return &e, nil
}

// buildRustTypedItem covers consts, statics and type aliases, which
// differ only in the capture holding their type annotation.
func buildRustTypedItem(typeCapture string) BuildFunc {
	return func(ctx *Context) (*entity.Entity, error) {
		name, err := ctx.RequireText("name")
		if err != nil {
			return nil, err
		}
		e := rustStandard(ctx, name)
		e.Visibility = rustVisibility(ctx)
		e.Documentation = rustDocs(ctx.Node(), ctx.Source())
		if fieldType, ok := ctx.CaptureText(typeCapture); ok {
			e.FieldType = fieldType
		}
		return &e, nil
	}
}

func buildRustMacro(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	e.Visibility = rustMacroVisibility(ctx.Node(), ctx.Source())
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

func buildRustTraitDefMethod(ctx *Context) (*entity.Entity, error) {
	name, err := ctx.RequireText("name")
	if err != nil {
		return nil, err
	}
	e := rustStandard(ctx, name)
	if trait, ok := ctx.CaptureText("trait_name"); ok {
		e.TraitName = trait
	}
	e.Documentation = rustDocs(ctx.Node(), ctx.Source())
	return &e, nil
}

// rustVisibility maps an optional visibility_modifier capture to the
// normalized visibility. Restricted forms pub(crate), pub(super) and
// pub(in ...) widen past the item's module but not past the crate.
func rustVisibility(ctx *Context) entity.Visibility {
	text, ok := ctx.CaptureText("visibility")
	if !ok {
		return entity.VisibilityPrivate
	}
	switch {
	case text == "pub":
		return entity.VisibilityPublic
	case strings.HasPrefix(text, "pub(self)"):
		return entity.VisibilityPrivate
	case strings.HasPrefix(text, "pub(crate)"),
		strings.HasPrefix(text, "pub(super)"),
		strings.HasPrefix(text, "pub(in"):
		return entity.VisibilityInternal
	default:
		return entity.VisibilityPrivate
	}
}

// rustMacroVisibility checks for a #[macro_export] attribute above the
// macro, the mechanism macros use instead of visibility modifiers.
func rustMacroVisibility(node *sitter.Node, source []byte) entity.Visibility {
	if node == nil {
		return entity.VisibilityPrivate
	}
	for cur := node.PrevSibling(); cur != nil; cur = cur.PrevSibling() {
		switch cur.Kind() {
		case "line_comment", "block_comment":
			continue
		case "attribute_item":
			text := string(source[cur.StartByte():cur.EndByte()])
			if strings.Contains(text, "macro_export") {
				return entity.VisibilityPublic
			}
		default:
			return entity.VisibilityPrivate
		}
	}
	return entity.VisibilityPrivate
}

// rustDocs collects the /// and /** */ comments immediately above a
// node, identified by the grammar's doc field. Attributes between docs
// and item are skipped; anything else ends the walk.
func rustDocs(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	var docs []string
walk:
	for cur := node.PrevSibling(); cur != nil; cur = cur.PrevSibling() {
		switch cur.Kind() {
		case "line_comment", "block_comment":
			if doc := cur.ChildByFieldName("doc"); doc != nil {
				docs = append(docs, strings.TrimSpace(string(source[doc.StartByte():doc.EndByte()])))
			}
		case "attribute_item", "inner_attribute_item":
		default:
			break walk
		}
	}
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return strings.Join(docs, "\n")
}
