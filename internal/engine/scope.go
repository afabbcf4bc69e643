package engine

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// scopePattern names an ancestor node kind that contributes a segment
// to the enclosing scope, and the field holding that segment's name.
type scopePattern struct {
	kind  string
	field string
}

var scopePatterns = map[string][]scopePattern{
	"rust": {
		{kind: "mod_item", field: "name"},
		{kind: "impl_item", field: "type"},
		{kind: "struct_item", field: "name"},
		{kind: "enum_item", field: "name"},
		{kind: "trait_item", field: "name"},
		{kind: "union_item", field: "name"},
	},
	"python": {
		{kind: "class_definition", field: "name"},
		{kind: "function_definition", field: "name"},
	},
	"typescript": {
		{kind: "class_declaration", field: "name"},
		{kind: "interface_declaration", field: "name"},
		{kind: "enum_declaration", field: "name"},
		{kind: "internal_module", field: "name"},
	},
	"tsx": {
		{kind: "class_declaration", field: "name"},
		{kind: "interface_declaration", field: "name"},
		{kind: "enum_declaration", field: "name"},
		{kind: "internal_module", field: "name"},
	},
}

// separatorFor returns the path separator used in the language's
// qualified names.
func separatorFor(language string) string {
	if language == "rust" {
		return "::"
	}
	return "."
}

// parentScope walks the node's ancestors and collects the names of the
// enclosing scopes, outermost first. The node itself contributes
// nothing; only ancestors matching the language's scope patterns do.
func parentScope(node *sitter.Node, source []byte, language string) string {
	patterns := scopePatterns[language]
	if node == nil || len(patterns) == 0 {
		return ""
	}

	var parts []string
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		kind := cur.Kind()
		for _, p := range patterns {
			if kind != p.kind {
				continue
			}
			if nameNode := cur.ChildByFieldName(p.field); nameNode != nil {
				parts = append(parts, string(source[nameNode.StartByte():nameNode.EndByte()]))
			}
			break
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, separatorFor(language))
}

// qualify prefixes a name with its scope, or returns the name alone for
// top-level entities.
func qualify(scope, name, sep string) string {
	if scope == "" {
		return name
	}
	return scope + sep + name
}

// joinScope composes a qualified name from segments, skipping empties.
func joinScope(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// scopeAbove strips the final segment from a qualified name, yielding
// the scope that contains it. Top-level names have no scope above.
func scopeAbove(qualified, sep string) string {
	idx := strings.LastIndex(qualified, sep)
	if idx < 0 {
		return ""
	}
	return qualified[:idx]
}

// implScope strips an impl entity's own segment from its qualified
// name, leaving the module path containing the impl block. The marker
// search runs front to back because the impl's type may itself contain
// path separators ("impl foo::Bar").
func implScope(qualified string) string {
	if idx := strings.Index(qualified, "::impl "); idx >= 0 {
		return qualified[:idx]
	}
	if idx := strings.Index(qualified, "::<"); idx >= 0 {
		return qualified[:idx]
	}
	return ""
}
