package engine

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/query"
)

// evalPredicates applies a pattern's structural predicates to one
// match's captures. All predicates must hold for the match to survive.
func evalPredicates(preds []query.Predicate, captures map[string]*sitter.Node) bool {
	for _, p := range preds {
		if !evalPredicate(p, captures) {
			return false
		}
	}
	return true
}

// evalPredicate checks one predicate against the node bound to its
// anchor capture. When the anchor capture is absent from the match,
// negated predicates pass and positive ones fail.
func evalPredicate(p query.Predicate, captures map[string]*sitter.Node) bool {
	node, ok := captures[p.Capture]
	if !ok || node == nil {
		return p.Negated
	}

	var holds bool
	switch p.Op {
	case query.OpHasChild, query.OpNotHasChild:
		holds = hasChild(node, p.Kind)
	case query.OpHasAncestor, query.OpNotHasAncestor:
		holds = hasAncestor(node, p.Kind)
	default:
		return p.Negated
	}

	if p.Negated {
		return !holds
	}
	return holds
}

// hasChild inspects only the node's immediate children: first the named
// field, then a direct-child kind scan. Grammars expose some anchors as
// fields (impl_item's trait clause) and others as plain children
// (self_parameter inside parameters), so both are checked.
func hasChild(node *sitter.Node, kind string) bool {
	if node.ChildByFieldName(kind) != nil {
		return true
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return true
		}
	}
	return false
}

// hasAncestor walks the parent chain only, never the siblings.
func hasAncestor(node *sitter.Node, kind string) bool {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() == kind {
			return true
		}
	}
	return false
}
