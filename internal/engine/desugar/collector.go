package desugar

import (
	"straits/internal/core/errors"
	"straits/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	msgMisplaced    = "`use traits` declaration must be placed in a block or the outermost scope"
	msgNoExpression = "`use traits` requires an expression"
	msgOutsideScope = "`.*` used outside any declared scope"
	msgMalformed    = "malformed `.*` access"
)

// nodeHandler inspects one node during collection. The node's ancestors are
// available through unit.ancestor.
type nodeHandler func(u *unit, node *sitter.Node) error

var collectors = map[string]nodeHandler{
	"labeled_statement":   collectDeclaration,
	"property_identifier": collectMarker,
}

func isBlock(kind string) bool {
	return kind == "program" || kind == "statement_block"
}

// collect walks the subtree depth-first, pushing a frame for every block.
func (u *unit) collect(node *sitter.Node) error {
	if node == nil {
		return nil
	}
	kind := node.Kind()
	block := isBlock(kind)
	if block {
		u.enterBlock(node)
	}
	if syntax.IsIdentifierKind(kind) {
		u.names[decodeIdentifier(u.tree.Text(node))] = true
	}
	if handler, ok := collectors[kind]; ok {
		if err := handler(u, node); err != nil {
			return err
		}
	}

	u.path = append(u.path, node)
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := u.collect(node.Child(i)); err != nil {
			return err
		}
	}
	u.path = u.path[:len(u.path)-1]

	if block {
		u.exitBlock()
	}
	return nil
}

func collectDeclaration(u *unit, node *sitter.Node) error {
	label := node.ChildByFieldName("label")
	if label == nil || u.tree.Text(label) != syntax.ProviderLabel {
		return nil
	}
	parent := u.ancestor(0)
	if parent == nil || !isBlock(parent.Kind()) {
		return u.errorAt(errors.CodeDeclaration, msgMisplaced, node)
	}

	expr := providerExpression(node.ChildByFieldName("body"))
	if expr == nil {
		return u.errorAt(errors.CodeDeclaration, msgNoExpression, node)
	}

	f := u.current()
	if f.own == nil {
		f.own = &providerSet{}
	}
	f.own.add(node, expr)
	u.decls = append(u.decls, &declaration{anchor: node, expr: expr, frame: f})
	u.markers[label.Id()] = true
	return nil
}

// providerExpression returns the expression of an expression statement, or
// nil for empty statements, blocks and anything else.
func providerExpression(body *sitter.Node) *sitter.Node {
	if body == nil || body.Kind() != "expression_statement" {
		return nil
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// collectMarker classifies `target._Straits.name`, `target._Straits[key]` and
// `target._Straits.name = value`.
func collectMarker(u *unit, node *sitter.Node) error {
	if u.tree.Text(node) != syntax.MarkerProperty {
		return nil
	}
	inner := u.ancestor(0)
	if inner == nil || inner.Kind() != "member_expression" || !sameNode(inner.ChildByFieldName("property"), node) {
		// not produced by `.*`; the final check reports it
		return nil
	}
	outer := u.ancestor(1)
	if outer == nil || !sameNode(outer.ChildByFieldName("object"), inner) {
		return u.errorAt(errors.CodeMalformed, msgMalformed, node)
	}

	switch outer.Kind() {
	case "subscript_expression":
		// `.*[key]` is an ordinary dynamic access
		u.stripped = append(u.stripped, inner)
		u.markers[node.Id()] = true
		return nil
	case "member_expression":
	default:
		return u.errorAt(errors.CodeMalformed, msgMalformed, node)
	}

	property := outer.ChildByFieldName("property")
	if property == nil || property.Kind() != "property_identifier" {
		return u.errorAt(errors.CodeMalformed, msgMalformed, node)
	}

	target := inner.ChildByFieldName("object")
	a := &access{
		kind:     accessRead,
		name:     decodeIdentifier(u.tree.Text(property)),
		marker:   node,
		target:   target,
		member:   outer,
		optional: inner.ChildByFieldName("optional_chain") != nil,
		frame:    u.current(),
	}
	// `(o.*x) = v` assigns as well
	left, depth := outer, 2
	for p := u.ancestor(depth); p != nil && p.Kind() == "parenthesized_expression"; p = u.ancestor(depth) {
		left = p
		depth++
	}
	if assign := u.ancestor(depth); assign != nil && assign.Kind() == "assignment_expression" &&
		sameNode(assign.ChildByFieldName("left"), left) {
		a.kind = accessAssign
		a.assign = assign
		a.value = assign.ChildByFieldName("right")
	}
	u.accesses = append(u.accesses, a)
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.Id() == b.Id()
}
