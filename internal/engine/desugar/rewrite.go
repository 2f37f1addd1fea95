package desugar

import (
	"strconv"

	"straits/internal/core/errors"
	"straits/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// resolve checks every access has a declared scope and allocates bindings:
// reads in traversal order, then assignments in reverse traversal order.
func (u *unit) resolve(alloc *allocator, stats *Stats) (map[*access]string, error) {
	for _, a := range u.accesses {
		if a.frame.owner() == nil {
			err := u.errorAt(errors.CodeScope, msgOutsideScope, a.marker)
			return nil, errors.AddContext(err, errors.CtxSymbol, a.name)
		}
	}

	idents := make(map[*access]string, len(u.accesses))
	bind := func(a *access) {
		ident, created := a.frame.owner().resolve(a.name, alloc)
		if created {
			stats.Bindings++
		}
		idents[a] = ident
	}
	for _, a := range u.accesses {
		if a.kind == accessRead {
			bind(a)
		}
	}
	for i := len(u.accesses) - 1; i >= 0; i-- {
		if a := u.accesses[i]; a.kind == accessAssign {
			bind(a)
		}
	}
	return idents, nil
}

// synthesize records every output edit on the tree. Nothing it inserts is
// walked again.
func (u *unit) synthesize(helpers helperNames, idents map[*access]string) {
	if first := firstStatement(u.tree.Root()); first != nil {
		u.tree.InsertBefore(first, syntax.Text(helpers.source()))
	}

	for _, f := range u.scopes {
		if f.own == nil {
			continue
		}
		for i, anchor := range f.own.anchors {
			u.tree.InsertBefore(anchor, u.providerCheck(helpers, f.own.exprs[i])...)
			if i == 0 && len(f.bindings) > 0 {
				u.tree.InsertBefore(anchor, u.bindingStatement(helpers, f)...)
			}
		}
	}

	u.stripMarkers()

	for _, a := range u.accesses {
		ident := idents[a]
		u.markers[a.marker.Id()] = true
		switch a.kind {
		case accessRead:
			open := "["
			if a.optional {
				open = "?.["
			}
			u.tree.Replace(a.member, syntax.Ref(a.target), syntax.Text(open+ident+"]"))
		case accessAssign:
			u.tree.Replace(a.assign,
				syntax.Text(helpers.defineHidden+"("),
				syntax.Ref(a.target),
				syntax.Text(", "+ident+", "),
				syntax.Ref(a.value),
				syntax.Text(")"),
			)
		}
	}

	for _, d := range u.decls {
		u.tree.Remove(d.anchor)
	}
}

// stripMarkers turns `target._Straits[key]` into `target[key]`.
func (u *unit) stripMarkers() {
	for _, inner := range u.stripped {
		u.tree.Replace(inner, syntax.Ref(inner.ChildByFieldName("object")))
	}
}

func (u *unit) providerCheck(helpers helperNames, expr *sitter.Node) []syntax.Fragment {
	frags := []syntax.Fragment{syntax.Text(helpers.testProviderSet + "(")}
	frags = append(frags, argument(expr)...)
	return append(frags, syntax.Text(");"))
}

// bindingStatement declares every binding of f in one statement:
// const _a = getSymbol("a", P1, P2), _b = getSymbol("b", P1, P2);
func (u *unit) bindingStatement(helpers helperNames, f *frame) []syntax.Fragment {
	providers := f.providers()
	frags := []syntax.Fragment{syntax.Text("const ")}
	for i, b := range f.bindings {
		if i > 0 {
			frags = append(frags, syntax.Text(", "))
		}
		frags = append(frags, syntax.Text(b.ident+" = "+helpers.getSymbol+"("+strconv.Quote(b.name)))
		for _, expr := range providers {
			frags = append(frags, syntax.Text(", "))
			frags = append(frags, argument(expr)...)
		}
		frags = append(frags, syntax.Text(")"))
	}
	return append(frags, syntax.Text(";"))
}

// argument prints expr as one call argument.
func argument(expr *sitter.Node) []syntax.Fragment {
	if expr.Kind() == "sequence_expression" {
		return []syntax.Fragment{syntax.Text("("), syntax.Ref(expr), syntax.Text(")")}
	}
	return []syntax.Fragment{syntax.Ref(expr)}
}

// firstStatement is where helpers go: after the hashbang, comments and the
// directive prologue.
func firstStatement(program *sitter.Node) *sitter.Node {
	for i := uint(0); i < program.NamedChildCount(); i++ {
		child := program.NamedChild(i)
		switch child.Kind() {
		case "hash_bang_line", "comment":
			continue
		case "expression_statement":
			if expr := child.NamedChild(0); expr != nil && expr.Kind() == "string" {
				continue
			}
		}
		return child
	}
	return nil
}

// leftover reports the first marker the pass did not consume.
func (u *unit) leftover(node *sitter.Node) *sitter.Node {
	if syntax.IsIdentifierKind(node.Kind()) && !u.markers[node.Id()] {
		switch u.tree.Text(node) {
		case syntax.MarkerProperty, syntax.ProviderLabel:
			return node
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := u.leftover(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
