package desugar

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// providerSet groups the declarations of one block. Expressions keep
// declaration order and are never deduplicated.
type providerSet struct {
	anchors []*sitter.Node
	exprs   []*sitter.Node
}

func (s *providerSet) add(anchor, expr *sitter.Node) {
	s.anchors = append(s.anchors, anchor)
	s.exprs = append(s.exprs, expr)
}

type binding struct {
	name  string
	ident string
}

// frame is one block of the unit. Bindings are memoized per frame and are
// never shared with enclosing or sibling frames.
type frame struct {
	parent *frame
	block  *sitter.Node
	own    *providerSet

	cache    map[string]string
	bindings []binding
}

func newFrame(parent *frame, block *sitter.Node) *frame {
	return &frame{
		parent: parent,
		block:  block,
		cache:  make(map[string]string),
	}
}

// owner is the nearest frame, starting at f, that declares its own providers.
func (f *frame) owner() *frame {
	for s := f; s != nil; s = s.parent {
		if s.own != nil {
			return s
		}
	}
	return nil
}

// visible lists the sets seen from f, nearest first, each set once.
func (f *frame) visible() []*providerSet {
	var sets []*providerSet
	seen := make(map[*providerSet]bool)
	for s := f; s != nil; s = s.parent {
		if s.own == nil || seen[s.own] {
			continue
		}
		seen[s.own] = true
		sets = append(sets, s.own)
	}
	return sets
}

// providers flattens the visible sets into the argument list of getSymbol.
func (f *frame) providers() []*sitter.Node {
	var exprs []*sitter.Node
	for _, set := range f.visible() {
		exprs = append(exprs, set.exprs...)
	}
	return exprs
}

// resolve returns the binding for name, allocating it on first use.
func (f *frame) resolve(name string, alloc *allocator) (string, bool) {
	if ident, ok := f.cache[name]; ok {
		return ident, false
	}
	ident := alloc.generate(name)
	f.cache[name] = ident
	f.bindings = append(f.bindings, binding{name: name, ident: ident})
	return ident, true
}
