// Package syntax holds a parsed compilation unit together with the edits a
// transformation pass applies to it, and prints the edited unit back to
// source text.
//
// Tree-sitter trees are immutable, so edits are kept in an overlay keyed by
// node id. A replacement is a list of fragments: literal text, or a reference
// to another node of the same tree which is printed with its own edits
// applied. Edits therefore compose: replacing `a.b` with `f(a)` while `a`
// itself is replaced prints the rewritten `a` inside the call.
package syntax

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Fragment is one piece of replacement output.
type Fragment struct {
	text string
	node *sitter.Node
}

// Text is a literal fragment.
func Text(s string) Fragment {
	return Fragment{text: s}
}

// Ref is a fragment that prints node n, edits included.
func Ref(n *sitter.Node) Fragment {
	return Fragment{node: n}
}

// Position is a 1-based location in the original source.
type Position struct {
	Path   string
	Line   int
	Column int
	Offset int
}

type Tree struct {
	Path     string
	Language string

	source  []byte
	offsets *OffsetMap
	tree    *sitter.Tree

	replaced map[uintptr][]Fragment
	removed  map[uintptr]bool
	before   map[uintptr][][]Fragment
}

// NewTree wraps a parsed tree. source is the text tree was parsed from;
// offsets maps it back to the original input and may be nil when the two
// are identical.
func NewTree(path, language string, source []byte, offsets *OffsetMap, tree *sitter.Tree) *Tree {
	if offsets == nil {
		offsets = NewOffsetMap(source, nil)
	}
	return &Tree{
		Path:     path,
		Language: language,
		source:   source,
		offsets:  offsets,
		tree:     tree,
		replaced: make(map[uintptr][]Fragment),
		removed:  make(map[uintptr]bool),
		before:   make(map[uintptr][][]Fragment),
	}
}

func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

func (t *Tree) Source() []byte {
	return t.source
}

func (t *Tree) Original() []byte {
	return t.offsets.Original()
}

func (t *Tree) Offsets() *OffsetMap {
	return t.offsets
}

// Text returns the parsed text of n.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(t.source[n.StartByte():n.EndByte()])
}

// OriginalText returns the text of n as it was written in the original input.
func (t *Tree) OriginalText(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(t.originalSpan(n))
}

func (t *Tree) originalSpan(n *sitter.Node) []byte {
	start := t.offsets.ToOriginal(int(n.StartByte()))
	end := t.offsets.ToOriginal(int(n.EndByte()))
	original := t.offsets.Original()
	if end < start || end > len(original) {
		return t.source[n.StartByte():n.EndByte()]
	}
	return original[start:end]
}

// Position reports where n starts in the original input.
func (t *Tree) Position(n *sitter.Node) Position {
	offset := t.offsets.ToOriginal(int(n.StartByte()))
	line, column := t.offsets.LineColumn(offset)
	return Position{Path: t.Path, Line: line, Column: column, Offset: offset}
}

// Replace prints frags in place of n.
func (t *Tree) Replace(n *sitter.Node, frags ...Fragment) {
	t.replaced[n.Id()] = frags
}

// Remove drops n from the output. Nodes referenced through Ref still print.
func (t *Tree) Remove(n *sitter.Node) {
	t.removed[n.Id()] = true
}

// InsertBefore places a new statement right before n, after any statement
// previously inserted there.
func (t *Tree) InsertBefore(n *sitter.Node, frags ...Fragment) {
	t.before[n.Id()] = append(t.before[n.Id()], frags)
}

func (t *Tree) IsReplaced(n *sitter.Node) bool {
	_, ok := t.replaced[n.Id()]
	return ok
}

func (t *Tree) IsRemoved(n *sitter.Node) bool {
	return t.removed[n.Id()]
}

// Edited reports whether any edit was recorded.
func (t *Tree) Edited() bool {
	return len(t.replaced) > 0 || len(t.removed) > 0 || len(t.before) > 0
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// indentOf returns the whitespace preceding n on its line, or "" when other
// text precedes it.
func (t *Tree) indentOf(n *sitter.Node) string {
	start := int(n.StartByte())
	i := start
	for i > 0 {
		c := t.source[i-1]
		if c == '\n' {
			break
		}
		if c != ' ' && c != '\t' {
			return ""
		}
		i--
	}
	return string(t.source[i:start])
}

// IsIdentifierKind reports whether kind names an identifier-like leaf.
func IsIdentifierKind(kind string) bool {
	return kind == "identifier" || strings.HasSuffix(kind, "_identifier")
}
