package syntax

import (
	"bytes"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// literal text is always printed from the original input
var literalKinds = map[string]bool{
	"string":          true,
	"string_fragment": true,
	"escape_sequence": true,
	"regex_pattern":   true,
}

type printer struct {
	t   *Tree
	out bytes.Buffer
}

// Render prints the tree with every recorded edit applied.
func (t *Tree) Render() []byte {
	p := &printer{t: t}
	root := t.Root()
	p.out.Write(t.source[:root.StartByte()])
	p.child(root)
	p.out.Write(t.source[root.EndByte():])
	return p.out.Bytes()
}

func (p *printer) child(n *sitter.Node) {
	id := n.Id()
	removed := p.t.removed[id]
	if inserts := p.t.before[id]; len(inserts) > 0 {
		sep := "\n" + p.t.indentOf(n)
		for i, frags := range inserts {
			if i > 0 {
				p.out.WriteString(sep)
			}
			p.fragments(frags)
		}
		if !removed {
			p.out.WriteString(sep)
		}
	}
	if removed {
		return
	}
	p.node(n)
}

func (p *printer) node(n *sitter.Node) {
	if frags, ok := p.t.replaced[n.Id()]; ok {
		p.fragments(frags)
		return
	}
	if literalKinds[n.Kind()] {
		p.out.Write(p.t.originalSpan(n))
		return
	}

	src := p.t.source
	count := n.ChildCount()
	if count == 0 {
		p.out.Write(src[n.StartByte():n.EndByte()])
		return
	}
	cursor := n.StartByte()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c.StartByte() > cursor {
			p.out.Write(src[cursor:c.StartByte()])
		}
		p.child(c)
		if c.EndByte() > cursor {
			cursor = c.EndByte()
		}
	}
	if n.EndByte() > cursor {
		p.out.Write(src[cursor:n.EndByte()])
	}
}

func (p *printer) fragments(frags []Fragment) {
	for _, f := range frags {
		if f.node != nil {
			p.node(f.node)
			continue
		}
		p.out.WriteString(f.text)
	}
}
