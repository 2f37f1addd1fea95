package desugar

import (
	"fmt"
	"log/slog"

	"straits/internal/core/errors"
	"straits/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type accessKind int

const (
	accessRead accessKind = iota
	accessAssign
)

func (k accessKind) String() string {
	if k == accessAssign {
		return "assign"
	}
	return "read"
}

type declaration struct {
	anchor *sitter.Node
	expr   *sitter.Node
	frame  *frame
}

// access is one `target.*name` occurrence.
type access struct {
	kind     accessKind
	name     string
	marker   *sitter.Node // the `_Straits` property
	target   *sitter.Node
	member   *sitter.Node // `target._Straits.name`
	assign   *sitter.Node // enclosing `member = value`, assign only
	value    *sitter.Node
	optional bool
	frame    *frame
}

// unit holds everything collected from one compilation unit. It lives for
// one Transform call and is drained before the call returns.
type unit struct {
	tree *syntax.Tree
	log  *slog.Logger

	path   []*sitter.Node
	frames []*frame
	scopes []*frame

	decls    []*declaration
	accesses []*access
	stripped []*sitter.Node

	names   map[string]bool
	markers map[uintptr]bool
}

func newUnit(tree *syntax.Tree, log *slog.Logger) *unit {
	return &unit{
		tree: tree,
		log:  log,
		names: map[string]bool{
			syntax.ProviderLabel:  true,
			syntax.MarkerProperty: true,
		},
		markers: make(map[uintptr]bool),
	}
}

func (u *unit) current() *frame {
	if len(u.frames) == 0 {
		return nil
	}
	return u.frames[len(u.frames)-1]
}

func (u *unit) enterBlock(block *sitter.Node) {
	f := newFrame(u.current(), block)
	u.frames = append(u.frames, f)
	u.scopes = append(u.scopes, f)
}

func (u *unit) exitBlock() {
	u.frames = u.frames[:len(u.frames)-1]
}

// ancestor returns the n-th ancestor of the node being visited; 0 is its
// parent.
func (u *unit) ancestor(n int) *sitter.Node {
	i := len(u.path) - 1 - n
	if i < 0 {
		return nil
	}
	return u.path[i]
}

func (u *unit) errorAt(code errors.ErrorCode, msg string, n *sitter.Node) error {
	pos := u.tree.Position(n)
	return errors.At(code, msg, pos.Path, pos.Line, pos.Column)
}

// drain discards the collected state. Leftover frames mean enter and exit
// calls did not pair up.
func (u *unit) drain() error {
	open := len(u.frames)
	u.path = nil
	u.frames = nil
	u.scopes = nil
	u.decls = nil
	u.accesses = nil
	u.stripped = nil
	u.names = nil
	u.markers = nil
	if open != 0 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("scope stack not empty after transform: %d frames", open))
	}
	return nil
}
