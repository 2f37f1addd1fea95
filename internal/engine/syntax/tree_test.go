package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

func parseJS(t *testing.T, src string) *Tree {
	t.Helper()
	p := sitter.NewParser()
	t.Cleanup(p.Close)
	require.NoError(t, p.SetLanguage(sitter.NewLanguage(tree_sitter_javascript.Language())))
	parsed := p.Parse([]byte(src), nil)
	require.NotNil(t, parsed)
	tree := NewTree("unit.js", "javascript", []byte(src), nil, parsed)
	t.Cleanup(tree.Close)
	return tree
}

func statement(t *testing.T, tree *Tree, i uint) *sitter.Node {
	t.Helper()
	n := tree.Root().NamedChild(i)
	require.NotNil(t, n)
	return n
}

func TestTree_RenderUnedited(t *testing.T) {
	src := "a.b;\nc;\n"
	tree := parseJS(t, src)
	assert.False(t, tree.Edited())
	assert.Equal(t, src, string(tree.Render()))
}

func TestTree_ReplaceComposesWithRef(t *testing.T) {
	tree := parseJS(t, "a.b;\nc;\n")
	member := statement(t, tree, 0).NamedChild(0)
	require.Equal(t, "member_expression", member.Kind())
	object := member.ChildByFieldName("object")

	tree.Replace(member, Text("f("), Ref(object), Text(")"))
	tree.Replace(object, Text("x"))

	assert.True(t, tree.Edited())
	assert.True(t, tree.IsReplaced(member))
	assert.Equal(t, "f(x);\nc;\n", string(tree.Render()))
}

func TestTree_InsertBefore(t *testing.T) {
	tree := parseJS(t, "a;\nb;\n")
	second := statement(t, tree, 1)

	tree.InsertBefore(second, Text("let y = 1;"))
	tree.InsertBefore(second, Text("let z;"))

	assert.Equal(t, "a;\nlet y = 1;\nlet z;\nb;\n", string(tree.Render()))
}

func TestTree_InsertBeforeKeepsIndent(t *testing.T) {
	tree := parseJS(t, "{\n  b;\n}\n")
	block := statement(t, tree, 0)
	inner := block.NamedChild(0)
	require.NotNil(t, inner)

	tree.InsertBefore(inner, Text("let y;"))

	assert.Equal(t, "{\n  let y;\n  b;\n}\n", string(tree.Render()))
}

func TestTree_RemoveKeepsInsertions(t *testing.T) {
	tree := parseJS(t, "a;\nb;\n")
	first := statement(t, tree, 0)

	tree.InsertBefore(first, Text("let y;"))
	tree.Remove(first)

	assert.True(t, tree.IsRemoved(first))
	assert.Equal(t, "let y;\nb;\n", string(tree.Render()))
}

func TestTree_Position(t *testing.T) {
	tree := parseJS(t, "a;\n  b;\n")
	pos := tree.Position(statement(t, tree, 1))
	assert.Equal(t, Position{Path: "unit.js", Line: 2, Column: 3, Offset: 5}, pos)
	assert.Equal(t, "b;", tree.OriginalText(statement(t, tree, 1)))
}
