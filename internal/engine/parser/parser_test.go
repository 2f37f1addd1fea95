package parser

import (
	"testing"

	"straits/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	loader, err := NewGrammarLoader()
	require.NoError(t, err)
	return NewParser(loader)
}

func TestParser_ParseFileJavaScript(t *testing.T) {
	p := newTestParser(t)

	tree, err := p.ParseFile("main.js", []byte("use traits * from s;\nx.*y = 1;\n"))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "javascript", tree.Language)
	assert.Equal(t, "main.js", tree.Path)
	assert.Equal(t, "program", tree.Root().Kind())
	assert.Contains(t, string(tree.Source()), "_StraitsProvider: s;")
	assert.Equal(t, "use traits * from s;\nx.*y = 1;\n", string(tree.Original()))
}

func TestParser_ParseFileTypeScript(t *testing.T) {
	p := newTestParser(t)

	tree, err := p.ParseFile("lib.ts", []byte("const n: number = o.*size;\n"))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "typescript", tree.Language)
	assert.False(t, tree.Root().HasError())
}

func TestParser_SyntaxErrorPointsAtOriginalSource(t *testing.T) {
	p := newTestParser(t)

	_, err := p.ParseFile("bad.js", []byte("let a = 1;\nfoo(;\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSyntax))
	assert.Contains(t, err.Error(), "Unexpected token")
	assert.Contains(t, err.Error(), "bad.js:2:")
}

func TestParser_UnsupportedExtension(t *testing.T) {
	p := newTestParser(t)

	_, err := p.ParseFile("main.py", []byte("x = 1"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	assert.False(t, p.IsSupportedPath("main.py"))
	assert.True(t, p.IsSupportedPath("lib/Index.MJS"))
}

func TestParser_SupportedExtensions(t *testing.T) {
	p := newTestParser(t)

	assert.Equal(t, []string{".cjs", ".cts", ".js", ".mjs", ".mts", ".ts"}, p.SupportedExtensions())
	assert.Equal(t, []string{"javascript", "typescript"}, p.Languages())
}
func TestParser_LeasesReturnAfterParse(t *testing.T) {
	p := newTestParser(t)

	tree, err := p.ParseFile("main.ts", []byte("let a: number = 1;\n"))
	require.NoError(t, err)
	tree.Close()

	n, oldest := p.Leases()
	assert.Equal(t, 0, n)
	assert.Zero(t, oldest)
}
