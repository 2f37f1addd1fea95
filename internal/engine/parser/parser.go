package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"straits/internal/core/errors"
	"straits/internal/engine/syntax"
	"straits/internal/shared/observability"
	"straits/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader     *GrammarLoader
	pools      map[string]*ParserPool
	extensions map[string]string
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader:     loader,
		pools:      make(map[string]*ParserPool),
		extensions: make(map[string]string),
	}
	for lang, spec := range loader.LanguageRegistry() {
		if !spec.Enabled {
			continue
		}
		if grammar := loader.Language(lang); grammar != nil {
			p.pools[lang] = NewParserPool(grammar)
		}
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = lang
		}
	}
	return p
}

// ParseFile runs the front-end on content, picking the grammar from the
// file extension. The caller owns the returned tree and must Close it.
func (p *Parser) ParseFile(path string, content []byte) (*syntax.Tree, error) {
	lang := p.GetLanguage(path)
	if lang == "" {
		return nil, errors.AddContext(
			errors.New(errors.CodeNotSupported, "unsupported file type"),
			errors.CtxPath, path,
		)
	}
	return p.Parse(lang, path, content)
}

// Parse runs the front-end for an explicit language.
func (p *Parser) Parse(lang, path string, content []byte) (*syntax.Tree, error) {
	pool := p.pools[lang]
	if pool == nil {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("grammar not loaded: %s", lang))
	}

	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	}()

	source, offsets := Prepass(content)

	sp := pool.Get()
	defer pool.Put(sp)

	parsed := sp.Parse(source, nil)
	if parsed == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}

	tree := syntax.NewTree(path, lang, source, offsets, parsed)
	if err := syntaxError(tree); err != nil {
		tree.Close()
		return nil, err
	}
	return tree, nil
}

// syntaxError reports the first ERROR or MISSING node of the tree.
func syntaxError(tree *syntax.Tree) error {
	root := tree.Root()
	if !root.HasError() {
		return nil
	}
	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}
	pos := tree.Position(bad)

	msg := "Unexpected token"
	switch {
	case bad.IsMissing():
		msg = fmt.Sprintf("Unexpected token, expected %q", bad.Kind())
	default:
		if excerpt := errorExcerpt(tree.OriginalText(bad)); excerpt != "" {
			msg = fmt.Sprintf("Unexpected token %q", excerpt)
		}
	}
	return errors.AddContext(
		errors.At(errors.CodeSyntax, msg, pos.Path, pos.Line, pos.Column),
		errors.CtxLanguage, tree.Language,
	)
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

func errorExcerpt(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len(text) > 24 {
		text = text[:24] + "..."
	}
	return text
}

func (p *Parser) GetLanguage(path string) string {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.GetLanguage(path) != ""
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

// Languages lists the languages with a loaded grammar.
func (p *Parser) Languages() []string {
	return util.SortedStringKeys(p.pools)
}

// Leases reports how many parsers are out across all pools and how long the
// oldest of them has been held.
func (p *Parser) Leases() (int, time.Duration) {
	var n int
	var oldest time.Duration
	for _, pool := range p.pools {
		n += pool.Leased()
		if d := pool.OldestLease(); d > oldest {
			oldest = d
		}
	}
	return n, oldest
}
