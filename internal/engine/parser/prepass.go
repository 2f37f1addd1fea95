package parser

import (
	"bytes"

	"straits/internal/engine/syntax"
)

type tokenKind int

const (
	tokNone tokenKind = iota
	tokPunct
	tokCloser // ) ] }
	tokDot
	tokWord
	tokValue // string, number, template, regex
)

// keywords after which a '/' starts a regular expression
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// Prepass rewrites the private-member surface syntax into plain JavaScript
// the grammar accepts. Only code is touched: strings, template chunks,
// comments and regular expressions are copied verbatim.
//
//	use traits * from X   ->  _StraitsProvider: X
//	a.*b                  ->  a._Straits.b
//	a.*[k]                ->  a[k]
//	3.*b                  ->  (3)._Straits.b
func Prepass(src []byte) ([]byte, *syntax.OffsetMap) {
	s := &scanner{src: src}
	s.run()
	return s.out.Bytes(), syntax.NewOffsetMap(src, s.edits)
}

type scanner struct {
	src    []byte
	pos    int
	copied int
	out    bytes.Buffer
	edits  []syntax.Edit

	last     tokenKind
	lastWord string

	depth     int
	templates []int
}

func (s *scanner) run() {
	if bytes.HasPrefix(s.src, []byte("#!")) {
		s.skipLine()
	}
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '/' && s.peek(1) == '/':
			s.skipLine()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case c == '\'' || c == '"':
			s.skipString(c)
			s.last = tokValue
		case c == '`':
			s.pos++
			s.scanTemplate()
		case c == '/':
			if s.regexAllowed() {
				s.skipRegex()
				s.last = tokValue
			} else {
				s.pos++
				s.last = tokPunct
			}
		case isDigit(c) || (c == '.' && isDigit(s.peek(1))):
			s.number()
		case c == '.':
			s.dot()
		case isIdentStart(c):
			s.word()
		case c == '{':
			s.depth++
			s.pos++
			s.last = tokPunct
		case c == '}':
			s.pos++
			if n := len(s.templates); n > 0 && s.templates[n-1] == s.depth-1 {
				s.templates = s.templates[:n-1]
				s.depth--
				s.scanTemplate()
				continue
			}
			s.depth--
			s.last = tokCloser
		case c == ')' || c == ']':
			s.pos++
			s.last = tokCloser
		default:
			s.pos++
			s.last = tokPunct
		}
	}
	s.flush(len(s.src))
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *scanner) flush(upto int) {
	if upto > s.copied {
		s.out.Write(s.src[s.copied:upto])
		s.copied = upto
	}
}

func (s *scanner) replace(start, end int, text string) {
	s.flush(start)
	newStart := s.out.Len()
	s.out.WriteString(text)
	s.edits = append(s.edits, syntax.Edit{
		OrigStart: start,
		OrigEnd:   end,
		NewStart:  newStart,
		NewEnd:    s.out.Len(),
	})
	s.copied = end
}

func (s *scanner) regexAllowed() bool {
	switch s.last {
	case tokNone, tokPunct:
		return true
	case tokWord:
		return regexKeywords[s.lastWord]
	default:
		return false
	}
}

func (s *scanner) skipLine() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	end := bytes.Index(s.src[s.pos+2:], []byte("*/"))
	if end < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += 2 + end + 2
}

func (s *scanner) skipString(quote byte) {
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case quote:
			s.pos++
			return
		case '\n':
			return
		default:
			s.pos++
		}
	}
}

// scanTemplate consumes template text up to the closing backtick or the next
// substitution, whose code is then scanned by run.
func (s *scanner) scanTemplate() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case '`':
			s.pos++
			s.last = tokValue
			return
		case '$':
			if s.peek(1) == '{' {
				s.templates = append(s.templates, s.depth)
				s.depth++
				s.pos += 2
				s.last = tokPunct
				return
			}
			s.pos++
		default:
			s.pos++
		}
	}
	s.last = tokValue
}

func (s *scanner) skipRegex() {
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\n' {
			return
		}
		s.pos++
		switch {
		case c == '\\':
			s.pos++
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			return
		}
	}
}

func (s *scanner) word() {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	w := string(s.src[start:s.pos])
	if w == "use" && s.last != tokDot {
		if end, ok := s.matchDeclaration(s.pos); ok {
			s.replace(start, end, syntax.ProviderLabel+":")
			s.pos = end
			s.last = tokPunct
			return
		}
	}
	s.last = tokWord
	s.lastWord = w
}

// matchDeclaration matches the rest of `use traits * from` starting right
// after `use`, returning the offset just past `from`.
func (s *scanner) matchDeclaration(i int) (int, bool) {
	for _, part := range []string{"traits", "*", "from"} {
		j := i
		for j < len(s.src) && isSpace(s.src[j]) {
			j++
		}
		if j == i || !bytes.HasPrefix(s.src[j:], []byte(part)) {
			return 0, false
		}
		i = j + len(part)
	}
	if i < len(s.src) && isIdentPart(s.src[i]) {
		return 0, false
	}
	return i, true
}

func (s *scanner) number() {
	start := s.pos
	if s.src[s.pos] == '0' && isRadixPrefix(s.peek(1)) {
		s.pos += 2
		for s.pos < len(s.src) && (isIdentPart(s.src[s.pos])) {
			s.pos++
		}
	} else {
		s.digits()
		if s.pos < len(s.src) && s.src[s.pos] == '.' && s.peek(1) != '*' {
			s.pos++
			s.digits()
		}
		if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
			j := s.pos + 1
			if j < len(s.src) && (s.src[j] == '+' || s.src[j] == '-') {
				j++
			}
			if j < len(s.src) && isDigit(s.src[j]) {
				s.pos = j
				s.digits()
			}
		}
		if s.pos < len(s.src) && s.src[s.pos] == 'n' {
			s.pos++
		}
	}
	s.last = tokValue

	if s.peek(0) != '.' || s.peek(1) != '*' {
		return
	}
	if next := s.peek(2); isIdentStart(next) || next == '[' {
		// a number cannot take a member directly: `3._Straits` is a syntax error
		s.replace(start, s.pos, "("+string(s.src[start:s.pos])+")")
		s.last = tokCloser
		return
	}
	// `3.*2` is the float `3.` times 2
	s.pos++
}

func (s *scanner) digits() {
	for s.pos < len(s.src) && (isDigit(s.src[s.pos]) || s.src[s.pos] == '_') {
		s.pos++
	}
}

func (s *scanner) dot() {
	if s.peek(1) == '.' && s.peek(2) == '.' {
		s.pos += 3
		s.last = tokPunct
		return
	}
	if s.peek(1) != '*' {
		s.pos++
		s.last = tokDot
		return
	}
	start := s.pos
	s.pos += 2
	s.last = tokDot
	next := s.pos
	for next < len(s.src) && isSpace(s.src[next]) {
		next++
	}
	if next < len(s.src) && s.src[next] == '[' {
		if start > 0 && s.src[start-1] == '?' {
			s.replace(start, s.pos, ".")
		} else {
			s.replace(start, s.pos, "")
		}
		return
	}
	s.replace(start, s.pos, "."+syntax.MarkerProperty+".")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isRadixPrefix(c byte) bool {
	switch c {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}
