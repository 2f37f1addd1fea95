package desugar

import (
	"strconv"
	"strings"
	"unicode"
)

// allocator hands out identifiers that do not clash with any name spelled in
// the unit or with each other: `_x`, `_x2`, `_x3`...
type allocator struct {
	used map[string]bool
}

func newAllocator(taken map[string]bool) *allocator {
	used := make(map[string]bool, len(taken))
	for name := range taken {
		used[name] = true
	}
	return &allocator{used: used}
}

func (a *allocator) generate(hint string) string {
	base := strings.TrimLeft(hint, "_")
	base = strings.TrimRight(base, "0123456789")
	if base == "" {
		base = "sym"
	}
	for i := 1; ; i++ {
		candidate := "_" + base
		if i > 1 {
			candidate += strconv.Itoa(i)
		}
		if !a.used[candidate] {
			a.used[candidate] = true
			return candidate
		}
	}
}

// decodeIdentifier resolves `\uXXXX` and `\u{X...}` escapes so that
// differently spelled references to one name compare equal.
func decodeIdentifier(raw string) string {
	if !strings.Contains(raw, `\u`) {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); {
		if raw[i] == '\\' && i+1 < len(raw) && raw[i+1] == 'u' {
			if r, n, ok := identifierEscape(raw[i+2:]); ok {
				b.WriteRune(r)
				i += 2 + n
				continue
			}
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String()
}

// identifierEscape parses the part of an escape after `\u` and returns the
// rune and the number of bytes consumed.
func identifierEscape(s string) (rune, int, bool) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > unicode.MaxRune {
			return 0, 0, false
		}
		return rune(v), end + 1, true
	}
	if len(s) < 4 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return rune(v), 4, true
}
