package syntax

import (
	"sort"
	"unicode/utf8"
)

// Edit records one front-end rewrite: original bytes [OrigStart, OrigEnd)
// became rewritten bytes [NewStart, NewEnd).
type Edit struct {
	OrigStart int
	OrigEnd   int
	NewStart  int
	NewEnd    int
}

// OffsetMap translates byte offsets of the rewritten source back to the
// original source. Edits never overlap and are kept sorted by NewStart.
type OffsetMap struct {
	original []byte
	edits    []Edit
}

func NewOffsetMap(original []byte, edits []Edit) *OffsetMap {
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NewStart < sorted[j].NewStart })
	return &OffsetMap{original: original, edits: sorted}
}

// Original returns the untouched input text.
func (m *OffsetMap) Original() []byte {
	return m.original
}

// Edits returns a copy of the recorded edits.
func (m *OffsetMap) Edits() []Edit {
	return append([]Edit(nil), m.edits...)
}

// ToOriginal maps a rewritten offset to the original text. Offsets that fall
// inside a replacement map to the start of the replaced original span.
func (m *OffsetMap) ToOriginal(pos int) int {
	if m == nil {
		return pos
	}
	orig := pos
	for _, e := range m.edits {
		if pos < e.NewStart {
			break
		}
		if pos < e.NewEnd {
			return e.OrigStart
		}
		orig = e.OrigEnd + (pos - e.NewEnd)
	}
	return orig
}

// LineColumn returns the 1-based line and rune column of an original offset.
func (m *OffsetMap) LineColumn(origPos int) (int, int) {
	if origPos > len(m.original) {
		origPos = len(m.original)
	}
	line, lineStart := 1, 0
	for i := 0; i < origPos; i++ {
		if m.original[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, utf8.RuneCount(m.original[lineStart:origPos]) + 1
}

// LineText returns the original text of a 1-based line without its newline.
func (m *OffsetMap) LineText(line int) string {
	current, start := 1, 0
	for i, b := range m.original {
		if b != '\n' {
			continue
		}
		if current == line {
			return string(m.original[start:i])
		}
		current++
		start = i + 1
	}
	if current == line {
		return string(m.original[start:])
	}
	return ""
}
