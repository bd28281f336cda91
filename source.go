package hbml

import (
	"sort"
	"sync"
	"unicode/utf8"
)

// A Source holds the immutable text of a template together with its module
// identifier. It owns the line-start index used to convert between character
// offsets and line/column positions. The index is built lazily on first use
// and is safe for concurrent readers: recomputing it is idempotent.
type Source struct {
	Text   string
	Module string

	once       sync.Once
	lineStarts []int // byte offset of the first byte of each line
}

// NewSource returns a Source for the given template text. The module name is
// only used in diagnostics and may be empty.
func NewSource(text, module string) *Source {
	return &Source{Text: text, Module: module}
}

// index returns the byte offsets of line starts, computing them on first use.
func (s *Source) index() []int {
	s.once.Do(func() {
		s.lineStarts = append(s.lineStarts, 0)
		for i := 0; i < len(s.Text); i++ {
			if s.Text[i] == '\n' {
				s.lineStarts = append(s.lineStarts, i+1)
			}
		}
	})
	return s.lineStarts
}

// Check reports whether offset is a valid character offset into the source.
// The offset one past the end is valid: it addresses the EOF position.
func (s *Source) Check(offset int) bool {
	return offset >= 0 && offset <= len(s.Text)
}

// locate converts a byte offset into a 1-based line and 1-based column. The
// column is counted in runes, not bytes. The offset must be valid.
func (s *Source) locate(offset int) (line, col int) {
	starts := s.index()
	// Find the last line start <= offset.
	i := sort.SearchInts(starts, offset+1) - 1
	line = i + 1
	col = utf8.RuneCountInString(s.Text[starts[i]:offset]) + 1
	return line, col
}

// locateOffset converts a 1-based line and 1-based rune column back into a
// byte offset. It reports false if the position does not exist in the source.
func (s *Source) locateOffset(line, col int) (int, bool) {
	starts := s.index()
	if line < 1 || line > len(starts) || col < 1 {
		return 0, false
	}
	end := len(s.Text)
	if line < len(starts) {
		end = starts[line] // includes the trailing newline
	}
	offset := starts[line-1]
	for n := col - 1; n > 0; n-- {
		if offset >= end {
			return 0, false
		}
		_, w := utf8.DecodeRuneInString(s.Text[offset:end])
		offset += w
	}
	if offset > end {
		return 0, false
	}
	return offset, true
}

// lineText returns the text of the given 1-based line without its trailing
// newline, for use in diagnostics.
func (s *Source) lineText(line int) string {
	starts := s.index()
	if line < 1 || line > len(starts) {
		return ""
	}
	start := starts[line-1]
	end := len(s.Text)
	if line < len(starts) {
		end = starts[line]
	}
	for end > start && (s.Text[end-1] == '\n' || s.Text[end-1] == '\r') {
		end--
	}
	return s.Text[start:end]
}

// Slice returns the source text in [start, end). Out-of-range bounds are
// clamped rather than panicking so that spans degraded to "broken" still
// render as empty strings.
func (s *Source) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s.Text) {
		end = len(s.Text)
	}
	if start >= end {
		return ""
	}
	return s.Text[start:end]
}

// OffsetAt returns a concrete Offset for the given character offset.
func (s *Source) OffsetAt(char int) *Offset {
	if !s.Check(char) {
		return BrokenOffset(s, 0, 0)
	}
	return &Offset{src: s, kind: OffsetChar, char: char, charOK: true}
}

// OffsetFor returns a concrete Offset for the given 1-based line and column.
// The character offset is not computed until it is needed.
func (s *Source) OffsetFor(line, col int) *Offset {
	return &Offset{src: s, kind: OffsetLineCol, line: line, col: col, lcOK: true}
}

// SpanFor returns the span covering [start, end) in character offsets.
func (s *Source) SpanFor(start, end int) *Span {
	return &Span{src: s, start: s.OffsetAt(start), end: s.OffsetAt(end)}
}
