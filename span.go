package hbml

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// OffsetKind classifies a source position. Char and LineCol offsets are
// concrete: they address a real position in the template, represented by
// whichever of the two coordinates was known first. The remaining kinds have
// no source backing.
type OffsetKind uint8

const (
	// OffsetChar is a concrete position known by character offset.
	OffsetChar OffsetKind = iota
	// OffsetLineCol is a concrete position known by line/column; the
	// character offset is computed lazily.
	OffsetLineCol
	// OffsetSynthetic marks text manufactured by the compiler, not present
	// in the source.
	OffsetSynthetic
	// OffsetMissing marks a position the parser expected but could not
	// produce, e.g. a malformed upstream block shape.
	OffsetMissing
	// OffsetBroken marks a position a plugin supplied that is inconsistent
	// or out of range for the template.
	OffsetBroken
	// OffsetAbsent marks a node with no source backing at all, e.g. one
	// injected by the embedder.
	OffsetAbsent
)

// An Offset is a lazily resolved position in a Source. A concrete offset
// holds either a character index or a (line, column) pair; the other
// representation is computed and cached on first use. Conversions that fall
// outside the source degrade the offset to OffsetBroken instead of failing,
// so span algebra built on top never has to handle a conversion error.
type Offset struct {
	src  *Source
	kind OffsetKind

	char   int
	charOK bool

	line, col int // 1-based; column counted in runes
	lcOK      bool
}

// SyntheticOffset returns an offset for compiler-manufactured text.
func SyntheticOffset(src *Source) *Offset { return &Offset{src: src, kind: OffsetSynthetic} }

// MissingOffset returns an offset for a position the parser failed to produce.
func MissingOffset(src *Source) *Offset { return &Offset{src: src, kind: OffsetMissing} }

// AbsentOffset returns an offset for a node with no source backing.
func AbsentOffset(src *Source) *Offset { return &Offset{src: src, kind: OffsetAbsent} }

// BrokenOffset returns an offset recording an inconsistent position. The
// line/column pair is kept verbatim for diagnostics but is not assumed to
// exist in the source.
func BrokenOffset(src *Source, line, col int) *Offset {
	return &Offset{src: src, kind: OffsetBroken, line: line, col: col, lcOK: line > 0}
}

// Kind returns the offset's classification. An offset that failed a lazy
// conversion reports OffsetBroken from then on.
func (o *Offset) Kind() OffsetKind { return o.kind }

// IsConcrete reports whether the offset addresses a real source position.
func (o *Offset) IsConcrete() bool {
	return o.kind == OffsetChar || o.kind == OffsetLineCol
}

// CharOffset resolves the character offset, computing and caching it from
// the line/column pair if necessary. It reports false for non-concrete
// offsets and for conversions that fall outside the source; the latter also
// degrade the offset to OffsetBroken.
func (o *Offset) CharOffset() (int, bool) {
	if o.charOK {
		return o.char, true
	}
	if !o.IsConcrete() || !o.lcOK {
		return 0, false
	}
	char, ok := o.src.locateOffset(o.line, o.col)
	if !ok {
		o.kind = OffsetBroken
		return 0, false
	}
	o.char = char
	o.charOK = true
	return char, true
}

// Position resolves the 1-based line and column, computing and caching them
// from the character offset if necessary.
func (o *Offset) Position() (line, col int, ok bool) {
	if o.lcOK {
		return o.line, o.col, true
	}
	if !o.IsConcrete() || !o.charOK {
		return 0, 0, false
	}
	if !o.src.Check(o.char) {
		o.kind = OffsetBroken
		return 0, 0, false
	}
	o.line, o.col = o.src.locate(o.char)
	o.lcOK = true
	return o.line, o.col, true
}

// Move returns the offset shifted by delta characters. Moving a concrete
// offset outside the template yields a broken offset; moving a non-concrete
// offset is a no-op.
func (o *Offset) Move(delta int) *Offset {
	if !o.IsConcrete() {
		return o
	}
	char, ok := o.CharOffset()
	if !ok {
		return o
	}
	if !o.src.Check(char + delta) {
		line, col, _ := o.Position()
		return BrokenOffset(o.src, line, col)
	}
	return o.src.OffsetAt(char + delta)
}

// Equal reports whether two offsets address the same position. When both
// sides are unresolved line/column positions the pair is compared directly,
// avoiding a forced conversion; otherwise the resolved character offsets are
// compared. Non-concrete offsets are equal only to offsets of the same kind.
func (o *Offset) Equal(other *Offset) bool {
	if o == other {
		return true
	}
	if o.src != other.src {
		return false
	}
	if !o.IsConcrete() || !other.IsConcrete() {
		return o.kind == other.kind
	}
	if o.lcOK && !o.charOK && other.lcOK && !other.charOK {
		return o.line == other.line && o.col == other.col
	}
	a, aok := o.CharOffset()
	b, bok := other.CharOffset()
	return aok && bok && a == b
}

// Until returns the span from o up to (but not including) end.
func (o *Offset) Until(end *Offset) *Span {
	return &Span{src: o.src, start: o, end: end}
}

// Collapsed returns the empty span located at o.
func (o *Offset) Collapsed() *Span {
	return &Span{src: o.src, start: o, end: o}
}

// A Span bounds a half-open character range [start, end) in a template.
// Spans built from non-concrete offsets are "invisible": they render as their
// captured literal (if any) and behave as empty ranges under span algebra,
// but never make that algebra fail.
type Span struct {
	src        *Source
	start, end *Offset

	// literal is the captured string for synthetic spans, and the fallback
	// rendering for spans whose offsets cannot be resolved.
	literal string
}

// SyntheticSpan returns an invisible span carrying compiler-manufactured
// text.
func SyntheticSpan(src *Source, literal string) *Span {
	return &Span{src: src, start: SyntheticOffset(src), end: SyntheticOffset(src), literal: literal}
}

// MissingSpan returns an invisible span for a location the parser expected
// but could not produce.
func MissingSpan(src *Source) *Span {
	return &Span{src: src, start: MissingOffset(src), end: MissingOffset(src)}
}

// AbsentSpan returns an invisible span for embedder-injected nodes.
func AbsentSpan(src *Source) *Span {
	return &Span{src: src, start: AbsentOffset(src), end: AbsentOffset(src)}
}

// BrokenSpan returns an invisible span recording an inconsistent location.
func BrokenSpan(src *Source, startLine, startCol, endLine, endCol int) *Span {
	return &Span{src: src, start: BrokenOffset(src, startLine, startCol), end: BrokenOffset(src, endLine, endCol)}
}

// Source returns the owning template source.
func (s *Span) Source() *Source { return s.src }

// Start returns the span's start offset.
func (s *Span) Start() *Offset { return s.start }

// End returns the span's end offset.
func (s *Span) End() *Offset { return s.end }

// IsVisible reports whether both bounds resolve to character offsets.
func (s *Span) IsVisible() bool {
	_, ok1 := s.start.CharOffset()
	_, ok2 := s.end.CharOffset()
	return ok1 && ok2
}

// CharRange resolves both bounds. Invisible spans report false.
func (s *Span) CharRange() (start, end int, ok bool) {
	a, ok1 := s.start.CharOffset()
	b, ok2 := s.end.CharOffset()
	if !ok1 || !ok2 || b < a {
		return 0, 0, false
	}
	return a, b, true
}

// Len returns the character length of the span, or 0 for invisible spans.
func (s *Span) Len() int {
	a, b, ok := s.CharRange()
	if !ok {
		return 0
	}
	return b - a
}

// String returns the source text the span covers. Synthetic spans return
// their literal; other invisible spans return the empty string.
func (s *Span) String() string {
	if a, b, ok := s.CharRange(); ok {
		return s.src.Slice(a, b)
	}
	return s.literal
}

// Extend returns the span covering both s and other. The bounds are composed
// as position records: no character offset is resolved until one is needed.
func (s *Span) Extend(other *Span) *Span {
	return &Span{src: s.src, start: s.start, end: other.end, literal: s.literal}
}

// CollapseStart returns the empty span at the start bound.
func (s *Span) CollapseStart() *Span { return s.start.Collapsed() }

// CollapseEnd returns the empty span at the end bound.
func (s *Span) CollapseEnd() *Span { return s.end.Collapsed() }

// Slice returns the sub-span starting skip characters into s and covering
// length characters. Invisible spans slice to themselves.
func (s *Span) Slice(skip, length int) *Span {
	a, _, ok := s.CharRange()
	if !ok {
		return s
	}
	return &Span{src: s.src, start: s.src.OffsetAt(a + skip), end: s.src.OffsetAt(a + skip + length)}
}

// SliceStartChars returns the first n characters of the span.
func (s *Span) SliceStartChars(n int) *Span { return s.Slice(0, n) }

// SliceEndChars returns the last n characters of the span.
func (s *Span) SliceEndChars(n int) *Span {
	a, b, ok := s.CharRange()
	if !ok {
		return s
	}
	return s.Slice(b-a-n, n)
}

// SplitAt splits the span n characters in, returning the two halves.
func (s *Span) SplitAt(n int) (*Span, *Span) {
	a, b, ok := s.CharRange()
	if !ok {
		return s, s
	}
	return s.Slice(0, n), s.Slice(n, b-a-n)
}

// AnnotatedString renders a caret-style excerpt of the source line the span
// starts on, for use in diagnostics:
//
//	2 | <div class={{x}}{{y}}>
//	  |            ^^^^^^^^^^
//
// Multi-line and invisible spans fall back to the captured literal text.
func (s *Span) AnnotatedString() string {
	a, b, ok := s.CharRange()
	if !ok {
		return s.literal
	}
	startLine, startCol, ok1 := s.start.Position()
	endLine, _, ok2 := s.end.Position()
	if !ok1 || !ok2 || startLine != endLine {
		return s.src.Slice(a, b)
	}
	line := s.src.lineText(startLine)
	lineStart := a - byteLenOfCols(line, startCol-1)
	prefix := s.src.Slice(lineStart, a)
	covered := s.src.Slice(a, b)
	gutter := fmt.Sprintf("%d | ", startLine)
	pad := strings.Repeat(" ", len(fmt.Sprint(startLine)))
	caret := strings.Repeat(" ", uniseg.StringWidth(prefix)) + carets(covered)
	return gutter + line + "\n" + pad + " | " + caret
}

func carets(covered string) string {
	w := uniseg.StringWidth(covered)
	if w < 1 {
		w = 1
	}
	return strings.Repeat("^", w)
}

// byteLenOfCols returns the byte length of the first n runes of line.
func byteLenOfCols(line string, n int) int {
	i := 0
	for ; n > 0 && i < len(line); n-- {
		_, w := utf8.DecodeRuneInString(line[i:])
		i += w
	}
	return i
}

// serializedKind tags the compact form a span serializes to.
type serializedKind uint8

const (
	serializedCollapsed serializedKind = iota
	serializedConcrete
	serializedSynthetic
	serializedBroken
)

// A SerializedSpan is the compact persistent form of a Span: a collapsed
// position serializes to a single integer, a concrete range to a
// [start, length] pair, a synthetic span to its literal string, and any
// other invisible span to a tagged broken-location record. Deserialization
// needs the owning Source to resolve character offsets back on demand.
type SerializedSpan struct {
	kind          serializedKind
	start, length int
	literal       string
	broken        string
}

// Serialize returns the compact form of the span.
func (s *Span) Serialize() SerializedSpan {
	if a, b, ok := s.CharRange(); ok {
		if a == b {
			return SerializedSpan{kind: serializedCollapsed, start: a}
		}
		return SerializedSpan{kind: serializedConcrete, start: a, length: b - a}
	}
	if s.start.kind == OffsetSynthetic {
		return SerializedSpan{kind: serializedSynthetic, literal: s.literal}
	}
	sl, sc, _ := s.start.Position()
	el, ec, _ := s.end.Position()
	return SerializedSpan{
		kind:   serializedBroken,
		broken: fmt.Sprintf("%d:%d-%d:%d", sl, sc, el, ec),
	}
}

// MarshalJSON implements json.Marshaler.
func (ss SerializedSpan) MarshalJSON() ([]byte, error) {
	switch ss.kind {
	case serializedCollapsed:
		return json.Marshal(ss.start)
	case serializedConcrete:
		return json.Marshal([2]int{ss.start, ss.length})
	case serializedSynthetic:
		return json.Marshal(ss.literal)
	default:
		return json.Marshal(map[string]string{"broken": ss.broken})
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ss *SerializedSpan) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*ss = SerializedSpan{kind: serializedCollapsed, start: n}
		return nil
	}
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err == nil {
		*ss = SerializedSpan{kind: serializedConcrete, start: pair[0], length: pair[1]}
		return nil
	}
	var lit string
	if err := json.Unmarshal(data, &lit); err == nil {
		*ss = SerializedSpan{kind: serializedSynthetic, literal: lit}
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("hbml: malformed serialized span: %w", err)
	}
	*ss = SerializedSpan{kind: serializedBroken, broken: obj["broken"]}
	return nil
}

// DeserializeSpan reconstructs a Span from its compact form against the
// owning Source.
func DeserializeSpan(src *Source, ss SerializedSpan) *Span {
	switch ss.kind {
	case serializedCollapsed:
		return src.OffsetAt(ss.start).Collapsed()
	case serializedConcrete:
		return src.SpanFor(ss.start, ss.start+ss.length)
	case serializedSynthetic:
		return SyntheticSpan(src, ss.literal)
	default:
		var sl, sc, el, ec int
		fmt.Sscanf(ss.broken, "%d:%d-%d:%d", &sl, &sc, &el, &ec)
		return BrokenSpan(src, sl, sc, el, ec)
	}
}
