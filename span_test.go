package hbml

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOffsetLazyResolution(t *testing.T) {
	src := NewSource("ab\ncdef\ng", "t.hbs")

	// Character-first offsets resolve line/column on demand.
	o := src.OffsetAt(5)
	if line, col, ok := o.Position(); !ok || line != 2 || col != 3 {
		t.Errorf("Position() = %d:%d, %v, want 2:3", line, col, ok)
	}

	// Line/column-first offsets resolve the character offset on demand, and
	// the two constructions agree.
	o2 := src.OffsetFor(2, 3)
	if char, ok := o2.CharOffset(); !ok || char != 5 {
		t.Errorf("CharOffset() = %d, %v, want 5", char, ok)
	}
	if !o.Equal(o2) {
		t.Error("OffsetAt(5) and OffsetFor(2, 3) should be equal")
	}
}

func TestOffsetEqualWithoutResolution(t *testing.T) {
	src := NewSource("ab\ncd", "")
	a := src.OffsetFor(2, 2)
	b := src.OffsetFor(2, 2)
	if !a.Equal(b) {
		t.Error("identical line/col offsets should be equal")
	}
	// Neither side should have been forced to a character offset.
	if a.charOK || b.charOK {
		t.Error("Equal resolved character offsets for two line/col offsets")
	}
}

func TestOffsetMove(t *testing.T) {
	src := NewSource("hello", "")
	o := src.OffsetAt(1).Move(3)
	if char, ok := o.CharOffset(); !ok || char != 4 {
		t.Errorf("Move(3) = %d, %v, want 4", char, ok)
	}
	if broken := src.OffsetAt(1).Move(50); broken.Kind() != OffsetBroken {
		t.Errorf("Move out of range: kind = %v, want OffsetBroken", broken.Kind())
	}
	if s := SyntheticOffset(src).Move(2); s.Kind() != OffsetSynthetic {
		t.Error("moving a synthetic offset should be a no-op")
	}
}

func TestBrokenOffsetDegrades(t *testing.T) {
	src := NewSource("ab", "")
	o := src.OffsetFor(9, 9)
	if _, ok := o.CharOffset(); ok {
		t.Fatal("out-of-range line/col should not resolve")
	}
	if o.Kind() != OffsetBroken {
		t.Errorf("kind = %v, want OffsetBroken after failed resolution", o.Kind())
	}
}

func TestSpanStringAndExtend(t *testing.T) {
	src := NewSource("<div>Hello</div>", "")
	a := src.SpanFor(0, 5)
	b := src.SpanFor(5, 10)
	if got := a.String(); got != "<div>" {
		t.Errorf("String() = %q", got)
	}
	if got := a.Extend(b).String(); got != "<div>Hello" {
		t.Errorf("Extend().String() = %q", got)
	}
	if got := a.CollapseEnd().String(); got != "" {
		t.Errorf("CollapseEnd().String() = %q, want empty", got)
	}
	if a.CollapseEnd().Len() != 0 {
		t.Error("collapsed span should have zero length")
	}

	c := src.SpanFor(10, 16)
	left := a.Extend(b).Extend(c)
	right := a.Extend(b.Extend(c))
	if left.String() != right.String() {
		t.Errorf("extend is not associative: %q vs %q", left.String(), right.String())
	}
}

func TestSpanExtendStaysLazy(t *testing.T) {
	src := NewSource("ab\ncd\nef", "")
	a := src.OffsetFor(1, 1).Until(src.OffsetFor(1, 3))
	b := src.OffsetFor(3, 1).Until(src.OffsetFor(3, 3))
	joined := a.Extend(b)
	if joined.start.charOK || joined.end.charOK {
		t.Fatal("Extend should not resolve character offsets")
	}
	if got := joined.String(); got != "ab\ncd\nef" {
		t.Errorf("String() = %q", got)
	}
}

func TestSpanSlices(t *testing.T) {
	src := NewSource("0123456789", "")
	s := src.SpanFor(2, 8) // "234567"
	if got := s.Slice(1, 2).String(); got != "34" {
		t.Errorf("Slice(1, 2) = %q", got)
	}
	if got := s.SliceStartChars(3).String(); got != "234" {
		t.Errorf("SliceStartChars(3) = %q", got)
	}
	if got := s.SliceEndChars(2).String(); got != "67" {
		t.Errorf("SliceEndChars(2) = %q", got)
	}
	head, tail := s.SplitAt(4)
	if head.String() != "2345" || tail.String() != "67" {
		t.Errorf("SplitAt(4) = %q, %q", head.String(), tail.String())
	}
}

func TestInvisibleSpans(t *testing.T) {
	src := NewSource("abc", "")
	syn := SyntheticSpan(src, "{{manufactured}}")
	if syn.IsVisible() {
		t.Error("synthetic span should be invisible")
	}
	if got := syn.String(); got != "{{manufactured}}" {
		t.Errorf("synthetic String() = %q", got)
	}
	if MissingSpan(src).String() != "" {
		t.Error("missing span should render empty")
	}
	if AbsentSpan(src).Len() != 0 {
		t.Error("absent span should be empty under span algebra")
	}
}

func TestAnnotatedString(t *testing.T) {
	src := NewSource("<p>\n<div class={{x}}>\n</p>", "")
	s := src.SpanFor(15, 20) // {{x}}
	want := "2 | <div class={{x}}>\n" +
		"  | " + strings.Repeat(" ", 11) + "^^^^^"
	if got := s.AnnotatedString(); got != want {
		t.Errorf("AnnotatedString() =\n%s\nwant:\n%s", got, want)
	}
}

func TestAnnotatedStringFallsBack(t *testing.T) {
	src := NewSource("ab\ncd", "")
	multi := src.SpanFor(0, 5)
	if got := multi.AnnotatedString(); got != "ab\ncd" {
		t.Errorf("multi-line AnnotatedString() = %q", got)
	}
	if got := SyntheticSpan(src, "lit").AnnotatedString(); got != "lit" {
		t.Errorf("synthetic AnnotatedString() = %q", got)
	}
}

func TestSpanSerialization(t *testing.T) {
	src := NewSource("0123456789", "")

	tests := []struct {
		name string
		span *Span
		json string
	}{
		{"concrete", src.SpanFor(2, 5), "[2,3]"},
		{"collapsed", src.OffsetAt(7).Collapsed(), "7"},
		{"synthetic", SyntheticSpan(src, "hi"), `"hi"`},
		{"broken", BrokenSpan(src, 1, 2, 3, 4), `{"broken":"1:2-3:4"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.span.Serialize())
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.json {
				t.Errorf("marshal = %s, want %s", data, tt.json)
			}

			var ss SerializedSpan
			if err := json.Unmarshal(data, &ss); err != nil {
				t.Fatal(err)
			}
			back := DeserializeSpan(src, ss)
			if diff := cmp.Diff(tt.span.String(), back.String()); diff != "" {
				t.Errorf("round trip text mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
