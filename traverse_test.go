package hbml

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func textNode(src *Source, s string) *TextNode {
	return &TextNode{Chars: s, Loc: SyntheticSpan(src, s)}
}

func TestTraverseEnterExitOrder(t *testing.T) {
	doc := mustParse(t, `<div><p>x</p></div>`, Options{})

	var events []string
	Traverse(doc, map[NodeType]Visitor{
		NodeElement: {
			Enter: func(n Node) Action {
				events = append(events, "enter "+n.(*ElementNode).Tag)
				return Action{}
			},
			Exit: func(n Node) {
				events = append(events, "exit "+n.(*ElementNode).Tag)
			},
		},
	})

	want := []string{"enter div", "enter p", "exit p", "exit div"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestTraverseRemoveFromList(t *testing.T) {
	doc := mustParse(t, `a{{x}}b{{y}}c`, Options{})

	Traverse(doc, map[NodeType]Visitor{
		NodeMustache: {Enter: func(n Node) Action { return Remove() }},
	})

	var texts []string
	for _, n := range doc.Body {
		texts = append(texts, n.(*TextNode).Chars)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, texts); diff != "" {
		t.Errorf("body after removal (-want +got):\n%s", diff)
	}
}

func TestTraverseSpliceReplacement(t *testing.T) {
	doc := mustParse(t, `{{x}}`, Options{})
	src := doc.Source()

	Traverse(doc, map[NodeType]Visitor{
		NodeMustache: {Enter: func(n Node) Action {
			return Replace(textNode(src, "1"), textNode(src, "2"), textNode(src, "3"))
		}},
	})

	require.Len(t, doc.Body, 3)
	for i, want := range []string{"1", "2", "3"} {
		require.Equal(t, want, doc.Body[i].(*TextNode).Chars)
	}
}

func TestTraverseReplacementsNotReentered(t *testing.T) {
	doc := mustParse(t, `a`, Options{})
	src := doc.Source()

	calls := 0
	Traverse(doc, map[NodeType]Visitor{
		NodeText: {
			Enter: func(n Node) Action {
				calls++
				return Replace(textNode(src, "again"))
			},
		},
	})
	if calls != 1 {
		t.Errorf("enter ran %d times, want 1: replacements must not be re-entered", calls)
	}
}

func TestTraverseExitSkippedForReplaced(t *testing.T) {
	doc := mustParse(t, `a`, Options{})
	src := doc.Source()

	exits := 0
	Traverse(doc, map[NodeType]Visitor{
		NodeText: {
			Enter: func(n Node) Action { return Replace(textNode(src, "b")) },
			Exit:  func(n Node) { exits++ },
		},
	})
	if exits != 0 {
		t.Errorf("exit ran %d times for a replaced node, want 0", exits)
	}
}

func TestTraverseReplaceSingularChild(t *testing.T) {
	doc := mustParse(t, `<a href="x"></a>`, Options{})
	src := doc.Source()

	Traverse(doc, map[NodeType]Visitor{
		NodeText: {Enter: func(n Node) Action { return Replace(textNode(src, "y")) }},
	})

	a := doc.Body[0].(*ElementNode)
	require.Equal(t, "y", a.Attributes[0].Value.(*TextNode).Chars)
}

func TestTraverseRemoveSingularChildPanics(t *testing.T) {
	doc := mustParse(t, `<a href="x"></a>`, Options{})

	defer func() {
		r := recover()
		require.NotNil(t, r, "removing a mandatory child should panic")
		te, ok := r.(*TraverseError)
		require.True(t, ok, "panic value = %T", r)
		require.True(t, errors.Is(te, ErrCannotRemoveNode))
	}()
	Traverse(doc, map[NodeType]Visitor{
		NodeText: {Enter: func(n Node) Action { return Remove() }},
	})
}

func TestTraverseMultiReplaceSingularChildPanics(t *testing.T) {
	doc := mustParse(t, `{{x}}`, Options{})
	src := doc.Source()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		te, ok := r.(*TraverseError)
		require.True(t, ok, "panic value = %T", r)
		require.True(t, errors.Is(te, ErrCannotReplaceNode))
	}()
	Traverse(doc, map[NodeType]Visitor{
		NodePath: {Enter: func(n Node) Action {
			return Replace(textNode(src, "a"), textNode(src, "b"))
		}},
	})
}

func TestTraverseRemoveInverseBlockPanics(t *testing.T) {
	doc := mustParse(t, `{{#if a}}x{{else}}y{{/if}}`, Options{})

	defer func() {
		r := recover()
		require.NotNil(t, r, "removing the inverse block should panic")
		te, ok := r.(*TraverseError)
		require.True(t, ok, "panic value = %T", r)
		require.True(t, errors.Is(te, ErrCannotRemoveNode))
	}()
	Traverse(doc, map[NodeType]Visitor{
		NodeBlock: {Enter: func(n Node) Action {
			if len(n.(*Block).Body) == 1 {
				if tn, ok := n.(*Block).Body[0].(*TextNode); ok && tn.Chars == "y" {
					return Remove()
				}
			}
			return Action{}
		}},
	})
}

func TestTraverseRemoveRequiredBlockPanics(t *testing.T) {
	doc := mustParse(t, `{{#if a}}x{{/if}}`, Options{})

	defer func() {
		r := recover()
		require.NotNil(t, r, "removing a block's program should panic")
	}()
	Traverse(doc, map[NodeType]Visitor{
		NodeBlock: {Enter: func(n Node) Action { return Remove() }},
	})
}

func TestTraverseUnknownTypePanics(t *testing.T) {
	doc := mustParse(t, `x`, Options{})

	defer func() {
		require.NotNil(t, recover(), "unknown visitor key should panic")
	}()
	Traverse(doc, map[NodeType]Visitor{
		NodeType("Bogus"): {Enter: func(n Node) Action { return Action{} }},
	})
}

func TestTraverseTypedListReplacement(t *testing.T) {
	doc := mustParse(t, `<a href="x" title="t"></a>`, Options{})
	src := doc.Source()

	Traverse(doc, map[NodeType]Visitor{
		NodeAttr: {Enter: func(n Node) Action {
			attr := n.(*AttrNode)
			if attr.Name != "href" {
				return Action{}
			}
			return Replace(&AttrNode{
				Name:     "data-href",
				Value:    textNode(src, "x"),
				Loc:      attr.Loc,
				NameSpan: attr.NameSpan,
			})
		}},
	})

	a := doc.Body[0].(*ElementNode)
	require.Len(t, a.Attributes, 2)
	require.Equal(t, "data-href", a.Attributes[0].Name)
	require.Equal(t, "title", a.Attributes[1].Name)
}

func TestWalkSkipsChildrenOnFalse(t *testing.T) {
	doc := mustParse(t, `<div><p>x</p></div>`, Options{})

	var seen []NodeType
	Walk(doc, func(n Node) bool {
		seen = append(seen, n.Type())
		return n.Type() != NodeElement // do not descend into elements
	})
	want := []NodeType{NodeTemplate, NodeElement}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}
