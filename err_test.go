package hbml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorMessage(t *testing.T) {
	doc, err := Parse("<p>\n</div>\n</p>", Options{ModuleName: "views/home.hbs"})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Errors)

	e := doc.Errors[0]
	require.Equal(t, ErrUnbalancedTags, e.Code)
	msg := e.Error()
	require.Contains(t, msg, ErrUnbalancedTags)
	require.Contains(t, msg, "views/home.hbs@2:3")
}

func TestContextualMessage(t *testing.T) {
	doc, err := Parse("<p>\n</div>\n</p>", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Errors)

	got := doc.Errors[0].ContextualMessage()
	require.Contains(t, got, "2 | </div>")
	require.Contains(t, got, "^^^")
}

func TestContextualMessageWithoutSpan(t *testing.T) {
	e := &ParseError{Code: ErrExprSyntax, Message: "boom"}
	require.Equal(t, "boom", e.ContextualMessage())
}

func TestHTMLContext(t *testing.T) {
	doc := mustParse(t, `
		<html>
			<body>
				<h1>Lorem ipsum</h1>
				<p class="styled">dolor sit amet</p>
				consectetur adipiscing elit
				<span>sed do eiusmod</span>
				tempor incididunt
			</body>
		</html>
		`, Options{})
	require.Empty(t, doc.Errors)

	var target Node
	Walk(doc, func(n Node) bool {
		if el, ok := n.(*ElementNode); ok && el.Tag == "p" {
			target = el
		}
		return true
	})
	require.NotNil(t, target)

	e := &ParseError{Code: ErrInvalidAttrValue, Message: "bad attr", Node: target}
	got := e.HTMLContext(doc)

	require.Contains(t, got, `<p class="styled">`)
	require.Contains(t, got, "<h1>")
	require.Contains(t, got, "<span>")
	require.Contains(t, got, "<body")
	require.NotContains(t, got, "<html>", "only the immediate parent wraps the excerpt")
}

func TestHTMLContextNodeNotInTree(t *testing.T) {
	doc := mustParse(t, `<p>x</p>`, Options{})
	stray := &TextNode{Chars: "nope", Loc: SyntheticSpan(doc.Source(), "nope")}
	e := &ParseError{Node: stray}
	require.Equal(t, "", e.HTMLContext(doc))
}

func TestDiagnosticSpansPointIntoSource(t *testing.T) {
	input := `<div>{{#if a}}{{x}}{{/each}}</div>`
	doc, err := Parse(input, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Errors)

	for _, e := range doc.Errors {
		require.NotNil(t, e.Span, "%s should carry a span", e.Code)
		start, end, ok := e.Span.CharRange()
		require.True(t, ok)
		require.LessOrEqual(t, start, end)
		require.LessOrEqual(t, end, len(input))
	}
}

func TestErrorCodesAreNamespaced(t *testing.T) {
	codes := []string{
		ErrUnclosedElement, ErrUnbalancedTags, ErrInvalidAttrValue,
		ErrBlockParamsMissingAs, ErrBlockUnbalanced, ErrInvalidPath,
		ErrTokenizer,
	}
	for _, c := range codes {
		if !strings.Contains(c, ".") {
			t.Errorf("code %q should be namespaced", c)
		}
	}
}
