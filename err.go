package hbml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// Diagnostic codes. Structural and attribute-syntax problems come from the
// parser state machine, block-params.* from the block-parameter sub-parser,
// expr.* from the expression sub-parser, and parse.tokenizer wraps a
// lower-level tokenizer error verbatim.
const (
	ErrUnclosedElement    = "elements.unclosed-element"
	ErrUnbalancedTags     = "elements.unbalanced-tags"
	ErrEndWithoutStartTag = "elements.end-without-start-tag"
	ErrUnnecessaryEndTag  = "elements.unnecessary-end-tag"
	ErrInvalidMustache    = "elements.invalid-mustache"

	ErrInvalidAttrValue = "attrs.invalid-attr-value"
	ErrInvalidEndTag    = "attrs.invalid-end-tag"

	ErrBlockParamsMissingAsUnclosed = "block-params.missing-as-before-unclosed-pipe"
	ErrBlockParamsMissingAs         = "block-params.missing-as"
	ErrBlockParamsMissingPipe       = "block-params.missing-pipe"
	ErrBlockParamsUnclosed          = "block-params.unclosed"
	ErrBlockParamsEmpty             = "block-params.empty"
	ErrBlockParamsInvalidID         = "block-params.invalid-id"
	ErrBlockParamsExtraPipes        = "block-params.extra-pipes"
	ErrBlockParamsExtraAttrs        = "block-params.extra-attrs"
	ErrBlockParamsExtraBoth         = "block-params.extra-pipes-and-attrs"

	ErrBlockUnbalanced      = "blocks.unbalanced"
	ErrBlockEndWithoutOpen  = "blocks.end-without-open"
	ErrBlockUnclosed        = "blocks.unclosed"
	ErrElseWithoutBlock     = "blocks.else-without-block"
	ErrElseAlreadySeen      = "blocks.multiple-else"
	ErrUnsupportedElseChain = "blocks.unsupported-else-chain"

	ErrInvalidPath          = "expr.invalid-path"
	ErrUncallableLiteral    = "expr.uncallable-literal"
	ErrUnsupportedPartial   = "expr.unsupported-partial"
	ErrUnsupportedDecorator = "expr.unsupported-decorator"
	ErrExprSyntax           = "expr.syntax"

	ErrTokenizer     = "parse.tokenizer"
	ErrDepthExceeded = "parse.depth-exceeded"
)

// A ParseError is a single user-facing diagnostic. All diagnostics carry a
// code, a message and a source span; they are collected into the root
// Template in the order encountered rather than aborting the parse.
type ParseError struct {
	Code    string
	Message string
	Span    *Span
	// Node is the nearest constructed AST node, when one exists. It backs
	// HTMLContext.
	Node Node
	// Err is the wrapped lower-level error for passthrough diagnostics.
	Err error
}

func (e *ParseError) Error() string {
	loc := ""
	if e.Span != nil {
		if line, col, ok := e.Span.Start().Position(); ok {
			mod := e.Span.Source().Module
			if mod == "" {
				mod = "template"
			}
			loc = fmt.Sprintf(" (%s@%d:%d)", mod, line, col)
		}
	}
	return e.Code + ": " + e.Message + loc
}

func (e *ParseError) Unwrap() error { return e.Err }

// ContextualMessage returns the message followed by a caret-annotated
// excerpt of the offending source line.
func (e *ParseError) ContextualMessage() string {
	if e.Span == nil {
		return e.Message
	}
	annotated := e.Span.AnnotatedString()
	if annotated == "" {
		return e.Message
	}
	return e.Message + "\n" + annotated
}

// HTMLContext renders an HTML excerpt around the offending node: up to two
// siblings on each side, truncated with "...", wrapped in the parent
// element. It returns "" when the diagnostic has no node or the node is no
// longer in root's tree.
func (e *ParseError) HTMLContext(root *Template) string {
	if e.Node == nil {
		return ""
	}
	parent, siblings, idx := findNodeInTree(root, e.Node)
	if idx < 0 {
		return ""
	}
	doc := &etree.Element{}
	b := errorContextBuilder{}
	b.addPrevSiblings(doc, siblings, idx)
	b.addNode(doc, e.Node)
	b.addNextSiblings(doc, siblings, idx)
	doc = b.wrapParent(doc, parent)
	return renderErrorContext(doc)
}

// findNodeInTree locates target in root's statement tree, returning its
// parent container, the sibling list it sits in, and its index, or -1.
func findNodeInTree(root *Template, target Node) (parent Node, siblings []Node, idx int) {
	var search func(p Node, body []Node) bool
	search = func(p Node, body []Node) bool {
		for i, c := range body {
			if c == target {
				parent, siblings, idx = p, body, i
				return true
			}
			switch n := c.(type) {
			case *ElementNode:
				if search(n, n.Children) {
					return true
				}
			case *BlockStatement:
				if n.Program != nil && search(c, n.Program.Body) {
					return true
				}
				if n.Inverse != nil && search(c, n.Inverse.Body) {
					return true
				}
			}
		}
		return false
	}
	idx = -1
	if root != nil {
		search(root, root.Body)
	}
	return parent, siblings, idx
}

// errorContextBuilder groups the helpers that assemble the etree excerpt.
type errorContextBuilder struct{}

func (b errorContextBuilder) addPrevSiblings(doc *etree.Element, siblings []Node, i int) {
	added := 0
	var keep []Node
	for j := i - 1; j >= 0 && added < 2; j-- {
		if isWhitespaceNode(siblings[j]) {
			continue
		}
		keep = append([]Node{siblings[j]}, keep...)
		added++
		if j > 0 && added == 2 {
			doc.AddChild(etree.NewText("..."))
		}
	}
	for _, n := range keep {
		b.addNode(doc, n)
	}
}

func (b errorContextBuilder) addNextSiblings(doc *etree.Element, siblings []Node, i int) {
	added := 0
	for j := i + 1; j < len(siblings); j++ {
		if isWhitespaceNode(siblings[j]) {
			continue
		}
		if added == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		}
		b.addNode(doc, siblings[j])
		added++
	}
}

func (b errorContextBuilder) addNode(doc *etree.Element, n Node) {
	switch t := n.(type) {
	case *ElementNode:
		clone := etree.NewElement(t.Tag)
		for _, attr := range t.Attributes {
			clone.CreateAttr(attr.Name, Print(attr.Value))
		}
		if len(t.Children) > 0 {
			clone.AddChild(etree.NewText("..."))
		}
		doc.AddChild(clone)
	case *TextNode:
		if strings.TrimSpace(t.Chars) != "" {
			doc.AddChild(etree.NewText(t.Chars))
		}
	default:
		doc.AddChild(etree.NewText(Print(n)))
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, parent Node) *etree.Element {
	el, ok := parent.(*ElementNode)
	if !ok {
		return doc // do not wrap the root container
	}
	doc.Tag = el.Tag
	for _, attr := range el.Attributes {
		doc.CreateAttr(attr.Name, Print(attr.Value))
	}
	wrapper := &etree.Element{}
	wrapper.AddChild(doc)
	return wrapper
}

// renderErrorContext converts the etree excerpt to an html.Node tree and
// serializes it, so the output reads as HTML rather than XML.
func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := &html.Node{Type: html.ElementNode, Data: t.FullTag()}
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			}
		}
	}

	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)

	return buf.String()
}

func isWhitespaceNode(n Node) bool {
	t, ok := n.(*TextNode)
	return ok && strings.TrimLeft(t.Chars, whitespace) == ""
}
