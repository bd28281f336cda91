package hbml

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const whitespace = " \t\r\n\f"

// defaultMaxDepth bounds element/block nesting. Exceeding it is a fatal
// parse error rather than a host stack overflow.
const defaultMaxDepth = 512

// Mode selects between the two consumers of the parse tree.
type Mode int

const (
	// ModePrecompile is the default: whitespace-control mustaches strip
	// adjacent text and HTML entities are decoded.
	ModePrecompile Mode = iota
	// ModeCodemod preserves round-trip fidelity: no whitespace stripping,
	// no entity decoding.
	ModeCodemod
)

// Options configures a parse.
type Options struct {
	// ModuleName identifies the template in diagnostics.
	ModuleName string
	// StrictMode is recorded on the resulting Template for downstream
	// compilation stages; it does not change parsing.
	StrictMode bool
	// Locals is the embedder's binding predicate, consulted when
	// classifying free path heads. LocalNames is the list form; both may
	// be set.
	Locals     func(name string) bool
	LocalNames []string
	Mode       Mode
	// ThrowErrors makes Parse return the first diagnostic as an error
	// instead of attaching the collected list to the Template.
	ThrowErrors bool
	Plugins     []ASTPlugin
	// MaxDepth overrides the element/block nesting limit; 0 means the
	// default.
	MaxDepth int
}

// voidElements never take end tags; a stray one is reported and dropped.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Keygen: true, atom.Link: true, atom.Meta: true, atom.Param: true,
	atom.Source: true, atom.Track: true, atom.Wbr: true,
}

func isVoidElement(name string) bool {
	return voidElements[atom.Lookup([]byte(strings.ToLower(name)))]
}

// A frame is one open container on the parent stack: an element awaiting
// its end tag, or a block statement awaiting {{/...}}.
type frame struct {
	element *ElementNode
	block   *BlockStatement
	// body is the block sub-program currently receiving children; it
	// moves from Program to Inverse when {{else}} is seen.
	body     *Block
	inElse   bool
	name     string
	nameSpan *Span
	start    int // template offset of the open construct
	hasScope bool
}

// frameStack is the stack of open containers.
type frameStack []*frame

// pop pops the stack. It will panic if the stack is empty.
func (s *frameStack) pop() *frame {
	i := len(*s)
	f := (*s)[i-1]
	*s = (*s)[:i-1]
	return f
}

// top returns the most recently pushed frame, or nil if the stack is empty.
func (s *frameStack) top() *frame {
	if i := len(*s); i > 0 {
		return (*s)[i-1]
	}
	return nil
}

// scopeStack tracks block-param names in scope, outermost first.
type scopeStack [][]string

func (s *scopeStack) push(params []string) { *s = append(*s, params) }

func (s *scopeStack) pop() {
	if len(*s) == 0 {
		panic("hbml: unbalanced scope stack pop")
	}
	*s = (*s)[:len(*s)-1]
}

func (s scopeStack) has(name string) bool {
	for _, params := range s {
		if slices.Contains(params, name) {
			return true
		}
	}
	return false
}

// A parser builds the AST from the x/net/html token stream. The tokenizer
// hands over whole tokens; mustaches inside text, comments and tags ride
// through it as ordinary characters and are split back out here.
type parser struct {
	src       *Source
	opts      Options
	tokenizer *html.Tokenizer

	// offset is the template offset of the next token's first byte,
	// maintained by summing the raw length of every consumed token.
	offset int

	doc   *Template
	oe    frameStack
	scope scopeStack
	errs  []*ParseError
	fatal error

	// pendingStrip is set by a {{~...~}} right flag so the next text run
	// is left-trimmed.
	pendingStrip bool
}

// Parse parses template text into its AST. Diagnostics are collected on the
// returned Template rather than aborting the parse, so a single pass can
// surface every independent problem; ThrowErrors flips that to returning
// the first diagnostic. The returned error is otherwise reserved for fatal
// conditions such as the nesting-depth guard.
func Parse(text string, opts Options) (*Template, error) {
	src := NewSource(text, opts.ModuleName)
	p := &parser{
		src:       src,
		opts:      opts,
		tokenizer: html.NewTokenizer(strings.NewReader(text)),
		doc:       &Template{src: src, Strict: opts.StrictMode, Loc: src.SpanFor(0, len(text))},
	}

	p.run()
	if p.fatal != nil {
		return nil, p.fatal
	}
	p.doc.Errors = p.errs

	if err := applyPlugins(p.doc, opts); err != nil {
		return nil, err
	}
	if opts.ThrowErrors && len(p.doc.Errors) > 0 {
		// Throw mode surfaces the first diagnostic instead of attaching
		// the list.
		first := p.doc.Errors[0]
		p.doc.Errors = nil
		return p.doc, first
	}
	return p.doc, nil
}

func (p *parser) maxDepth() int {
	if p.opts.MaxDepth > 0 {
		return p.opts.MaxDepth
	}
	return defaultMaxDepth
}

func (p *parser) run() {
	for p.fatal == nil {
		tt := p.tokenizer.Next()
		raw := string(p.tokenizer.Raw())
		tokStart := p.offset
		p.offset += len(raw)

		// A {{~...~}} right flag reaches adjacent text only, never text
		// behind an intervening tag or comment.
		if tt != html.TextToken {
			p.pendingStrip = false
		}

		switch tt {
		case html.ErrorToken:
			err := p.tokenizer.Err()
			if err != io.EOF {
				p.error(ErrTokenizer, p.src.SpanFor(tokStart, p.offset), "%s", err)
				p.errs[len(p.errs)-1].Err = err
			} else if len(raw) > 0 {
				// A construct the tokenizer could not finish, e.g. an
				// unterminated `<div`.
				p.error(ErrTokenizer, p.src.SpanFor(tokStart, p.offset), "unexpected end of file in tag")
			}
			p.finish()
			return
		case html.TextToken:
			p.parseText(raw, tokStart)
		case html.StartTagToken:
			p.parseStartTag(raw, tokStart, false)
		case html.SelfClosingTagToken:
			p.parseStartTag(raw, tokStart, true)
		case html.EndTagToken:
			p.parseEndTag(raw, tokStart)
		case html.CommentToken:
			p.parseComment(raw, tokStart)
		case html.DoctypeToken:
			// The language has no doctype handling; keep the bytes as text
			// so codemods round-trip.
			p.addText(raw, p.src.SpanFor(tokStart, p.offset))
		}
	}
}

// finish runs at end of input: anything still open is reported and closed
// best-effort at EOF.
func (p *parser) finish() {
	for len(p.oe) > 0 {
		f := p.oe.pop()
		if f.hasScope {
			p.scope.pop()
		}
		if f.element != nil {
			p.error(ErrUnclosedElement, f.nameSpan, "unclosed element <%s>", f.name)
			f.element.Loc = p.src.SpanFor(f.start, len(p.src.Text))
		} else {
			p.error(ErrBlockUnclosed, f.nameSpan, "unclosed block {{#%s}}", f.name)
			f.block.Loc = p.src.SpanFor(f.start, len(p.src.Text))
		}
	}
	if len(p.scope) != 0 {
		panic("hbml: unbalanced scope stack at end of parse")
	}
}

func (p *parser) error(code string, span *Span, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// classify resolves a path head against the scope stack and the embedder
// bindings. The three-way result is parser-owned state consumed later by
// the symbol table.
func (p *parser) classify(head string) VarKind {
	if p.scope.has(head) {
		return VarLocal
	}
	if p.opts.Locals != nil && p.opts.Locals(head) {
		return VarEmbedder
	}
	if slices.Contains(p.opts.LocalNames, head) {
		return VarEmbedder
	}
	return VarFree
}

// appendChild attaches a statement to the current container: the innermost
// open element or block body, or the template root.
func (p *parser) appendChild(n Node) {
	if f := p.oe.top(); f != nil {
		if f.element != nil {
			f.element.Children = append(f.element.Children, n)
		} else {
			f.body.Body = append(f.body.Body, n)
		}
		return
	}
	p.doc.Body = append(p.doc.Body, n)
}

// lastChild returns the current container's last statement, or nil.
func (p *parser) lastChild() Node {
	var body []Node
	if f := p.oe.top(); f != nil {
		if f.element != nil {
			body = f.element.Children
		} else {
			body = f.body.Body
		}
	} else {
		body = p.doc.Body
	}
	if len(body) == 0 {
		return nil
	}
	return body[len(body)-1]
}

// addText appends text to the preceding text node if there is one, or else
// starts a new one.
func (p *parser) addText(chars string, span *Span) {
	if chars == "" {
		return
	}
	if t, ok := p.lastChild().(*TextNode); ok {
		t.Chars += chars
		t.Loc = t.Loc.Extend(span)
		return
	}
	p.appendChild(&TextNode{Chars: chars, Loc: span})
}

// trimLastText right-trims the current container's trailing text node, for
// a {{~ left-strip flag.
func (p *parser) trimLastText() {
	if t, ok := p.lastChild().(*TextNode); ok {
		t.Chars = strings.TrimRight(t.Chars, whitespace)
	}
}

func (p *parser) handleStrip(it item) {
	if p.opts.Mode == ModeCodemod {
		return
	}
	if it.stripLeft {
		p.trimLastText()
	}
	// A strip flag only reaches the text immediately next to it.
	p.pendingStrip = it.stripRight
}

// parseText splits a text token into literal runs and mustache items.
func (p *parser) parseText(raw string, base int) {
	for _, it := range lexItems(raw) {
		span := p.src.SpanFor(base+it.pos, base+it.end)
		switch it.typ {
		case itemText:
			chars := it.val
			if p.opts.Mode != ModeCodemod {
				chars = html.UnescapeString(chars)
				if p.pendingStrip {
					chars = strings.TrimLeft(chars, whitespace)
				}
			}
			p.pendingStrip = false
			p.addText(chars, span)
		case itemError:
			p.error(ErrExprSyntax, span, "%s", it.val)
		case itemComment:
			p.handleStrip(it)
			p.appendChild(&MustacheCommentStatement{Value: it.val, Loc: span})
		case itemMustache:
			p.handleStrip(it)
			if n := p.parseMustacheItem(it, base); n != nil {
				p.appendChild(n)
			}
		case itemBlockOpen:
			p.handleStrip(it)
			p.openBlock(it, base)
		case itemElse:
			p.handleStrip(it)
			p.elseBlock(it, base)
		case itemBlockClose:
			p.handleStrip(it)
			p.closeBlock(it, base)
		}
	}
}

// parseMustacheItem parses one {{...}} item into a MustacheStatement, or
// reports why it cannot be one.
func (p *parser) parseMustacheItem(it item, base int) Node {
	span := p.src.SpanFor(base+it.pos, base+it.end)
	switch {
	case strings.HasPrefix(it.val, ">"):
		p.error(ErrUnsupportedPartial, span, "partials are not supported")
		return nil
	case strings.HasPrefix(it.val, "*"):
		p.error(ErrUnsupportedDecorator, span, "decorators are not supported")
		return nil
	}
	ep := newExprParser(p.src, base+it.inner, it.val, p.classify)
	path, params, hash := ep.parseCall()
	ep.expectEOF()
	p.errs = append(p.errs, ep.errs...)
	if path == nil {
		return nil
	}
	return &MustacheStatement{
		Path:     path,
		Params:   params,
		Hash:     hash,
		Trusting: it.trusting,
		Loc:      span,
	}
}

// openBlock starts a {{#name ...}} block: the statement is attached to the
// current parent now; its span and bodies are completed at {{/name}}.
func (p *parser) openBlock(it item, base int) {
	ep := newExprParser(p.src, base+it.inner, it.val, p.classify)
	path, params, hash := ep.parseCall()
	blockParams := ep.parseBlockParams()
	ep.expectEOF()
	p.errs = append(p.errs, ep.errs...)
	if path == nil {
		return
	}

	openSpan := p.src.SpanFor(base+it.pos, base+it.end)
	prog := &Block{BlockParams: blockParams, Loc: openSpan.CollapseEnd()}
	bs := &BlockStatement{
		Path:     path,
		Params:   params,
		Hash:     hash,
		Program:  prog,
		Loc:      openSpan,
		NameSpan: path.Span(),
	}
	p.appendChild(bs)

	if len(p.oe) >= p.maxDepth() {
		p.fatal = &ParseError{
			Code:    ErrDepthExceeded,
			Message: fmt.Sprintf("maximum nesting depth %d exceeded", p.maxDepth()),
			Span:    openSpan,
		}
		return
	}
	p.oe = append(p.oe, &frame{
		block:    bs,
		body:     prog,
		name:     pathName(path),
		nameSpan: path.Span(),
		start:    base + it.pos,
		hasScope: true,
	})
	p.scope.push(blockParams)
}

// elseBlock switches the innermost open block to its inverse body.
func (p *parser) elseBlock(it item, base int) {
	span := p.src.SpanFor(base+it.pos, base+it.end)
	f := p.oe.top()
	if f == nil || f.block == nil {
		p.error(ErrElseWithoutBlock, span, "{{else}} outside of a block")
		return
	}
	if f.inElse {
		p.error(ErrElseAlreadySeen, span, "a block may have at most one {{else}}")
		return
	}
	if strings.TrimSpace(it.val) != "" {
		p.error(ErrUnsupportedElseChain, span, "chained {{else %s}} is not supported", strings.TrimSpace(it.val))
	}
	f.body.Loc = f.body.Loc.Extend(span.CollapseStart())
	inverse := &Block{Loc: span.CollapseEnd()}
	f.block.Inverse = inverse
	f.body = inverse
	f.inElse = true
	// Block params are not in scope in the inverse body.
	if f.hasScope {
		p.scope.pop()
		p.scope.push(nil)
	}
}

// closeBlock validates {{/name}} against the stack top. Unclosed elements
// found on the way are reported and abandoned so the parse resynchronizes.
func (p *parser) closeBlock(it item, base int) {
	span := p.src.SpanFor(base+it.pos, base+it.end)
	name := strings.TrimSpace(it.val)

	for {
		f := p.oe.top()
		if f == nil {
			p.error(ErrBlockEndWithoutOpen, span, "{{/%s}} without a matching {{#%s}}", name, name)
			return
		}
		if f.element != nil {
			// An element opened inside the block was never closed; report
			// it and keep going with a best-effort tree.
			p.error(ErrUnclosedElement, f.nameSpan, "unclosed element <%s>", f.name)
			f.element.Loc = p.src.SpanFor(f.start, base+it.pos)
			p.oe.pop()
			if f.hasScope {
				p.scope.pop()
			}
			continue
		}
		if f.name != name {
			p.error(ErrBlockUnbalanced, span, "{{/%s}} doesn't match {{#%s}}", name, f.name)
			return
		}
		f.body.Loc = f.body.Loc.Extend(span.CollapseStart())
		f.block.Loc = p.src.SpanFor(f.start, base+it.end)
		p.oe.pop()
		if f.hasScope {
			p.scope.pop()
		}
		return
	}
}

// parseStartTag builds an element from a start-tag token, rescanning the
// raw bytes for spans, modifiers and block params.
func (p *parser) parseStartTag(raw string, base int, selfClosing bool) {
	t := scanTag(raw)
	nameSpan := p.src.SpanFor(base+t.nameStart, base+t.nameEnd)

	if containsMustache(t.name) {
		p.error(ErrInvalidMustache, nameSpan, "invalid mustache in a tag name")
	}

	el := &ElementNode{
		Tag:         t.name,
		SelfClosing: selfClosing || t.selfClosing,
		NameSpan:    nameSpan,
		Loc:         p.src.SpanFor(base, base+len(raw)),
	}

	var bare []rawAttr
	for _, a := range t.attrs {
		if !a.mustache && !a.hasValue {
			bare = append(bare, a)
		}
	}
	res := parseElementBlockParams(p.src, base, bare)
	if res.err != nil {
		res.err.Node = el
		p.errs = append(p.errs, res.err)
	}
	el.BlockParams = res.params

	// Bare tokens past the boolean-attribute prefix were consumed (or
	// invalidated) by the block-params group above.
	boolAttrs := len(res.remaining)
	for _, a := range t.attrs {
		switch {
		case a.mustache:
			p.parseTagMustache(el, a, base)
		case a.hasValue:
			el.Attributes = append(el.Attributes, p.buildAttr(raw, a, base))
		case boolAttrs > 0:
			boolAttrs--
			el.Attributes = append(el.Attributes, p.buildAttr(raw, a, base))
		}
	}

	p.appendChild(el)

	if el.SelfClosing || isVoidElement(t.name) {
		return
	}
	if len(p.oe) >= p.maxDepth() {
		p.fatal = &ParseError{
			Code:    ErrDepthExceeded,
			Message: fmt.Sprintf("maximum nesting depth %d exceeded", p.maxDepth()),
			Span:    nameSpan,
		}
		return
	}
	p.oe = append(p.oe, &frame{
		element:  el,
		name:     t.name,
		nameSpan: nameSpan,
		start:    base,
		hasScope: true,
	})
	p.scope.push(el.BlockParams)
}

// parseTagMustache handles a bare {{...}} inside a start tag: a modifier,
// a tag comment, or an error for the block forms.
func (p *parser) parseTagMustache(el *ElementNode, a rawAttr, base int) {
	items := lexItems(a.key)
	for _, it := range items {
		it.pos += a.keyStart
		it.end += a.keyStart
		it.inner += a.keyStart
		span := p.src.SpanFor(base+it.pos, base+it.end)
		switch it.typ {
		case itemComment:
			el.Comments = append(el.Comments, &MustacheCommentStatement{Value: it.val, Loc: span})
		case itemMustache:
			ep := newExprParser(p.src, base+it.inner, it.val, p.classify)
			path, params, hash := ep.parseCall()
			ep.expectEOF()
			p.errs = append(p.errs, ep.errs...)
			if path == nil {
				continue
			}
			el.Modifiers = append(el.Modifiers, &ElementModifierStatement{
				Path: path, Params: params, Hash: hash, Loc: span,
			})
		case itemError:
			p.error(ErrExprSyntax, span, "%s", it.val)
		case itemEOF, itemText:
			// Stray bytes around the mustache run; nothing to attach.
		default:
			p.error(ErrInvalidMustache, span, "block mustaches are not allowed inside an element tag")
		}
	}
}

// buildAttr assembles one attribute and its (possibly concatenated) value.
func (p *parser) buildAttr(raw string, a rawAttr, base int) *AttrNode {
	nameSpan := p.src.SpanFor(base+a.keyStart, base+a.keyEnd)
	attr := &AttrNode{Name: a.key, NameSpan: nameSpan}

	if !a.hasValue {
		attr.Loc = nameSpan
		attr.Value = &TextNode{Chars: "", Loc: nameSpan.CollapseEnd()}
		return attr
	}

	end := a.valEnd
	if a.quote != 0 {
		end++ // include the closing quote
	}
	attr.Loc = p.src.SpanFor(base+a.keyStart, base+end)
	attr.Value = p.buildAttrValue(raw[a.valStart:a.valEnd], base+a.valStart, a.quote != 0)
	return attr
}

// buildAttrValue parses an attribute value into a text node, a single
// mustache, or a concat of interleaved parts. Unquoted values permit
// exactly one dynamic part, optionally followed by a literal "/" kept for
// self-closing compatibility.
func (p *parser) buildAttrValue(value string, base int, quoted bool) Node {
	span := p.src.SpanFor(base, base+len(value))
	items := lexItems(value)

	var parts []Node
	dynamic := 0
	invalid := false
	for _, it := range items {
		partSpan := p.src.SpanFor(base+it.pos, base+it.end)
		switch it.typ {
		case itemText:
			chars := it.val
			if p.opts.Mode != ModeCodemod {
				chars = html.UnescapeString(chars)
			}
			parts = append(parts, &TextNode{Chars: chars, Loc: partSpan})
		case itemMustache:
			if n := p.parseMustacheItem(it, base); n != nil {
				parts = append(parts, n)
				dynamic++
			}
		case itemEOF:
		case itemError:
			p.error(ErrExprSyntax, partSpan, "%s", it.val)
			invalid = true
		default:
			// Block and else mustaches cannot form an attribute value.
			invalid = true
		}
	}

	if invalid {
		p.error(ErrInvalidAttrValue, span, "invalid attribute value %q", value)
		return &TextNode{Chars: value, Loc: span}
	}

	if !quoted && dynamic > 0 {
		// Tolerate `src={{x}}/` from self-closing tags; anything else
		// combined with a dynamic part is an error.
		if dynamic == 1 && len(parts) == 2 {
			if t, ok := parts[1].(*TextNode); ok && t.Chars == "/" {
				parts = parts[:1]
			}
		}
		if len(parts) != 1 {
			p.error(ErrInvalidAttrValue, span,
				"an unquoted attribute value must be a string or a single mustache")
			return &TextNode{Chars: value, Loc: span}
		}
		return parts[0]
	}

	switch {
	case len(parts) == 0:
		return &TextNode{Chars: "", Loc: span}
	case len(parts) == 1 && dynamic == 0:
		return parts[0]
	case len(parts) == 1 && dynamic == 1:
		return parts[0]
	default:
		return &ConcatStatement{Parts: parts, Loc: span}
	}
}

// parseEndTag validates an end tag against the stack top. A failed
// validation reports the diagnostic and discards the tag, leaving the stack
// for later tags to resynchronize against.
func (p *parser) parseEndTag(raw string, base int) {
	t := scanTag(raw)
	nameSpan := p.src.SpanFor(base+t.nameStart, base+t.nameEnd)

	if len(t.attrs) > 0 {
		first, last := t.attrs[0], t.attrs[len(t.attrs)-1]
		p.error(ErrInvalidEndTag, p.src.SpanFor(base+first.keyStart, base+last.keyEnd),
			"an end tag cannot have attributes")
	}

	f := p.oe.top()
	if f == nil || f.element == nil {
		if isVoidElement(t.name) {
			p.error(ErrUnnecessaryEndTag, nameSpan, "</%s> is unnecessary: <%s> has no end tag", t.name, t.name)
			return
		}
		p.error(ErrEndWithoutStartTag, nameSpan, "</%s> without a matching start tag", t.name)
		return
	}
	if isVoidElement(t.name) {
		p.error(ErrUnnecessaryEndTag, nameSpan, "</%s> is unnecessary: <%s> has no end tag", t.name, t.name)
		return
	}
	if !strings.EqualFold(f.name, t.name) {
		p.error(ErrUnbalancedTags, nameSpan, "</%s> doesn't match <%s>", t.name, f.name)
		return
	}

	p.oe.pop()
	if f.hasScope {
		p.scope.pop()
	}
	f.element.Loc = p.src.SpanFor(f.start, base+len(raw))
}

// parseComment keeps an HTML comment's content verbatim: mustache-looking
// text inside it stays uninterpreted.
func (p *parser) parseComment(raw string, base int) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "<!--"), "-->")
	p.appendChild(&CommentStatement{
		Value: inner,
		Loc:   p.src.SpanFor(base, base+len(raw)),
	})
}

// pathName is the canonical name of a block's path for open/close matching.
func pathName(path Node) string {
	if pe, ok := path.(*PathExpression); ok {
		return pe.Original
	}
	return strings.TrimSpace(path.Span().String())
}
