package hbml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/expr-lang/expr/file"
)

// The expression sub-parser turns the inner content of a mustache into an
// already-parsed expression tree (path or literal callee, positional params,
// hash pairs, optional trailing block params). The markup parser only
// decides where the resulting nodes attach.

type exprTokKind uint8

const (
	tEOF exprTokKind = iota
	tIdent
	tString
	tNumber
	tOpen   // (
	tClose  // )
	tEquals // =
	tPipe   // |
	tInvalid
)

type exprTok struct {
	kind     exprTokKind
	text     string
	pos, end int // relative to the expression source
}

// exprParser scans and parses one mustache's inner content. base is the
// character offset of that content within the template, so every node and
// diagnostic it produces carries an exact span.
type exprParser struct {
	src  *Source
	base int
	in   string
	pos  int

	toks []exprTok
	cur  int

	// classify resolves a path head to its parse-time kind; supplied by
	// the markup parser, which owns the scope stack.
	classify func(head string) VarKind

	errs []*ParseError
}

func newExprParser(src *Source, base int, in string, classify func(string) VarKind) *exprParser {
	p := &exprParser{src: src, base: base, in: in, classify: classify}
	p.tokenize()
	return p
}

func (p *exprParser) spanAt(pos, end int) *Span {
	return p.src.SpanFor(p.base+pos, p.base+end)
}

// errorAt records a diagnostic wrapping the collaborator's native error
// type, so callers matching on *file.Error keep working.
func (p *exprParser) errorAt(code string, pos, end int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errs = append(p.errs, &ParseError{
		Code:    code,
		Message: msg,
		Span:    p.spanAt(pos, end),
		Err:     &file.Error{Location: file.Location{From: p.base + pos, To: p.base + end}, Message: msg},
	})
}

func (p *exprParser) tokenize() {
	i := 0
	in := p.in
	for i < len(in) {
		r, w := utf8.DecodeRuneInString(in[i:])
		switch {
		case strings.ContainsRune(whitespace, r):
			i += w
		case r == '(':
			p.toks = append(p.toks, exprTok{tOpen, "(", i, i + 1})
			i++
		case r == ')':
			p.toks = append(p.toks, exprTok{tClose, ")", i, i + 1})
			i++
		case r == '=':
			p.toks = append(p.toks, exprTok{tEquals, "=", i, i + 1})
			i++
		case r == '|':
			p.toks = append(p.toks, exprTok{tPipe, "|", i, i + 1})
			i++
		case r == '"' || r == '\'':
			start := i
			i++
			for i < len(in) && rune(in[i]) != r {
				if in[i] == '\\' && i+1 < len(in) {
					i++
				}
				i++
			}
			if i >= len(in) {
				p.toks = append(p.toks, exprTok{tInvalid, in[start:], start, len(in)})
				p.errorAt(ErrExprSyntax, start, len(in), "unterminated string literal")
				i = len(in)
				break
			}
			i++ // closing quote
			p.toks = append(p.toks, exprTok{tString, in[start:i], start, i})
		case unicode.IsDigit(r) || r == '-' && i+1 < len(in) && isDigitByte(in[i+1]):
			start := i
			i++
			for i < len(in) && (isDigitByte(in[i]) || in[i] == '.' || in[i] == 'e' || in[i] == 'E' || in[i] == '+' || in[i] == '-') {
				i++
			}
			p.toks = append(p.toks, exprTok{tNumber, in[start:i], start, i})
		case isPathRune(r):
			start := i
			for i < len(in) {
				r2, w2 := utf8.DecodeRuneInString(in[i:])
				if !isPathRune(r2) {
					break
				}
				i += w2
			}
			p.toks = append(p.toks, exprTok{tIdent, in[start:i], start, i})
		default:
			p.toks = append(p.toks, exprTok{tInvalid, string(r), i, i + w})
			p.errorAt(ErrExprSyntax, i, i+w, "unexpected character %q in expression", string(r))
			i += w
		}
	}
	p.toks = append(p.toks, exprTok{tEOF, "", len(in), len(in)})
}

// isPathRune matches the characters that may appear in a path token,
// including the `.` and `/` separators and the `@` argument sigil.
func isPathRune(r rune) bool {
	return r == '_' || r == '-' || r == '$' || r == '.' || r == '/' || r == '@' ||
		unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func (p *exprParser) peek() exprTok { return p.toks[p.cur] }

func (p *exprParser) nextTok() exprTok {
	t := p.toks[p.cur]
	if t.kind != tEOF {
		p.cur++
	}
	return t
}

// parseCall parses `callee param* hash?` — the content of a mustache,
// modifier or sub-expression.
func (p *exprParser) parseCall() (path Node, params []Node, hash *Hash) {
	path = p.parseValue()
	if path == nil {
		return nil, nil, nil
	}
	for {
		t := p.peek()
		if t.kind == tEOF || t.kind == tClose || t.kind == tPipe {
			break
		}
		if t.kind == tIdent && t.text == "as" {
			break
		}
		// `key=value` starts the hash; everything before is positional.
		if t.kind == tIdent && p.toks[p.cur+1].kind == tEquals {
			hash = p.parseHash()
			break
		}
		v := p.parseValue()
		if v == nil {
			break
		}
		params = append(params, v)
	}
	if (len(params) > 0 || hash != nil) && isLiteral(path) {
		s := path.Span()
		a, _ := s.Start().CharOffset()
		b, _ := s.End().CharOffset()
		p.errorAt(ErrUncallableLiteral, a-p.base, b-p.base, "%s is not callable", strings.TrimSpace(s.String()))
	}
	return path, params, hash
}

func (p *exprParser) parseHash() *Hash {
	h := &Hash{}
	first, last := -1, -1
	for {
		t := p.peek()
		if t.kind != tIdent || p.toks[p.cur+1].kind != tEquals {
			break
		}
		p.nextTok() // key
		p.nextTok() // =
		v := p.parseValue()
		if v == nil {
			break
		}
		_, vend, _ := v.Span().CharRange()
		pair := &HashPair{Key: t.text, Value: v, Loc: p.spanAt(t.pos, vend-p.base)}
		h.Pairs = append(h.Pairs, pair)
		if first < 0 {
			first = t.pos
		}
		last = vend - p.base
	}
	if first < 0 {
		return nil
	}
	h.Loc = p.spanAt(first, last)
	return h
}

// parseValue parses one literal, path or parenthesized sub-expression.
func (p *exprParser) parseValue() Node {
	t := p.peek()
	switch t.kind {
	case tString:
		p.nextTok()
		return &StringLiteral{Value: unquoteExprString(t.text), Loc: p.spanAt(t.pos, t.end)}
	case tNumber:
		p.nextTok()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			p.errorAt(ErrExprSyntax, t.pos, t.end, "malformed number %q", t.text)
			return nil
		}
		return &NumberLiteral{Value: f, Loc: p.spanAt(t.pos, t.end)}
	case tIdent:
		p.nextTok()
		switch t.text {
		case "true", "false":
			return &BooleanLiteral{Value: t.text == "true", Loc: p.spanAt(t.pos, t.end)}
		case "null":
			return &NullLiteral{Loc: p.spanAt(t.pos, t.end)}
		case "undefined":
			return &UndefinedLiteral{Loc: p.spanAt(t.pos, t.end)}
		}
		return p.parsePath(t)
	case tOpen:
		open := p.nextTok()
		path, params, hash := p.parseCall()
		end := p.peek()
		if end.kind != tClose {
			p.errorAt(ErrExprSyntax, open.pos, end.pos, "unclosed sub-expression")
		} else {
			p.nextTok()
			end = p.toks[p.cur-1]
		}
		if path == nil {
			return nil
		}
		return &SubExpression{Path: path, Params: params, Hash: hash, Loc: p.spanAt(open.pos, end.end)}
	case tEOF:
		p.errorAt(ErrExprSyntax, t.pos, t.end, "expected an expression")
		return nil
	default:
		p.nextTok()
		p.errorAt(ErrExprSyntax, t.pos, t.end, "unexpected %q in expression", t.text)
		return nil
	}
}

// parsePath validates and splits a path token. The rejected forms are the
// handlebars-isms this language does not support: ./ and ../ relative
// heads, and paths mixing the `.` and `/` separators.
func (p *exprParser) parsePath(t exprTok) Node {
	raw := t.text
	loc := p.spanAt(t.pos, t.end)

	switch {
	case strings.HasPrefix(raw, "./"):
		p.errorAt(ErrInvalidPath, t.pos, t.end, "using %q is not supported; remove the leading ./", raw)
		return &PathExpression{Original: raw, Loc: loc}
	case strings.HasPrefix(raw, "../") || strings.Contains(raw, "/../"):
		p.errorAt(ErrInvalidPath, t.pos, t.end, "changing context using %q is not supported", "../")
		return &PathExpression{Original: raw, Loc: loc}
	case strings.Contains(raw, ".") && strings.Contains(raw, "/"):
		p.errorAt(ErrInvalidPath, t.pos, t.end, "mixing . and / in a path is not supported: %q", raw)
		return &PathExpression{Original: raw, Loc: loc}
	}

	sep := "."
	if strings.Contains(raw, "/") {
		sep = "/"
	}
	segments := strings.Split(raw, sep)
	for _, seg := range segments {
		if seg == "" {
			p.errorAt(ErrInvalidPath, t.pos, t.end, "malformed path %q", raw)
			return &PathExpression{Original: raw, Loc: loc}
		}
	}

	pe := &PathExpression{Original: raw, Loc: loc}
	head := segments[0]
	switch {
	case head == "this":
		pe.HeadKind = VarThis
		pe.Parts = segments[1:]
	case strings.HasPrefix(head, "@"):
		pe.HeadKind = VarArg
		pe.Head = head
		pe.Parts = segments[1:]
	default:
		pe.Head = head
		pe.Parts = segments[1:]
		if p.classify != nil {
			pe.HeadKind = p.classify(head)
		}
	}
	return pe
}

// parseBlockParams consumes a trailing `as |a b|` if present. It reuses the
// block-params diagnostics of the element sub-parser for the mustache form.
func (p *exprParser) parseBlockParams() []string {
	t := p.peek()
	if t.kind == tEOF {
		return nil
	}
	if t.kind != tIdent || t.text != "as" {
		if t.kind == tPipe {
			p.errorAt(ErrBlockParamsMissingAs, t.pos, t.end, "block parameters must be preceded by `as`")
			p.skipRest()
		}
		return nil
	}
	as := p.nextTok()
	if p.peek().kind != tPipe {
		p.errorAt(ErrBlockParamsMissingPipe, as.pos, as.end, "expected block parameters after `as`")
		p.skipRest()
		return nil
	}
	p.nextTok() // opening |
	var params []string
	for {
		t = p.peek()
		if t.kind == tPipe {
			p.nextTok()
			break
		}
		if t.kind == tEOF {
			p.errorAt(ErrBlockParamsUnclosed, as.pos, t.end, "unclosed block parameters")
			return nil
		}
		if t.kind != tIdent || !isValidBlockParamName(t.text) {
			p.errorAt(ErrBlockParamsInvalidID, t.pos, t.end, "invalid block parameter name %q", t.text)
			p.skipRest()
			return nil
		}
		p.nextTok()
		params = append(params, t.text)
	}
	if len(params) == 0 {
		p.errorAt(ErrBlockParamsEmpty, as.pos, p.toks[p.cur-1].end, "empty block parameters")
		return nil
	}
	if t = p.peek(); t.kind != tEOF {
		p.errorAt(ErrBlockParamsExtraAttrs, t.pos, p.toks[len(p.toks)-1].end, "unexpected content after block parameters")
		p.skipRest()
	}
	return params
}

func (p *exprParser) skipRest() {
	for p.peek().kind != tEOF {
		p.nextTok()
	}
}

// expectEOF reports any trailing tokens as a syntax diagnostic.
func (p *exprParser) expectEOF() {
	if t := p.peek(); t.kind != tEOF {
		p.errorAt(ErrExprSyntax, t.pos, p.toks[len(p.toks)-1].end, "unexpected %q after expression", t.text)
	}
}

func isValidBlockParamName(s string) bool {
	if s == "" || strings.ContainsAny(s, "./@") {
		return false
	}
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !isIdentRune(r) && r != '$' {
			return false
		}
	}
	return true
}

func isLiteral(n Node) bool {
	switch n.(type) {
	case *StringLiteral, *NumberLiteral, *BooleanLiteral, *NullLiteral, *UndefinedLiteral:
		return true
	}
	return false
}

func unquoteExprString(s string) string {
	if len(s) < 2 {
		return s
	}
	quote := s[0]
	body := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', quote:
				b.WriteByte(body[i])
			default:
				b.WriteByte('\\')
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
