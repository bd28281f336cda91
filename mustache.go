package hbml

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	eof        rune = -1
	leftDelim       = "{{"
	rightDelim      = "}}"
)

// itemType classifies the pieces a run of template text splits into: literal
// text and the various mustache forms.
type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemText
	itemMustache   // {{expr}} / {{{expr}}}
	itemComment    // {{! ... }} / {{!-- ... --}}
	itemBlockOpen  // {{#name ...}}
	itemBlockClose // {{/name}}
	itemElse       // {{else}} / {{else ...}}
)

// item is one lexed piece. pos/end bound the whole item (braces included)
// relative to the lexer input; inner is the offset of val for mustache
// kinds, so expression diagnostics can point into the source exactly.
type item struct {
	typ   itemType
	val   string
	pos   int
	end   int
	inner int

	trusting             bool // {{{ }}}
	stripLeft, stripRight bool // {{~ ... ~}}
}

// lexer splits a string into text and mustache items. It follows the
// state-function pattern from go.dev/talks/2011/lex.slide.
type lexer struct {
	input string
	start int
	pos   int
	width int
	items []item
}

// lexItems splits s into literal-text and mustache items. It never fails:
// malformed mustaches are reported as itemError items and the scan resumes
// after them.
func lexItems(s string) []item {
	l := &lexer{input: s}
	for state := lexText; state != nil; {
		state = state(l)
	}
	return l.items
}

// stateFn represents the state of the scanner as a function that returns
// the next state.
type stateFn func(*lexer) stateFn

func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{typ: t, val: l.input[l.start:l.pos], pos: l.start, end: l.pos, inner: l.start})
	l.start = l.pos
}

func (l *lexer) errorf(format string, args ...any) stateFn {
	l.items = append(l.items, item{
		typ: itemError,
		val: fmt.Sprintf(format, args...),
		pos: l.start,
		end: len(l.input),
	})
	l.start = len(l.input)
	l.pos = len(l.input)
	l.items = append(l.items, item{typ: itemEOF, pos: l.pos, end: l.pos})
	return nil
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	l.width = w
	return r
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) scanString(quote rune) bool {
	for ch := l.next(); ch != quote; ch = l.next() {
		if ch == eof {
			return false
		}
		if ch == '\\' {
			l.next()
		}
	}
	return true
}

func lexText(l *lexer) stateFn {
	if x := strings.Index(l.input[l.pos:], leftDelim); x >= 0 {
		if x > 0 {
			l.pos += x
			l.emit(itemText)
		}
		return lexMustache
	}
	l.pos = len(l.input)
	if l.pos > l.start {
		l.emit(itemText)
	}
	l.emit(itemEOF)
	return nil
}

// lexMustache scans one complete {{...}} construct starting at l.pos.
func lexMustache(l *lexer) stateFn {
	it := item{pos: l.pos}
	l.pos += len(leftDelim)

	closer := rightDelim
	if strings.HasPrefix(l.input[l.pos:], "{") {
		it.trusting = true
		l.pos++
		closer = "}" + rightDelim
	}
	if strings.HasPrefix(l.input[l.pos:], "~") {
		it.stripLeft = true
		l.pos++
	}

	// Comments have their own terminator so they may contain }}-looking
	// text.
	if strings.HasPrefix(l.input[l.pos:], "!") {
		return l.lexComment(it)
	}

	it.inner = l.pos
	for {
		if strings.HasPrefix(l.input[l.pos:], "~"+closer) {
			it.stripRight = true
			it.val = l.input[it.inner:l.pos]
			l.pos += 1 + len(closer)
			break
		}
		if strings.HasPrefix(l.input[l.pos:], closer) {
			it.val = l.input[it.inner:l.pos]
			l.pos += len(closer)
			break
		}
		switch r := l.next(); r {
		case eof:
			return l.errorf("unclosed mustache")
		case '\'', '"':
			if !l.scanString(r) {
				return l.errorf("unterminated string in mustache")
			}
		}
	}
	it.end = l.pos
	l.start = l.pos

	l.classify(it)
	return lexText
}

// lexComment consumes a {{! }} or {{!-- --}} comment; l.pos sits on the '!'.
func (l *lexer) lexComment(it item) stateFn {
	l.pos++ // '!'
	terminator := rightDelim
	if strings.HasPrefix(l.input[l.pos:], "--") {
		l.pos += 2
		terminator = "--" + rightDelim
	}
	it.inner = l.pos
	x := strings.Index(l.input[l.pos:], terminator)
	if x < 0 {
		return l.errorf("unclosed comment mustache")
	}
	it.typ = itemComment
	it.val = l.input[l.pos : l.pos+x]
	l.pos += x + len(terminator)
	if strings.HasSuffix(it.val, "~") && terminator == rightDelim {
		it.stripRight = true
		it.val = strings.TrimSuffix(it.val, "~")
	}
	it.end = l.pos
	l.start = l.pos
	l.items = append(l.items, it)
	return lexText
}

// classify assigns the mustache sub-kind from the first character of the
// inner content.
func (l *lexer) classify(it item) {
	inner := strings.TrimLeft(it.val, whitespace)
	it.inner += len(it.val) - len(inner)
	it.val = inner
	switch {
	case strings.HasPrefix(inner, "#"):
		it.typ = itemBlockOpen
		it.val = inner[1:]
		it.inner++
	case strings.HasPrefix(inner, "/"):
		it.typ = itemBlockClose
		it.val = inner[1:]
		it.inner++
	case inner == "else" || strings.HasPrefix(inner, "else") && !isIdentRune(nextRuneAfter(inner, len("else"))):
		it.typ = itemElse
		it.val = strings.TrimLeft(inner[len("else"):], whitespace)
		it.inner += len(inner) - len(it.val)
	default:
		it.typ = itemMustache
	}
	l.items = append(l.items, it)
}

func nextRuneAfter(s string, i int) rune {
	if i >= len(s) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsMustache reports whether s has an opening mustache delimiter.
func containsMustache(s string) bool {
	return strings.Contains(s, leftDelim)
}
