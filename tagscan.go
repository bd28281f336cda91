package hbml

import "strings"

// The x/net/html tokenizer hands the parser whole tags with decoded,
// order-normalized attributes and no positions. To attach exact spans, and
// to see mustaches in tag positions at all, the parser rescans the raw tag
// bytes with the scanner below.

// rawTag is the result of rescanning one start or end tag.
type rawTag struct {
	name               string
	nameStart, nameEnd int // bounds of the tag name within the raw token
	attrs              []rawAttr
	selfClosing        bool
}

// rawAttr is one attribute-position token: a regular attribute (with or
// without a value) or a bare {{...}} run in modifier position.
type rawAttr struct {
	key              string
	keyStart, keyEnd int

	hasValue         bool
	quote            byte // '"', '\'' or 0 for unquoted
	valStart, valEnd int  // value content bounds, quotes excluded

	mustache bool // key is a {{...}} run (modifier or tag comment)
}

// scanTag rescans the raw bytes of a tag token. All offsets are relative to
// the token start; the parser shifts them by the token's template offset.
func scanTag(raw string) rawTag {
	var t rawTag
	pos := 0

	if pos < len(raw) && raw[pos] == '<' {
		pos++
	}
	if pos < len(raw) && raw[pos] == '/' {
		pos++
	}

	t.nameStart = pos
	for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
		// A mustache in the tag name swallows its own content, including
		// any spaces, so the name stays a single token.
		if strings.HasPrefix(raw[pos:], leftDelim) {
			pos = skipMustache(raw, pos)
			continue
		}
		pos++
	}
	t.nameEnd = pos
	t.name = raw[t.nameStart:t.nameEnd]

	for pos < len(raw) {
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) || raw[pos] == '>' {
			break
		}
		if raw[pos] == '/' {
			if strings.TrimRight(raw[pos+1:], ">") == "" {
				t.selfClosing = true
			}
			pos++
			continue
		}

		var a rawAttr
		a.keyStart = pos

		if strings.HasPrefix(raw[pos:], leftDelim) {
			pos = skipMustache(raw, pos)
			a.keyEnd = pos
			a.key = raw[a.keyStart:a.keyEnd]
			a.mustache = true
			t.attrs = append(t.attrs, a)
			continue
		}

		for pos < len(raw) && raw[pos] != '=' && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
			pos++
		}
		a.keyEnd = pos
		a.key = raw[a.keyStart:a.keyEnd]

		// An = may be padded with whitespace on either side.
		ws := pos
		for ws < len(raw) && isAttrSpace(raw[ws]) {
			ws++
		}
		if ws >= len(raw) || raw[ws] != '=' {
			t.attrs = append(t.attrs, a)
			continue
		}
		pos = ws + 1
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		a.hasValue = true

		if pos < len(raw) && (raw[pos] == '"' || raw[pos] == '\'') {
			a.quote = raw[pos]
			pos++
			a.valStart = pos
			for pos < len(raw) && raw[pos] != a.quote {
				pos++
			}
			a.valEnd = pos
			if pos < len(raw) {
				pos++ // closing quote
			}
		} else {
			a.valStart = pos
			for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' {
				if strings.HasPrefix(raw[pos:], leftDelim) {
					pos = skipMustache(raw, pos)
					continue
				}
				pos++
			}
			a.valEnd = pos
		}
		t.attrs = append(t.attrs, a)
	}

	return t
}

// skipMustache advances past one {{...}} run starting at pos, honoring
// quoted strings and the {{{ and --}} forms. If the run never closes, it
// consumes the rest of the input.
func skipMustache(raw string, pos int) int {
	pos += len(leftDelim)
	closer := rightDelim
	if strings.HasPrefix(raw[pos:], "{") {
		pos++
		closer = "}" + rightDelim
	}
	if strings.HasPrefix(raw[pos:], "!--") {
		closer = "--" + rightDelim
	}
	for pos < len(raw) {
		if strings.HasPrefix(raw[pos:], closer) {
			return pos + len(closer)
		}
		c := raw[pos]
		if c == '"' || c == '\'' {
			pos++
			for pos < len(raw) && raw[pos] != c {
				if raw[pos] == '\\' {
					pos++
				}
				pos++
			}
		}
		pos++
	}
	return pos
}

func isAttrSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
