package hbml

import (
	"strconv"
	"strings"
)

// The block-parameter sub-parser rescans the bare (valueless) tokens left
// over at the tail of a start tag for an `as |name...|` group. It either
// finds none, produces a clean parameter list plus the tokens that are
// ordinary boolean attributes after all, or reports exactly one diagnostic
// whose span covers just the offending tokens.

type blockParamsResult struct {
	params    []string
	remaining []rawAttr
	err       *ParseError
}

func parseElementBlockParams(src *Source, base int, bare []rawAttr) blockParamsResult {
	asIdx := -1
	pipeIdx := -1
	for i, a := range bare {
		if asIdx == -1 && a.key == "as" {
			asIdx = i
		}
		if pipeIdx == -1 && strings.Contains(a.key, "|") {
			pipeIdx = i
		}
	}

	spanOf := func(from, to int) *Span { // token index range, inclusive
		return src.SpanFor(base+bare[from].keyStart, base+bare[to].keyEnd)
	}

	if asIdx == -1 && pipeIdx == -1 {
		return blockParamsResult{remaining: bare}
	}

	// Pipes with no `as` keyword in front of them.
	if pipeIdx != -1 && (asIdx == -1 || asIdx != pipeIdx-1) {
		if regionClosed(bare, pipeIdx) {
			return blockParamsResult{err: &ParseError{
				Code:    ErrBlockParamsMissingAs,
				Message: "block parameters must be preceded by `as`",
				Span:    spanOf(pipeIdx, len(bare)-1),
			}}
		}
		return blockParamsResult{err: &ParseError{
			Code:    ErrBlockParamsMissingAsUnclosed,
			Message: "unclosed block parameters without `as`",
			Span:    spanOf(pipeIdx, len(bare)-1),
		}}
	}

	// `as` with nothing resembling block parameters after it.
	if pipeIdx == -1 {
		return blockParamsResult{err: &ParseError{
			Code:    ErrBlockParamsMissingPipe,
			Message: "expected block parameters after `as`",
			Span:    spanOf(asIdx, len(bare)-1),
		}}
	}

	// Walk the pipe-delimited region character by character so each
	// identifier keeps its own exact span.
	type ident struct {
		name     string
		from, to int // offsets relative to the token base
	}
	var (
		idents   []ident
		closed   bool
		closeTok = -1
		closePos = -1
	)
	pipes := 0
scan:
	for i := pipeIdx; i < len(bare); i++ {
		tok := bare[i]
		cur := ident{from: -1}
		for j := 0; j < len(tok.key); j++ {
			if tok.key[j] == '|' {
				if cur.from >= 0 {
					cur.to = tok.keyStart + j
					idents = append(idents, cur)
					cur = ident{from: -1}
				}
				pipes++
				if pipes == 2 {
					closed = true
					closeTok = i
					closePos = j
					break scan
				}
				continue
			}
			if cur.from < 0 {
				cur.from = tok.keyStart + j
			}
			cur.name += string(tok.key[j])
		}
		if cur.from >= 0 {
			cur.to = tok.keyStart + len(tok.key)
			idents = append(idents, cur)
		}
	}

	if !closed {
		return blockParamsResult{err: &ParseError{
			Code:    ErrBlockParamsUnclosed,
			Message: "unclosed block parameters",
			Span:    spanOf(asIdx, len(bare)-1),
		}}
	}
	if len(idents) == 0 {
		return blockParamsResult{err: &ParseError{
			Code:    ErrBlockParamsEmpty,
			Message: "cannot use zero block parameters",
			Span:    spanOf(asIdx, closeTok),
		}}
	}

	params := make([]string, 0, len(idents))
	for _, id := range idents {
		if !isValidBlockParamName(id.name) {
			return blockParamsResult{err: &ParseError{
				Code:    ErrBlockParamsInvalidID,
				Message: "invalid block parameter name " + strconv.Quote(id.name),
				Span:    src.SpanFor(base+id.from, base+id.to),
			}}
		}
		params = append(params, id.name)
	}

	// Anything after the closing pipe is not a block parameter.
	trailingPipes, trailingAttrs := false, false
	if closePos+1 < len(bare[closeTok].key) {
		rest := bare[closeTok].key[closePos+1:]
		if strings.Contains(rest, "|") {
			trailingPipes = true
		} else {
			trailingAttrs = true
		}
	}
	for i := closeTok + 1; i < len(bare); i++ {
		if strings.Contains(bare[i].key, "|") {
			trailingPipes = true
		} else {
			trailingAttrs = true
		}
	}
	if trailingPipes || trailingAttrs {
		code := ErrBlockParamsExtraAttrs
		msg := "unexpected attributes after block parameters"
		switch {
		case trailingPipes && trailingAttrs:
			code = ErrBlockParamsExtraBoth
			msg = "unexpected pipes and attributes after block parameters"
		case trailingPipes:
			code = ErrBlockParamsExtraPipes
			msg = "unexpected pipes after block parameters"
		}
		return blockParamsResult{err: &ParseError{
			Code:    code,
			Message: msg,
			Span:    spanOf(closeTok, len(bare)-1),
		}}
	}

	return blockParamsResult{params: params, remaining: bare[:asIdx]}
}

// regionClosed reports whether the pipe group starting at token idx has a
// closing pipe.
func regionClosed(bare []rawAttr, idx int) bool {
	pipes := 0
	for i := idx; i < len(bare); i++ {
		pipes += strings.Count(bare[i].key, "|")
	}
	return pipes >= 2
}
