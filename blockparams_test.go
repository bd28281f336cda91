package hbml

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// bareTokens runs the tag scanner and keeps the valueless tokens, matching
// what the parser feeds the block-params sub-parser.
func bareTokens(raw string) []rawAttr {
	var bare []rawAttr
	for _, a := range scanTag(raw).attrs {
		if !a.mustache && !a.hasValue {
			bare = append(bare, a)
		}
	}
	return bare
}

func TestElementBlockParams(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		params    []string
		remaining []string
		code      string
	}{
		{
			name: "no params, no pipes",
			raw:  `<div disabled hidden>`, remaining: []string{"disabled", "hidden"},
		},
		{
			name: "simple params",
			raw:  `<ul as |item|>`, params: []string{"item"},
		},
		{
			name: "two params with split tokens",
			raw:  `<ul as |a b|>`, params: []string{"a", "b"},
		},
		{
			name: "params packed into one token",
			raw:  `<ul as |a|>`, params: []string{"a"},
		},
		{
			name: "boolean attrs before as survive",
			raw:  `<ul reversed as |x|>`, params: []string{"x"}, remaining: []string{"reversed"},
		},
		{
			name: "pipes without as",
			raw:  `<ul |a|>`, code: ErrBlockParamsMissingAs,
		},
		{
			name: "unclosed pipes without as",
			raw:  `<ul |a>`, code: ErrBlockParamsMissingAsUnclosed,
		},
		{
			name: "as without pipes",
			raw:  `<ul as>`, code: ErrBlockParamsMissingPipe,
		},
		{
			name: "as far from pipes",
			raw:  `<ul as x |a|>`, code: ErrBlockParamsMissingAs,
		},
		{
			name: "unclosed",
			raw:  `<ul as |a b>`, code: ErrBlockParamsUnclosed,
		},
		{
			name: "empty",
			raw:  `<ul as ||>`, code: ErrBlockParamsEmpty,
		},
		{
			name: "invalid name",
			raw:  `<ul as |1bad|>`, code: ErrBlockParamsInvalidID,
		},
		{
			name: "trailing attrs",
			raw:  `<ul as |a| b>`, code: ErrBlockParamsExtraAttrs,
		},
		{
			name: "trailing pipes",
			raw:  `<ul as |a| |>`, code: ErrBlockParamsExtraPipes,
		},
		{
			name: "trailing pipes and attrs",
			raw:  `<ul as |a| | b>`, code: ErrBlockParamsExtraBoth,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSource(tt.raw, "")
			res := parseElementBlockParams(src, 0, bareTokens(tt.raw))

			if tt.code != "" {
				if res.err == nil {
					t.Fatalf("want diagnostic %s, got none", tt.code)
				}
				if res.err.Code != tt.code {
					t.Fatalf("code = %s, want %s", res.err.Code, tt.code)
				}
				if res.err.Span == nil || !res.err.Span.IsVisible() {
					t.Error("diagnostic should carry a visible span")
				}
				return
			}

			if res.err != nil {
				t.Fatalf("unexpected diagnostic: %v", res.err)
			}
			if diff := cmp.Diff(tt.params, res.params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			var rem []string
			for _, a := range res.remaining {
				rem = append(rem, a.key)
			}
			if diff := cmp.Diff(tt.remaining, rem); diff != "" {
				t.Errorf("remaining mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestElementBlockParamsSpans(t *testing.T) {
	raw := `<ul as |first second|>`
	src := NewSource(raw, "")
	res := parseElementBlockParams(src, 0, bareTokens(raw))
	if res.err != nil {
		t.Fatal(res.err)
	}
	if len(res.params) != 2 || res.params[0] != "first" || res.params[1] != "second" {
		t.Fatalf("params = %v", res.params)
	}
}

func TestElementBlockParamsInvalidNameSpan(t *testing.T) {
	raw := `<ul as |ok 9bad|>`
	src := NewSource(raw, "")
	res := parseElementBlockParams(src, 0, bareTokens(raw))
	if res.err == nil || res.err.Code != ErrBlockParamsInvalidID {
		t.Fatalf("err = %v", res.err)
	}
	if got := res.err.Span.String(); got != "9bad" {
		t.Errorf("span covers %q, want the offending name", got)
	}
}
