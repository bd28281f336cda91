package hbml

import "testing"

func TestScanTag(t *testing.T) {
	raw := `<a href="x" disabled data-n='y' w=z {{mod q}}>`
	tag := scanTag(raw)

	if tag.name != "a" || raw[tag.nameStart:tag.nameEnd] != "a" {
		t.Fatalf("name = %q (%d..%d)", tag.name, tag.nameStart, tag.nameEnd)
	}
	if len(tag.attrs) != 5 {
		t.Fatalf("got %d attrs, want 5", len(tag.attrs))
	}

	href := tag.attrs[0]
	if href.key != "href" || !href.hasValue || href.quote != '"' || raw[href.valStart:href.valEnd] != "x" {
		t.Errorf("href = %+v", href)
	}
	if disabled := tag.attrs[1]; disabled.key != "disabled" || disabled.hasValue {
		t.Errorf("disabled = %+v", disabled)
	}
	if dn := tag.attrs[2]; dn.quote != '\'' || raw[dn.valStart:dn.valEnd] != "y" {
		t.Errorf("data-n = %+v", dn)
	}
	if w := tag.attrs[3]; w.quote != 0 || raw[w.valStart:w.valEnd] != "z" {
		t.Errorf("w = %+v", w)
	}
	if mod := tag.attrs[4]; !mod.mustache || mod.key != "{{mod q}}" {
		t.Errorf("modifier = %+v", mod)
	}
}

func TestScanTagMustachePositions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		key  string
	}{
		{"mustache value keeps spaces", `<div x={{a b}}>`, "x"},
		{"mustache in name", `<{{tag}}-x>`, ""},
		{"comment in tag", `<li {{! skip me }}>`, "{{! skip me }}"},
		{"long comment may contain close brace", `<li {{!-- a }} b --}}>`, "{{!-- a }} b --}}"},
	}

	tag := scanTag(tests[0].raw)
	if len(tag.attrs) != 1 || tag.attrs[0].hasValue != true {
		t.Fatalf("attrs = %+v", tag.attrs)
	}
	if v := tests[0].raw[tag.attrs[0].valStart:tag.attrs[0].valEnd]; v != "{{a b}}" {
		t.Errorf("value = %q, want {{a b}}", v)
	}

	tag = scanTag(tests[1].raw)
	if tag.name != "{{tag}}-x" {
		t.Errorf("name = %q, want {{tag}}-x", tag.name)
	}

	for _, tt := range tests[2:] {
		t.Run(tt.name, func(t *testing.T) {
			tag := scanTag(tt.raw)
			if len(tag.attrs) != 1 || !tag.attrs[0].mustache || tag.attrs[0].key != tt.key {
				t.Errorf("attrs = %+v, want one mustache token %q", tag.attrs, tt.key)
			}
		})
	}
}

func TestScanTagSelfClosing(t *testing.T) {
	if !scanTag(`<br/>`).selfClosing {
		t.Error("<br/> should scan as self-closing")
	}
	if !scanTag(`<img src=x />`).selfClosing {
		t.Error("<img src=x /> should scan as self-closing")
	}
	if scanTag(`<a href=a/b>`).selfClosing {
		t.Error("a / inside an unquoted value is not self-closing")
	}
}

func TestScanEndTag(t *testing.T) {
	tag := scanTag(`</div>`)
	if tag.name != "div" || len(tag.attrs) != 0 {
		t.Errorf("end tag scan = %+v", tag)
	}
}
