package hbml

import (
	"strconv"
	"strings"
)

// Print renders a node back to template text. The output is canonical
// rather than byte-faithful: attribute quoting and mustache spacing are
// normalized, but the result reparses to an equivalent tree. Diagnostics
// use it to show a tree fragment when the offending span is not printable.
func Print(n Node) string {
	var b strings.Builder
	printNode(&b, n)
	return b.String()
}

func printNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Template:
		printBody(b, n.Body)
	case *Block:
		printBody(b, n.Body)
	case *TextNode:
		b.WriteString(n.Chars)
	case *CommentStatement:
		b.WriteString("<!--")
		b.WriteString(n.Value)
		b.WriteString("-->")
	case *MustacheCommentStatement:
		b.WriteString("{{!--")
		b.WriteString(n.Value)
		b.WriteString("--}}")
	case *ElementNode:
		printElement(b, n)
	case *AttrNode:
		printAttr(b, n)
	case *MustacheStatement:
		left, right := "{{", "}}"
		if n.Trusting {
			left, right = "{{{", "}}}"
		}
		b.WriteString(left)
		printCall(b, n.Path, n.Params, n.Hash)
		b.WriteString(right)
	case *BlockStatement:
		printBlockStatement(b, n)
	case *ElementModifierStatement:
		b.WriteString("{{")
		printCall(b, n.Path, n.Params, n.Hash)
		b.WriteString("}}")
	case *ConcatStatement:
		for _, part := range n.Parts {
			printNode(b, part)
		}
	case *SubExpression:
		b.WriteByte('(')
		printCall(b, n.Path, n.Params, n.Hash)
		b.WriteByte(')')
	case *PathExpression:
		b.WriteString(n.Original)
	case *StringLiteral:
		b.WriteString(strconv.Quote(n.Value))
	case *NumberLiteral:
		b.WriteString(strconv.FormatFloat(n.Value, 'f', -1, 64))
	case *BooleanLiteral:
		b.WriteString(strconv.FormatBool(n.Value))
	case *NullLiteral:
		b.WriteString("null")
	case *UndefinedLiteral:
		b.WriteString("undefined")
	case *Hash:
		printHash(b, n)
	case *HashPair:
		b.WriteString(n.Key)
		b.WriteByte('=')
		printNode(b, n.Value)
	}
}

func printBody(b *strings.Builder, body []Node) {
	for _, n := range body {
		printNode(b, n)
	}
}

func printElement(b *strings.Builder, n *ElementNode) {
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attributes {
		b.WriteByte(' ')
		printAttr(b, a)
	}
	for _, m := range n.Modifiers {
		b.WriteByte(' ')
		printNode(b, m)
	}
	for _, c := range n.Comments {
		b.WriteByte(' ')
		printNode(b, c)
	}
	if len(n.BlockParams) > 0 {
		b.WriteString(" as |")
		b.WriteString(strings.Join(n.BlockParams, " "))
		b.WriteString("|")
	}
	if n.SelfClosing {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
	if isVoidElement(n.Tag) {
		return
	}
	printBody(b, n.Children)
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

func printAttr(b *strings.Builder, n *AttrNode) {
	b.WriteString(n.Name)
	switch v := n.Value.(type) {
	case *TextNode:
		if v.Chars == "" {
			return // boolean attribute
		}
		b.WriteString(`="`)
		b.WriteString(v.Chars)
		b.WriteByte('"')
	case *MustacheStatement:
		b.WriteByte('=')
		printNode(b, v)
	case *ConcatStatement:
		b.WriteString(`="`)
		printNode(b, v)
		b.WriteByte('"')
	}
}

func printBlockStatement(b *strings.Builder, n *BlockStatement) {
	b.WriteString("{{#")
	printCall(b, n.Path, n.Params, n.Hash)
	if n.Program != nil && len(n.Program.BlockParams) > 0 {
		b.WriteString(" as |")
		b.WriteString(strings.Join(n.Program.BlockParams, " "))
		b.WriteString("|")
	}
	b.WriteString("}}")
	if n.Program != nil {
		printBody(b, n.Program.Body)
	}
	if n.Inverse != nil {
		b.WriteString("{{else}}")
		printBody(b, n.Inverse.Body)
	}
	b.WriteString("{{/")
	printNode(b, n.Path)
	b.WriteString("}}")
}

func printCall(b *strings.Builder, path Node, params []Node, hash *Hash) {
	printNode(b, path)
	for _, p := range params {
		b.WriteByte(' ')
		printNode(b, p)
	}
	if hash != nil && len(hash.Pairs) > 0 {
		b.WriteByte(' ')
		printHash(b, hash)
	}
}

func printHash(b *strings.Builder, n *Hash) {
	for i, p := range n.Pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		printNode(b, p)
	}
}
