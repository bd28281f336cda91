package hbml

// Walk visits n and then its children in source order, pre-order. It is the
// read-only companion to Traverse: no structural edits, no per-type
// dispatch. Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range childNodes(n) {
		Walk(c, fn)
	}
}

// childNodes lists the non-nil children of n in source order.
func childNodes(n Node) []Node {
	switch n := n.(type) {
	case *Template:
		return n.Body
	case *Block:
		return n.Body
	case *ElementNode:
		var out []Node
		for _, a := range n.Attributes {
			out = append(out, a)
		}
		for _, m := range n.Modifiers {
			out = append(out, m)
		}
		for _, c := range n.Comments {
			out = append(out, c)
		}
		return append(out, n.Children...)
	case *AttrNode:
		return []Node{n.Value}
	case *MustacheStatement:
		return callChildren(n.Path, n.Params, n.Hash)
	case *BlockStatement:
		out := callChildren(n.Path, n.Params, n.Hash)
		if n.Program != nil {
			out = append(out, n.Program)
		}
		if n.Inverse != nil {
			out = append(out, n.Inverse)
		}
		return out
	case *ElementModifierStatement:
		return callChildren(n.Path, n.Params, n.Hash)
	case *ConcatStatement:
		return n.Parts
	case *SubExpression:
		return callChildren(n.Path, n.Params, n.Hash)
	case *Hash:
		out := make([]Node, len(n.Pairs))
		for i, p := range n.Pairs {
			out[i] = p
		}
		return out
	case *HashPair:
		return []Node{n.Value}
	default:
		return nil
	}
}

func callChildren(path Node, params []Node, hash *Hash) []Node {
	out := []Node{path}
	out = append(out, params...)
	if hash != nil {
		out = append(out, hash)
	}
	return out
}
