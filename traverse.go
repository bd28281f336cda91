package hbml

import (
	"errors"
	"fmt"
)

// The traversal engine walks a tree depth-first with enter/exit hooks and
// applies structural edits — replace, splice, delete — in place. List
// children may be removed or replaced by any number of nodes; singular
// children may only be swapped one-for-one, never removed.

var (
	ErrCannotRemoveNode  = errors.New("cannot remove node")
	ErrCannotReplaceNode = errors.New("cannot replace node")
)

// A TraverseError is the panic value raised for an illegal structural edit
// or an unknown node type in a visitor map. Structural misuse is a
// programming error in the visitor, not a property of the input, so it is
// not reported as a diagnostic.
type TraverseError struct {
	Err  error
	Node Node
}

func (e *TraverseError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("hbml: %s (%s)", e.Err, e.Node.Type())
	}
	return "hbml: " + e.Err.Error()
}

func (e *TraverseError) Unwrap() error { return e.Err }

type actionKind int

const (
	actionContinue actionKind = iota
	actionRemove
	actionReplace
)

// Action is an enter hook's verdict on the node just entered. The zero
// Action continues normally.
type Action struct {
	kind  actionKind
	nodes []Node
}

// Remove deletes the entered node from its parent.
func Remove() Action { return Action{kind: actionRemove} }

// Replace substitutes the entered node with the given nodes. The
// replacements themselves are not re-entered; their children are visited.
func Replace(nodes ...Node) Action { return Action{kind: actionReplace, nodes: nodes} }

// Visitor holds the hooks for one node type. Exit does not run for a node
// that was removed or replaced on enter.
type Visitor struct {
	Enter func(Node) Action
	Exit  func(Node)
}

var knownNodeTypes = map[NodeType]bool{
	NodeTemplate: true, NodeBlock: true, NodeElement: true, NodeAttr: true,
	NodeText: true, NodeComment: true, NodeMustacheComment: true,
	NodeMustache: true, NodeBlockStatement: true, NodeElementModifier: true,
	NodeConcat: true, NodeSubExpression: true, NodePath: true,
	NodeString: true, NodeBoolean: true, NodeNumber: true, NodeNull: true,
	NodeUndefined: true, NodeHash: true, NodeHashPair: true,
}

// Traverse walks root depth-first, dispatching to visitors by node type.
// A visitor map naming an unknown node type panics immediately rather than
// silently never firing.
func Traverse(root Node, visitors map[NodeType]Visitor) {
	for t := range visitors {
		if !knownNodeTypes[t] {
			panic(&TraverseError{Err: fmt.Errorf("unknown node type %q in visitor map", t)})
		}
	}
	if res := visit(root, visitors); res != nil {
		panic(&TraverseError{Err: errors.New("cannot remove or replace the traversal root"), Node: root})
	}
}

// visit runs the hooks for n and recurses into its children. A nil result
// keeps n in place; a non-nil slice (possibly empty) is the replacement the
// parent must splice in.
func visit(n Node, visitors map[NodeType]Visitor) []Node {
	v := visitors[n.Type()]
	if v.Enter != nil {
		switch act := v.Enter(n); act.kind {
		case actionRemove:
			return []Node{}
		case actionReplace:
			for _, r := range act.nodes {
				visitChildren(r, visitors)
			}
			return act.nodes
		}
	}
	visitChildren(n, visitors)
	if v.Exit != nil {
		v.Exit(n)
	}
	return nil
}

func visitChildren(n Node, visitors map[NodeType]Visitor) {
	switch n := n.(type) {
	case *Template:
		n.Body = visitList(n.Body, visitors)
	case *Block:
		n.Body = visitList(n.Body, visitors)
	case *ElementNode:
		n.Attributes = visitTyped(n, n.Attributes, visitors)
		n.Modifiers = visitTyped(n, n.Modifiers, visitors)
		n.Comments = visitTyped(n, n.Comments, visitors)
		n.Children = visitList(n.Children, visitors)
	case *AttrNode:
		visitRequired(n, &n.Value, visitors)
	case *MustacheStatement:
		visitRequired(n, &n.Path, visitors)
		n.Params = visitList(n.Params, visitors)
		if n.Hash != nil {
			n.Hash = visitSingularTyped(n, n.Hash, visitors)
		}
	case *BlockStatement:
		visitRequired(n, &n.Path, visitors)
		n.Params = visitList(n.Params, visitors)
		if n.Hash != nil {
			n.Hash = visitSingularTyped(n, n.Hash, visitors)
		}
		if n.Program != nil {
			n.Program = visitSingularTyped(n, n.Program, visitors)
		}
		if n.Inverse != nil {
			n.Inverse = visitSingularTyped(n, n.Inverse, visitors)
		}
	case *ElementModifierStatement:
		visitRequired(n, &n.Path, visitors)
		n.Params = visitList(n.Params, visitors)
		if n.Hash != nil {
			n.Hash = visitSingularTyped(n, n.Hash, visitors)
		}
	case *ConcatStatement:
		n.Parts = visitList(n.Parts, visitors)
	case *SubExpression:
		visitRequired(n, &n.Path, visitors)
		n.Params = visitList(n.Params, visitors)
		if n.Hash != nil {
			n.Hash = visitSingularTyped(n, n.Hash, visitors)
		}
	case *Hash:
		n.Pairs = visitTyped(n, n.Pairs, visitors)
	case *HashPair:
		visitRequired(n, &n.Value, visitors)
	}
	// Leaves (text, comments, paths, literals) have no children.
}

// visitList visits each element of a []Node child list, splicing in
// removals and multi-node replacements. Nodes spliced in are not revisited.
func visitList(list []Node, visitors map[NodeType]Visitor) []Node {
	for i := 0; i < len(list); i++ {
		res := visit(list[i], visitors)
		if res == nil {
			continue
		}
		list = append(list[:i], append(res, list[i+1:]...)...)
		i += len(res) - 1
	}
	return list
}

// visitTyped is visitList for homogeneous child lists; a replacement of the
// wrong node type panics.
func visitTyped[T Node](parent Node, list []T, visitors map[NodeType]Visitor) []T {
	for i := 0; i < len(list); i++ {
		res := visit(list[i], visitors)
		if res == nil {
			continue
		}
		repl := make([]T, len(res))
		for j, r := range res {
			t, ok := r.(T)
			if !ok {
				panic(&TraverseError{
					Err:  fmt.Errorf("%w: a %s cannot hold a %s here", ErrCannotReplaceNode, parent.Type(), r.Type()),
					Node: parent,
				})
			}
			repl[j] = t
		}
		list = append(list[:i], append(repl, list[i+1:]...)...)
		i += len(repl) - 1
	}
	return list
}

// visitRequired visits a mandatory singular child: it may be swapped
// one-for-one but never removed or multiplied.
func visitRequired(parent Node, field *Node, visitors map[NodeType]Visitor) {
	if *field == nil {
		return
	}
	res := visit(*field, visitors)
	switch {
	case res == nil:
	case len(res) == 0:
		panic(&TraverseError{Err: ErrCannotRemoveNode, Node: parent})
	case len(res) == 1:
		*field = res[0]
	default:
		panic(&TraverseError{
			Err:  fmt.Errorf("%w: cannot replace node with multiple nodes", ErrCannotReplaceNode),
			Node: parent,
		})
	}
}

// visitSingularTyped is visitRequired for a typed singular child: removal
// panics, a one-for-one replacement of the right type lands. Callers guard
// against nil fields; a field being optional in the tree shape does not make
// the node removable once it is present.
func visitSingularTyped[T Node](parent Node, field T, visitors map[NodeType]Visitor) T {
	res := visit(field, visitors)
	switch {
	case res == nil:
		return field
	case len(res) == 0:
		panic(&TraverseError{Err: ErrCannotRemoveNode, Node: parent})
	case len(res) == 1:
		t, ok := res[0].(T)
		if !ok {
			panic(&TraverseError{
				Err:  fmt.Errorf("%w: a %s cannot hold a %s here", ErrCannotReplaceNode, parent.Type(), res[0].Type()),
				Node: parent,
			})
		}
		return t
	default:
		panic(&TraverseError{
			Err:  fmt.Errorf("%w: cannot replace node with multiple nodes", ErrCannotReplaceNode),
			Node: parent,
		})
	}
}
