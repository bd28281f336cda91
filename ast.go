package hbml

// NodeType identifies the variant of an AST node. The set is closed: the
// traversal engine panics on any other value.
type NodeType string

const (
	NodeTemplate        NodeType = "Template"
	NodeBlock           NodeType = "Block"
	NodeElement         NodeType = "ElementNode"
	NodeAttr            NodeType = "AttrNode"
	NodeText            NodeType = "TextNode"
	NodeComment         NodeType = "CommentStatement"
	NodeMustacheComment NodeType = "MustacheCommentStatement"
	NodeMustache        NodeType = "MustacheStatement"
	NodeBlockStatement  NodeType = "BlockStatement"
	NodeElementModifier NodeType = "ElementModifierStatement"
	NodeConcat          NodeType = "ConcatStatement"
	NodeSubExpression   NodeType = "SubExpression"
	NodePath            NodeType = "PathExpression"
	NodeString          NodeType = "StringLiteral"
	NodeBoolean         NodeType = "BooleanLiteral"
	NodeNumber          NodeType = "NumberLiteral"
	NodeNull            NodeType = "NullLiteral"
	NodeUndefined       NodeType = "UndefinedLiteral"
	NodeHash            NodeType = "Hash"
	NodeHashPair        NodeType = "HashPair"
)

// Node is the interface implemented by every AST node. Nodes are created
// once by the parser (or by a plugin during traversal) and own exactly one
// source span; the only sanctioned mutation is the traversal engine's
// in-place replacement.
type Node interface {
	Type() NodeType
	Span() *Span
}

// Template is the root node of a parsed module. Its Errors field holds the
// ordered diagnostics collected during the parse.
type Template struct {
	Body   []Node
	Loc    *Span
	Errors []*ParseError
	// Strict records the strict-mode flag for downstream compilation.
	Strict bool

	src *Source
}

// Block is the body (or else body) of a BlockStatement.
type Block struct {
	Body        []Node
	BlockParams []string
	Loc         *Span
}

// ElementNode is an HTML element with its attributes, modifiers, tag
// comments and children collected from the open tag and body.
type ElementNode struct {
	Tag         string
	SelfClosing bool
	Attributes  []*AttrNode
	Modifiers   []*ElementModifierStatement
	Comments    []*MustacheCommentStatement
	BlockParams []string
	Children    []Node
	Loc         *Span
	// NameSpan covers the tag name in the open tag; tag-balance
	// diagnostics point at it.
	NameSpan *Span
}

// AttrNode is a single attribute of an element. Value is a TextNode, a
// MustacheStatement, or a ConcatStatement; it is a singular field, so the
// traversal engine refuses to delete it.
type AttrNode struct {
	Name     string
	Value    Node
	Loc      *Span
	NameSpan *Span
}

// TextNode is a run of literal text.
type TextNode struct {
	Chars string
	Loc   *Span
}

// CommentStatement is an HTML comment. Mustache-looking text inside it is
// kept verbatim, uninterpreted.
type CommentStatement struct {
	Value string
	Loc   *Span
}

// MustacheCommentStatement is a {{!-- --}} or {{! }} comment.
type MustacheCommentStatement struct {
	Value string
	Loc   *Span
}

// MustacheStatement is a {{...}} interpolation or call appearing in
// statement or attribute-value position.
type MustacheStatement struct {
	Path   Node // PathExpression or a literal
	Params []Node
	Hash   *Hash
	// Trusting marks triple-stache {{{...}}} output.
	Trusting bool
	Loc      *Span
}

// BlockStatement is a {{#name}}...{{/name}} invocation with an optional
// {{else}} body.
type BlockStatement struct {
	Path    Node
	Params  []Node
	Hash    *Hash
	Program *Block
	Inverse *Block
	Loc     *Span
	// NameSpan covers the block name in the open mustache.
	NameSpan *Span
}

// ElementModifierStatement is a {{...}} invocation attached to an element's
// open tag rather than to its children.
type ElementModifierStatement struct {
	Path   Node
	Params []Node
	Hash   *Hash
	Loc    *Span
}

// ConcatStatement is a quoted attribute value mixing literal text and
// dynamic parts, e.g. class="a {{b}} c".
type ConcatStatement struct {
	Parts []Node // TextNode or MustacheStatement
	Loc   *Span
}

// SubExpression is a parenthesized helper call inside a mustache.
type SubExpression struct {
	Path   Node
	Params []Node
	Hash   *Hash
	Loc    *Span
}

// VarKind classifies the head of a path at parse time from the scope stack
// and the embedder's Locals predicate.
type VarKind uint8

const (
	// VarFree is a bare head bound neither locally nor by the embedder.
	VarFree VarKind = iota
	// VarLocal is a head declared by an enclosing block's block params.
	VarLocal
	// VarEmbedder is a head the embedder's Locals predicate claims.
	VarEmbedder
	// VarThis is the `this` head.
	VarThis
	// VarArg is an @-prefixed argument head.
	VarArg
)

func (k VarKind) String() string {
	switch k {
	case VarLocal:
		return "local"
	case VarEmbedder:
		return "embedder"
	case VarThis:
		return "this"
	case VarArg:
		return "arg"
	default:
		return "free"
	}
}

// PathExpression is a dotted reference such as foo.bar, this.x, or @arg.y.
type PathExpression struct {
	// Original is the path exactly as written.
	Original string
	// Parts are the dot-separated segments after the head.
	Parts []string
	// Head is the first segment; empty for `this` paths.
	Head string
	// HeadKind records the parse-time three-way classification of the head
	// (plus the this/@ forms), consumed by the downstream symbol table.
	HeadKind VarKind
	Loc      *Span
}

// StringLiteral is a quoted string inside a mustache.
type StringLiteral struct {
	Value string
	Loc   *Span
}

// NumberLiteral is a numeric literal inside a mustache.
type NumberLiteral struct {
	Value float64
	Loc   *Span
}

// BooleanLiteral is true or false inside a mustache.
type BooleanLiteral struct {
	Value bool
	Loc   *Span
}

// NullLiteral is the null literal.
type NullLiteral struct {
	Loc *Span
}

// UndefinedLiteral is the undefined literal.
type UndefinedLiteral struct {
	Loc *Span
}

// Hash is the set of key=value pairs trailing a call's positional params.
type Hash struct {
	Pairs []*HashPair
	Loc   *Span
}

// HashPair is a single key=value entry of a Hash.
type HashPair struct {
	Key   string
	Value Node
	Loc   *Span
}

func (n *Template) Type() NodeType                 { return NodeTemplate }
func (n *Block) Type() NodeType                    { return NodeBlock }
func (n *ElementNode) Type() NodeType              { return NodeElement }
func (n *AttrNode) Type() NodeType                 { return NodeAttr }
func (n *TextNode) Type() NodeType                 { return NodeText }
func (n *CommentStatement) Type() NodeType         { return NodeComment }
func (n *MustacheCommentStatement) Type() NodeType { return NodeMustacheComment }
func (n *MustacheStatement) Type() NodeType        { return NodeMustache }
func (n *BlockStatement) Type() NodeType           { return NodeBlockStatement }
func (n *ElementModifierStatement) Type() NodeType { return NodeElementModifier }
func (n *ConcatStatement) Type() NodeType          { return NodeConcat }
func (n *SubExpression) Type() NodeType            { return NodeSubExpression }
func (n *PathExpression) Type() NodeType           { return NodePath }
func (n *StringLiteral) Type() NodeType            { return NodeString }
func (n *NumberLiteral) Type() NodeType            { return NodeNumber }
func (n *BooleanLiteral) Type() NodeType           { return NodeBoolean }
func (n *NullLiteral) Type() NodeType              { return NodeNull }
func (n *UndefinedLiteral) Type() NodeType         { return NodeUndefined }
func (n *Hash) Type() NodeType                     { return NodeHash }
func (n *HashPair) Type() NodeType                 { return NodeHashPair }

func (n *Template) Span() *Span                 { return n.Loc }
func (n *Block) Span() *Span                    { return n.Loc }
func (n *ElementNode) Span() *Span              { return n.Loc }
func (n *AttrNode) Span() *Span                 { return n.Loc }
func (n *TextNode) Span() *Span                 { return n.Loc }
func (n *CommentStatement) Span() *Span         { return n.Loc }
func (n *MustacheCommentStatement) Span() *Span { return n.Loc }
func (n *MustacheStatement) Span() *Span        { return n.Loc }
func (n *BlockStatement) Span() *Span           { return n.Loc }
func (n *ElementModifierStatement) Span() *Span { return n.Loc }
func (n *ConcatStatement) Span() *Span          { return n.Loc }
func (n *SubExpression) Span() *Span            { return n.Loc }
func (n *PathExpression) Span() *Span           { return n.Loc }
func (n *StringLiteral) Span() *Span            { return n.Loc }
func (n *NumberLiteral) Span() *Span            { return n.Loc }
func (n *BooleanLiteral) Span() *Span           { return n.Loc }
func (n *NullLiteral) Span() *Span              { return n.Loc }
func (n *UndefinedLiteral) Span() *Span         { return n.Loc }
func (n *Hash) Span() *Span                     { return n.Loc }
func (n *HashPair) Span() *Span                 { return n.Loc }

// Source returns the template source this tree was parsed from.
func (n *Template) Source() *Source { return n.src }
