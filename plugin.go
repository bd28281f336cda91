package hbml

import "fmt"

// An ASTPlugin is instantiated once per parse with an environment giving it
// the template's identity and the syntax toolkit, and returns the visitors
// to run over the fresh tree.
type ASTPlugin func(env Env) Plugin

// Plugin is one instantiated AST transform.
type Plugin struct {
	Name    string
	Visitor map[NodeType]Visitor
}

// Meta identifies the template being transformed.
type Meta struct {
	ModuleName string
}

// Syntax hands plugins the toolkit without importing anything: parse for
// building subtrees from text, print/traverse/walk for working with them.
type Syntax struct {
	Parse    func(text string, opts Options) (*Template, error)
	Print    func(n Node) string
	Traverse func(root Node, visitors map[NodeType]Visitor)
	Walk     func(n Node, fn func(Node) bool)
}

// Env is the environment an ASTPlugin is instantiated with.
type Env struct {
	Meta   Meta
	Syntax Syntax
}

// applyPlugins runs each configured plugin over the parsed tree in order.
// A panic inside a plugin's visitors is returned as an error naming the
// plugin, since the tree may be half-transformed.
func applyPlugins(doc *Template, opts Options) (err error) {
	if len(opts.Plugins) == 0 {
		return nil
	}
	env := Env{
		Meta: Meta{ModuleName: opts.ModuleName},
		Syntax: Syntax{
			Parse:    Parse,
			Print:    Print,
			Traverse: Traverse,
			Walk:     Walk,
		},
	}
	for _, mk := range opts.Plugins {
		plugin := mk(env)
		if plugin.Visitor == nil {
			continue
		}
		if err := runPlugin(doc, plugin); err != nil {
			return err
		}
	}
	return nil
}

func runPlugin(doc *Template, plugin Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			name := plugin.Name
			if name == "" {
				name = "unnamed"
			}
			err = fmt.Errorf("hbml: plugin %q failed: %v", name, r)
		}
	}()
	Traverse(doc, plugin.Visitor)
	return nil
}
