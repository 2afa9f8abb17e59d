package ir

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses the tree in depth-first order: declarations in file order,
// then record fields, function parameters and enum variants in declaration order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *File:
		for _, d := range n.Decls {
			Walk(v, d)
		}
	case *Record:
		for _, f := range n.Fields {
			Walk(v, f)
		}
	case *Function:
		for _, p := range n.Params {
			Walk(v, p)
		}
	case *Enum:
		for _, x := range n.Variants {
			Walk(v, x)
		}
	}

	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses the tree, calling f(node) for each node; if f returns true
// the children are inspected, followed by a call of f(nil).
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}
