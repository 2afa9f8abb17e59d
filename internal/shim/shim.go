// Package shim synthesizes the deprecated union accessor methods older call
// sites use in place of direct field access.
package shim

import (
	"fmt"
	"strings"

	"mbedtlsbindgen/internal/ir"
)

// Union describes one union declaration and its fields in declaration order.
type Union struct {
	Name   string
	Fields []Field
}

type Field struct {
	Name string
	Type ir.Type
}

type collector struct {
	unions []Union
}

func (c *collector) Visit(node ir.Node) ir.Visitor {
	switch n := node.(type) {
	case *ir.File:
		return c
	case *ir.Record:
		if n.Union && !n.Opaque {
			u := Union{Name: n.Name, Fields: make([]Field, 0, len(n.Fields))}
			for _, f := range n.Fields {
				u.Fields = append(u.Fields, Field{Name: f.Name, Type: f.Type})
			}
			c.unions = append(c.unions, u)
		}
	}
	return nil
}

// Collect returns every union in f.
func Collect(f *ir.File) []Union {
	c := &collector{}
	ir.Walk(c, f)
	return c.unions
}

// Synthesize renders one accessor per union field. Each returns a pointer to
// the field, which starts at the beginning of the union's storage.
func Synthesize(f *ir.File) string {
	var sb strings.Builder
	for _, u := range Collect(f) {
		for _, field := range u.Fields {
			typ := field.Type.Go()
			fmt.Fprintf(&sb, "// Deprecated: access the field through unsafe.Pointer instead.\n")
			fmt.Fprintf(&sb, "func (u *%s) %s() *%s {\n\treturn (*%s)(unsafe.Pointer(u))\n}\n\n", u.Name, field.Name, typ, typ)
		}
	}
	return sb.String()
}

// Count returns the number of accessors Synthesize renders for f.
func Count(f *ir.File) int {
	n := 0
	for _, u := range Collect(f) {
		n += len(u.Fields)
	}
	return n
}
