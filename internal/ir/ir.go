// Package ir is the typed declaration tree produced by extraction and
// consumed by rendering and shim synthesis.
package ir

import (
	"strconv"
	"strings"

	"mbedtlsbindgen/internal/normalize"
)

// Kind classifies a Type.
type Kind int

const (
	Void Kind = iota
	Basic
	Named
	Pointer
	Array
	FuncPtr
)

// Type is a reference to a C type in Go terms.
type Type struct {
	Kind Kind
	// Name is the Go type for Basic and the declared name for Named.
	Name string
	Elem *Type
	// Len is the element count of an Array.
	Len int64
}

func VoidType() Type            { return Type{Kind: Void} }
func BasicType(name string) Type { return Type{Kind: Basic, Name: name} }
func NamedType(name string) Type { return Type{Kind: Named, Name: name} }
func FuncPointer() Type          { return Type{Kind: FuncPtr} }

func PointerTo(elem Type) Type {
	return Type{Kind: Pointer, Elem: &elem}
}

func ArrayOf(elem Type, n int64) Type {
	return Type{Kind: Array, Elem: &elem, Len: n}
}

// Go returns the Go spelling of t. Pointers to void become unsafe.Pointer and
// function pointers become uintptr.
func (t Type) Go() string {
	switch t.Kind {
	case Void:
		return ""
	case Basic, Named:
		return t.Name
	case Pointer:
		if t.Elem == nil || t.Elem.Kind == Void {
			return "unsafe.Pointer"
		}
		return "*" + t.Elem.Go()
	case Array:
		return "[" + strconv.FormatInt(t.Len, 10) + "]" + t.Elem.Go()
	case FuncPtr:
		return "uintptr"
	}
	return ""
}

// Rename returns t with every Named reference rewritten by f.
func (t Type) Rename(f func(string) string) Type {
	switch t.Kind {
	case Named:
		t.Name = f(t.Name)
	case Pointer, Array:
		if t.Elem != nil {
			elem := t.Elem.Rename(f)
			t.Elem = &elem
		}
	}
	return t
}

// NamedRefs returns the names t refers to.
func (t Type) NamedRefs() []string {
	switch t.Kind {
	case Named:
		return []string{t.Name}
	case Pointer, Array:
		if t.Elem != nil {
			return t.Elem.NamedRefs()
		}
	}
	return nil
}

// IsUnsigned reports whether t is an unsigned basic integer.
func (t Type) IsUnsigned() bool {
	return t.Kind == Basic && (strings.HasPrefix(t.Name, "uint") || t.Name == "byte")
}

// Node is any element of the tree.
type Node interface {
	node()
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	DeclName() string
}

// File is an ordered declaration list.
type File struct {
	Decls []Decl
	// LinkPrefix is joined with a symbol's name to form its library symbol.
	LinkPrefix string
}

type Function struct {
	Name string
	// Link is the library symbol.
	Link     string
	Params   []*Param
	Result   Type
	Variadic bool
}

type Param struct {
	Name string
	Type Type
}

type Record struct {
	Name   string
	Union  bool
	Opaque bool
	Fields []*Field
	Size   int64
	Align  int64
	// Derive lists traits derived automatically; Manual lists traits that
	// need a hand-written implementation.
	Derive []normalize.Trait
	Manual []normalize.Trait
}

type Field struct {
	Name   string
	Type   Type
	Offset int64
	Size   int64
	Align  int64
	// Bits is the width of a bit-field, zero for ordinary fields.
	Bits      int64
	BitOffset int64
}

// Enum is a C enumeration. Anonymous enums have an empty Name.
type Enum struct {
	Name     string
	Repr     Type
	Variants []*Variant
}

type Variant struct {
	Name  string
	Value int64
}

type Typedef struct {
	Name   string
	Target Type
}

// Const is a macro constant.
type Const struct {
	Name     string
	Type     Type
	Int      int64
	Str      string
	IsString bool
}

// Var is an external variable.
type Var struct {
	Name string
	Link string
	Type Type
}

func (*File) node()     {}
func (*Function) node() {}
func (*Param) node()    {}
func (*Record) node()   {}
func (*Field) node()    {}
func (*Enum) node()     {}
func (*Variant) node()  {}
func (*Typedef) node()  {}
func (*Const) node()    {}
func (*Var) node()      {}

func (d *Function) DeclName() string { return d.Name }
func (d *Record) DeclName() string   { return d.Name }
func (d *Enum) DeclName() string     { return d.Name }
func (d *Typedef) DeclName() string  { return d.Name }
func (d *Const) DeclName() string    { return d.Name }
func (d *Var) DeclName() string      { return d.Name }

// HasTrait reports whether t is in traits.
func HasTrait(traits []normalize.Trait, t normalize.Trait) bool {
	for _, x := range traits {
		if x == t {
			return true
		}
	}
	return false
}
