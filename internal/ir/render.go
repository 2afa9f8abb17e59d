package ir

import (
	"fmt"
	"strconv"
	"strings"

	"mbedtlsbindgen/internal/normalize"
)

// Generated symbol table identifiers; the extractor keeps declarations off them.
const (
	SymbolType   = "Symbol"
	SymbolTable  = "Symbols"
	LinkPrefixID = "LinkPrefix"
)

// Render returns the Go source of the declarations in f, without a package
// clause or imports. Functions and variables are collected into a symbol
// table a loader binds at run time.
func Render(f *File) string {
	var sb strings.Builder

	var symbols []symbol
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *Const:
			renderConst(&sb, d)
		case *Enum:
			renderEnum(&sb, d)
		case *Typedef:
			fmt.Fprintf(&sb, "type %s = %s\n\n", d.Name, typeOrBlob(d.Target))
		case *Record:
			renderRecord(&sb, d)
		case *Function:
			renderFunction(&sb, d)
			symbols = append(symbols, symbol{name: d.Name, link: d.Link})
		case *Var:
			fmt.Fprintf(&sb, "var %s *%s\n\n", d.Name, typeOrBlob(d.Type))
			symbols = append(symbols, symbol{name: d.Name, link: d.Link})
		}
	}

	if len(symbols) > 0 {
		renderSymbols(&sb, f.LinkPrefix, symbols)
	}
	return sb.String()
}

type symbol struct {
	name string
	link string
}

func typeOrBlob(t Type) string {
	if t.Kind == Void {
		return "struct{}"
	}
	return t.Go()
}

func renderConst(sb *strings.Builder, c *Const) {
	if c.IsString {
		fmt.Fprintf(sb, "const %s = %s\n\n", c.Name, strconv.Quote(c.Str))
		return
	}
	fmt.Fprintf(sb, "const %s %s = %s\n\n", c.Name, c.Type.Go(), formatInt(c.Int, c.Type))
}

func formatInt(v int64, t Type) string {
	if t.IsUnsigned() {
		return strconv.FormatUint(uint64(v), 10)
	}
	return strconv.FormatInt(v, 10)
}

func renderEnum(sb *strings.Builder, e *Enum) {
	typ := e.Repr.Go()
	if e.Name != "" {
		fmt.Fprintf(sb, "type %s = %s\n\n", e.Name, typ)
		typ = e.Name
	}
	if len(e.Variants) == 0 {
		return
	}
	sb.WriteString("const (\n")
	for _, v := range e.Variants {
		fmt.Fprintf(sb, "\t%s %s = %s\n", v.Name, typ, formatInt(v.Value, e.Repr))
	}
	sb.WriteString(")\n\n")
}

func traitList(traits []normalize.Trait) string {
	names := make([]string, len(traits))
	for i, t := range traits {
		names[i] = t.String()
	}
	return strings.Join(names, " ")
}

func renderRecord(sb *strings.Builder, r *Record) {
	if len(r.Derive) > 0 {
		fmt.Fprintf(sb, "//bindgen:derive %s\n", traitList(r.Derive))
	}
	if len(r.Manual) > 0 {
		fmt.Fprintf(sb, "//bindgen:manual %s\n", traitList(r.Manual))
	}

	switch {
	case r.Opaque:
		fmt.Fprintf(sb, "type %s struct {\n\t_ [0]byte\n}\n\n", r.Name)
	case r.Union:
		fmt.Fprintf(sb, "type %s struct {\n\t_ [0]%s\n\t_ [%d]byte\n}\n\n", r.Name, alignType(r.Align), max(r.Size, 0))
	default:
		slots, ok := Layout(r)
		if !ok {
			fmt.Fprintf(sb, "type %s struct {\n\t_ [%d]byte\n}\n\n", r.Name, max(r.Size, 0))
			break
		}
		fmt.Fprintf(sb, "type %s struct {\n", r.Name)
		for _, s := range slots {
			fmt.Fprintf(sb, "\t%s %s\n", s.Name, s.Type)
		}
		sb.WriteString("}\n\n")
	}

	if HasTrait(r.Derive, normalize.Debug) {
		fmt.Fprintf(sb, "func (x *%s) String() string {\n\treturn fmt.Sprintf(\"%%+v\", *x)\n}\n\n", r.Name)
	}
}

func renderFunction(sb *strings.Builder, fn *Function) {
	params := make([]string, 0, len(fn.Params)+1)
	taken := map[string]bool{}
	for _, p := range fn.Params {
		params = append(params, p.Name+" "+p.Type.Go())
		taken[p.Name] = true
	}
	if fn.Variadic {
		name := "args"
		for taken[name] {
			name += "_"
		}
		params = append(params, name+" ...any")
	}

	fmt.Fprintf(sb, "var %s func(%s)", fn.Name, strings.Join(params, ", "))
	if res := fn.Result.Go(); res != "" {
		sb.WriteString(" " + res)
	}
	sb.WriteString("\n\n")
}

func renderSymbols(sb *strings.Builder, prefix string, symbols []symbol) {
	fmt.Fprintf(sb, "// %s joined with a %s's Name forms its library symbol when Link is empty.\n", LinkPrefixID, SymbolType)
	fmt.Fprintf(sb, "const %s = %s\n\n", LinkPrefixID, strconv.Quote(prefix))
	fmt.Fprintf(sb, "// %s binds a declaration to a library symbol.\n", SymbolType)
	fmt.Fprintf(sb, "type %s struct {\n\tName string\n\tLink string\n\tAddr any\n}\n\n", SymbolType)
	fmt.Fprintf(sb, "// %s lists every function and variable for the loader to bind.\n", SymbolTable)
	fmt.Fprintf(sb, "var %s = []%s{\n", SymbolTable, SymbolType)
	for _, s := range symbols {
		if s.link == "" || s.link == prefix+s.name {
			fmt.Fprintf(sb, "\t{Name: %s, Addr: &%s},\n", strconv.Quote(s.name), s.name)
			continue
		}
		fmt.Fprintf(sb, "\t{Name: %s, Link: %s, Addr: &%s},\n", strconv.Quote(s.name), strconv.Quote(s.link), s.name)
	}
	sb.WriteString("}\n")
}
