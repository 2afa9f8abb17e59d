package clangparse

import (
	"fmt"
	"log/slog"

	"github.com/go-clang/clang-v13/clang"

	"mbedtlsbindgen/internal/cexpr"
	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/orderedmap"
)

type parser struct {
	tu  clang.TranslationUnit
	log *slog.Logger

	// decls is keyed by kind and name so repeated declarations collapse and a
	// definition replaces an earlier forward declaration in place.
	decls *orderedmap.OrderedMap[string, ir.Decl]

	// typedefNames maps the USR of an anonymous record or enum to the name
	// of the typedef that introduces it.
	typedefNames map[string]string
	// anonNames maps the USR of a hoisted nested declaration to its name.
	anonNames map[string]string
	anonCount map[string]int

	macros map[string]cexpr.Value
}

func newParser(tu clang.TranslationUnit, log *slog.Logger) *parser {
	return &parser{
		tu:           tu,
		log:          log,
		decls:        orderedmap.NewOrderedMap[string, ir.Decl](),
		typedefNames: make(map[string]string),
		anonNames:    make(map[string]string),
		anonCount:    make(map[string]int),
		macros:       make(map[string]cexpr.Value),
	}
}

func (p *parser) walk(root clang.Cursor) {
	root.Visit(func(c, _ clang.Cursor) clang.ChildVisitResult {
		if c.Kind() == clang.Cursor_TypedefDecl && !c.Location().IsInSystemHeader() {
			p.noteTypedef(c)
		}
		return clang.ChildVisit_Continue
	})

	root.Visit(func(c, _ clang.Cursor) clang.ChildVisitResult {
		if c.Location().IsInSystemHeader() {
			return clang.ChildVisit_Continue
		}
		p.visit(c)
		return clang.ChildVisit_Continue
	})
}

func (p *parser) noteTypedef(c clang.Cursor) {
	t := c.TypedefDeclUnderlyingType()
	if t.Kind() == clang.Type_Elaborated {
		t = t.NamedType()
	}
	decl := t.Declaration()
	switch decl.Kind() {
	case clang.Cursor_StructDecl, clang.Cursor_UnionDecl, clang.Cursor_EnumDecl:
		if !isAnonymous(decl.Spelling()) {
			return
		}
		if _, ok := p.typedefNames[decl.USR()]; !ok {
			p.typedefNames[decl.USR()] = c.Spelling()
		}
	}
}

func (p *parser) visit(c clang.Cursor) {
	switch c.Kind() {
	case clang.Cursor_StructDecl, clang.Cursor_UnionDecl:
		if name := p.declName(c); name != "" {
			p.record(c, name)
		}
	case clang.Cursor_EnumDecl:
		p.enum(c, p.declName(c))
	case clang.Cursor_TypedefDecl:
		p.typedef(c)
	case clang.Cursor_FunctionDecl:
		p.function(c)
	case clang.Cursor_VarDecl:
		p.variable(c)
	case clang.Cursor_MacroDefinition:
		p.macro(c)
	}
}

// declName returns the name of a record or enum declaration, or "" if it is
// anonymous and no typedef or parent names it.
func (p *parser) declName(c clang.Cursor) string {
	spelling := c.Spelling()
	if !isAnonymous(spelling) {
		return spelling
	}
	usr := c.USR()
	if name, ok := p.anonNames[usr]; ok {
		return name
	}
	return p.typedefNames[usr]
}

type pendingField struct {
	field *ir.Field
	// anon is the USR of an anonymous member still waiting for a field.
	anon string
}

func (p *parser) record(c clang.Cursor, name string) {
	key := "record:" + name
	union := c.Kind() == clang.Cursor_UnionDecl

	if !c.IsCursorDefinition() {
		if !p.decls.Has(key) {
			p.decls.Set(key, &ir.Record{Name: name, Union: union, Opaque: true, Size: -1})
		}
		return
	}
	if existing, ok := p.decls.Get(key); ok && !existing.(*ir.Record).Opaque {
		return
	}

	typ := c.Type()
	r := &ir.Record{Name: name, Union: union, Size: typ.SizeOf(), Align: typ.AlignOf()}
	if r.Size < 0 {
		r.Opaque = true
		p.decls.Set(key, r)
		return
	}

	var fields []pendingField
	c.Visit(func(child, _ clang.Cursor) clang.ChildVisitResult {
		switch child.Kind() {
		case clang.Cursor_StructDecl, clang.Cursor_UnionDecl, clang.Cursor_EnumDecl:
			if !isAnonymous(child.Spelling()) {
				p.visit(child)
				break
			}
			usr := p.hoist(child, name)
			if child.Kind() != clang.Cursor_EnumDecl {
				fields = append(fields, pendingField{anon: usr})
			}
		case clang.Cursor_FieldDecl:
			f := p.field(child)
			if n := len(fields); n > 0 && fields[n-1].anon != "" && fields[n-1].anon == elementUSR(child.Type()) {
				fields[n-1] = pendingField{field: f}
				break
			}
			fields = append(fields, pendingField{field: f})
		}
		return clang.ChildVisit_Continue
	})

	anon := 0
	for _, pf := range fields {
		if pf.field != nil {
			r.Fields = append(r.Fields, pf.field)
			continue
		}
		anon++
		r.Fields = append(r.Fields, p.anonMember(typ, pf.anon, anon))
	}

	p.log.Debug("record", "name", name, "union", union, "fields", len(r.Fields), "size", r.Size)
	p.decls.Set(key, r)
}

// hoist names an anonymous declaration nested in parent and records it at
// file level ahead of the parent.
func (p *parser) hoist(c clang.Cursor, parent string) string {
	usr := c.USR()
	if _, ok := p.anonNames[usr]; ok {
		return usr
	}
	kind := "struct"
	switch c.Kind() {
	case clang.Cursor_UnionDecl:
		kind = "union"
	case clang.Cursor_EnumDecl:
		kind = "enum"
	}
	p.anonCount[parent+"/"+kind]++
	name := anonName(parent, kind, p.anonCount[parent+"/"+kind])
	p.anonNames[usr] = name

	if c.Kind() == clang.Cursor_EnumDecl {
		p.enum(c, name)
	} else {
		p.record(c, name)
	}
	return usr
}

// anonMember builds the field standing in for an anonymous struct or union
// member. Its offset is that of the member's first field.
func (p *parser) anonMember(parent clang.Type, usr string, n int) *ir.Field {
	name := p.anonNames[usr]
	f := &ir.Field{Name: fmt.Sprintf("anon_%d", n), Type: ir.NamedType(name)}
	d, ok := p.decls.Get("record:" + name)
	if !ok {
		return f
	}
	r := d.(*ir.Record)
	f.Size, f.Align = r.Size, r.Align
	if len(r.Fields) > 0 && r.Fields[0].Name != "" {
		if off := parent.OffsetOf(r.Fields[0].Name); off >= 0 {
			f.Offset = off / 8
		}
	}
	return f
}

func (p *parser) field(c clang.Cursor) *ir.Field {
	t := c.Type()
	f := &ir.Field{
		Name:  c.Spelling(),
		Type:  p.goType(t),
		Size:  t.SizeOf(),
		Align: t.AlignOf(),
	}
	off := c.OffsetOfField()
	if off < 0 {
		off = 0
	}
	f.Offset = off / 8
	if c.IsBitField() {
		f.Bits = int64(c.FieldDeclBitWidth())
		f.BitOffset = off
	}
	return f
}

func (p *parser) enum(c clang.Cursor, name string) {
	key := "enum:" + name
	if name == "" {
		key = "enum:" + c.USR()
	}
	if !c.IsCursorDefinition() || p.decls.Has(key) {
		return
	}

	repr := basicType(c.EnumDeclIntegerType())
	e := &ir.Enum{Name: name, Repr: repr}
	c.Visit(func(child, _ clang.Cursor) clang.ChildVisitResult {
		if child.Kind() == clang.Cursor_EnumConstantDecl {
			v := child.EnumConstantDeclValue()
			if repr.IsUnsigned() {
				v = int64(child.EnumConstantDeclUnsignedValue())
			}
			e.Variants = append(e.Variants, &ir.Variant{Name: child.Spelling(), Value: v})
		}
		return clang.ChildVisit_Continue
	})
	p.log.Debug("enum", "name", name, "variants", len(e.Variants))
	p.decls.Set(key, e)
}

func (p *parser) typedef(c clang.Cursor) {
	name := c.Spelling()
	key := "typedef:" + name
	if p.decls.Has(key) {
		return
	}

	t := c.TypedefDeclUnderlyingType()
	if t.Kind() == clang.Type_Elaborated {
		t = t.NamedType()
	}
	// A typedef of an anonymous record or enum lends it its name.
	if decl := t.Declaration(); isAnonymous(decl.Spelling()) {
		switch decl.Kind() {
		case clang.Cursor_StructDecl, clang.Cursor_UnionDecl:
			p.record(decl, name)
		case clang.Cursor_EnumDecl:
			p.enum(decl, name)
		}
	}
	p.decls.Set(key, &ir.Typedef{Name: name, Target: p.goType(t)})
}

func (p *parser) function(c clang.Cursor) {
	name := c.Spelling()
	key := "fn:" + name
	if name == "" || c.StorageClass() == clang.SC_Static || p.decls.Has(key) {
		return
	}

	fn := &ir.Function{
		Name:     name,
		Link:     name,
		Result:   p.goType(c.ResultType()),
		Variadic: c.IsVariadic(),
	}
	for i := int32(0); i < c.NumArguments(); i++ {
		arg := c.Argument(uint32(i))
		fn.Params = append(fn.Params, &ir.Param{Name: arg.Spelling(), Type: p.paramType(arg.Type())})
	}
	p.decls.Set(key, fn)
}

func (p *parser) variable(c clang.Cursor) {
	name := c.Spelling()
	key := "var:" + name
	if c.StorageClass() == clang.SC_Static || p.decls.Has(key) {
		return
	}
	p.decls.Set(key, &ir.Var{Name: name, Link: name, Type: p.goType(c.Type())})
}
