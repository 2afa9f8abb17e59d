// Package extract selects, renames and annotates the declarations a parsing
// engine reads from the virtual header unit.
package extract

import (
	"fmt"
	"go/token"
	"log/slog"

	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/logger"
	"mbedtlsbindgen/internal/normalize"
)

// Unit is the translation unit handed to an engine.
type Unit struct {
	Name     string
	Contents string
	Args     []string
	// Target forces the target triple when non-empty.
	Target string
}

// Engine parses a unit. It returns declarations in source order with their
// original C names, leaves out anything from system headers and gives nested
// anonymous records a name derived from their parent.
type Engine interface {
	Parse(u Unit) (*ir.File, error)
}

// Extractor applies selection, naming and trait policy to an engine's output.
type Extractor struct {
	engine Engine
	policy normalize.Policy
	opts   Options
	log    *slog.Logger
}

func New(engine Engine, policy normalize.Policy, opts Options, log *slog.Logger) *Extractor {
	return &Extractor{engine: engine, policy: policy, opts: opts, log: logger.OrDefault(log)}
}

// Extract parses u and returns the selected declarations.
func (x *Extractor) Extract(u Unit) (*ir.File, error) {
	raw, err := x.engine.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u.Name, err)
	}
	if raw == nil {
		raw = &ir.File{}
	}

	s := newSelection(x, raw)
	out := s.run()
	x.log.Info("extracted declarations", "parsed", len(raw.Decls), "kept", len(out.Decls))
	return out, nil
}

// Package-level names the generated file defines itself.
var reserved = map[string]bool{
	ir.SymbolType:   true,
	ir.SymbolTable:  true,
	ir.LinkPrefixID: true,
	"unsafe":        true,
	"fmt":           true,
}

// Ident makes name a usable Go identifier: keywords get a trailing
// underscore and a leading digit gets a leading one.
func Ident(name string) string {
	if name == "" {
		return name
	}
	if token.IsKeyword(name) {
		return name + "_"
	}
	if c := name[0]; c >= '0' && c <= '9' {
		return "_" + name
	}
	return name
}

type selection struct {
	x      *Extractor
	raw    *ir.File
	byName map[string][]ir.Decl
	names  map[string]bool
}

func newSelection(x *Extractor, raw *ir.File) *selection {
	s := &selection{
		x:      x,
		raw:    raw,
		byName: make(map[string][]ir.Decl),
		names:  make(map[string]bool),
	}
	for _, d := range raw.Decls {
		if n := d.DeclName(); n != "" {
			s.byName[n] = append(s.byName[n], d)
		}
	}
	for n := range reserved {
		s.names[n] = true
	}
	return s
}

// goName is the emitted name of a package-level declaration or a reference to one.
func (s *selection) goName(original string) string {
	name := Ident(s.x.policy.ItemName(original))
	if reserved[name] {
		name += "_"
	}
	return name
}

func (s *selection) run() *ir.File {
	keep := make([]bool, len(s.raw.Decls))
	for i, d := range s.raw.Decls {
		keep[i] = s.allowed(d)
		if !keep[i] {
			s.x.log.Debug("skip declaration", "name", d.DeclName(), "reason", "not allowed")
		}
	}
	if s.x.opts.Recursive {
		s.closure(keep)
	}

	out := &ir.File{LinkPrefix: s.x.opts.LinkPrefix}
	for i, d := range s.raw.Decls {
		if !keep[i] {
			continue
		}
		nd := s.convert(d)
		if nd == nil {
			continue
		}
		if name := nd.DeclName(); name != "" {
			if s.names[name] {
				s.x.log.Warn("duplicate declaration dropped", "name", name, "original", d.DeclName())
				continue
			}
			s.names[name] = true
		}
		if e, ok := nd.(*ir.Enum); ok {
			e.Variants = s.uniqueVariants(e.Variants)
			if e.Name == "" && len(e.Variants) == 0 {
				continue
			}
		}
		out.Decls = append(out.Decls, nd)
	}
	return out
}

func (s *selection) uniqueVariants(vs []*ir.Variant) []*ir.Variant {
	kept := vs[:0]
	for _, v := range vs {
		if s.names[v.Name] {
			s.x.log.Warn("duplicate enum constant dropped", "name", v.Name)
			continue
		}
		s.names[v.Name] = true
		kept = append(kept, v)
	}
	return kept
}

func (s *selection) allowed(d ir.Decl) bool {
	o := s.x.opts
	switch d := d.(type) {
	case *ir.Function:
		return matches(o.AllowFunctions, d.Name)
	case *ir.Var:
		return matches(o.AllowVars, d.Name)
	case *ir.Const:
		return matches(o.AllowVars, d.Name)
	case *ir.Record, *ir.Typedef:
		return matches(o.AllowTypes, d.DeclName()) && !o.denied(d.DeclName())
	case *ir.Enum:
		if d.Name != "" {
			return matches(o.AllowTypes, d.Name) && !o.denied(d.Name)
		}
		for _, v := range d.Variants {
			if matches(o.AllowVars, v.Name) {
				return true
			}
		}
	}
	return false
}

// closure marks every type reachable from a kept declaration.
func (s *selection) closure(keep []bool) {
	index := make(map[ir.Decl]int, len(s.raw.Decls))
	var work []ir.Decl
	for i, d := range s.raw.Decls {
		index[d] = i
		if keep[i] {
			work = append(work, d)
		}
	}

	for len(work) > 0 {
		d := work[len(work)-1]
		work = work[:len(work)-1]
		for _, ref := range refs(d) {
			if s.x.opts.denied(ref) {
				continue
			}
			for _, dep := range s.byName[ref] {
				if i := index[dep]; !keep[i] {
					keep[i] = true
					s.x.log.Debug("include referenced type", "name", ref, "from", d.DeclName())
					work = append(work, dep)
				}
			}
		}
	}
}

func refs(d ir.Decl) []string {
	var out []string
	switch d := d.(type) {
	case *ir.Function:
		out = append(out, d.Result.NamedRefs()...)
		for _, p := range d.Params {
			out = append(out, p.Type.NamedRefs()...)
		}
	case *ir.Var:
		out = d.Type.NamedRefs()
	case *ir.Record:
		for _, f := range d.Fields {
			out = append(out, f.Type.NamedRefs()...)
		}
	case *ir.Typedef:
		out = d.Target.NamedRefs()
	case *ir.Enum:
		out = d.Repr.NamedRefs()
	}
	return out
}

func (s *selection) rename(t ir.Type) ir.Type {
	return t.Rename(s.goName)
}

func (s *selection) convert(d ir.Decl) ir.Decl {
	switch d := d.(type) {
	case *ir.Function:
		fn := &ir.Function{
			Name:     s.goName(d.Name),
			Link:     d.Name,
			Result:   s.rename(d.Result),
			Variadic: d.Variadic,
		}
		for i, p := range d.Params {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			fn.Params = append(fn.Params, &ir.Param{Name: Ident(name), Type: s.rename(p.Type)})
		}
		return fn

	case *ir.Var:
		return &ir.Var{Name: s.goName(d.Name), Link: d.Name, Type: s.rename(d.Type)}

	case *ir.Const:
		c := *d
		c.Name = s.goName(d.Name)
		if !c.IsString {
			c.Type = ir.BasicType(s.x.policy.IntMacro(d.Name, d.Int).GoType())
		}
		return &c

	case *ir.Record:
		return s.record(d)

	case *ir.Enum:
		e := &ir.Enum{Repr: s.rename(d.Repr)}
		if d.Name != "" {
			e.Name = s.goName(d.Name)
		}
		for _, v := range d.Variants {
			name := s.x.policy.EnumVariantName(d.Name, v.Name)
			if s.x.opts.PrependEnumName && e.Name != "" {
				name = e.Name + "_" + name
			}
			e.Variants = append(e.Variants, &ir.Variant{Name: s.goName(name), Value: v.Value})
		}
		return e

	case *ir.Typedef:
		td := &ir.Typedef{Name: s.goName(d.Name), Target: s.rename(d.Target)}
		if td.Target.Kind == ir.Named && td.Target.Name == td.Name {
			s.x.log.Debug("skip typedef", "name", d.Name, "reason", "aliases the record of the same name")
			return nil
		}
		return td
	}
	return nil
}

func (s *selection) record(d *ir.Record) *ir.Record {
	r := &ir.Record{
		Name:   s.goName(d.Name),
		Union:  d.Union,
		Opaque: d.Opaque,
		Size:   d.Size,
		Align:  d.Align,
	}
	for _, f := range d.Fields {
		nf := *f
		nf.Name = Ident(f.Name)
		nf.Type = s.rename(f.Type)
		r.Fields = append(r.Fields, &nf)
	}

	for _, trait := range s.x.opts.Derive {
		switch s.recordImplements(d, trait, map[string]bool{d.Name: true}) {
		case normalize.Yes:
			r.Derive = append(r.Derive, trait)
		case normalize.Manually:
			r.Manual = append(r.Manual, trait)
		}
	}
	return r
}
