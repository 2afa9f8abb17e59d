package extract

import (
	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/normalize"
)

// recordImplements reports how r provides trait given its fields. path holds
// the records being inspected so self references terminate.
func (s *selection) recordImplements(r *ir.Record, trait normalize.Trait, path map[string]bool) normalize.Implements {
	if r.Opaque {
		if trait == normalize.Default {
			return normalize.No
		}
		return normalize.Yes
	}
	if r.Union && trait == normalize.Default {
		return normalize.Manually
	}

	result := normalize.Yes
	for _, f := range r.Fields {
		switch s.implements(f.Type, trait, path) {
		case normalize.No:
			return normalize.No
		case normalize.Manually:
			result = normalize.Manually
		}
	}
	return result
}

func (s *selection) implements(t ir.Type, trait normalize.Trait, path map[string]bool) normalize.Implements {
	switch t.Kind {
	case ir.Pointer, ir.FuncPtr:
		if trait == normalize.Default {
			return normalize.Manually
		}
	case ir.Array:
		if t.Elem != nil {
			return s.implements(*t.Elem, trait, path)
		}
	case ir.Named:
		return s.namedImplements(t.Name, trait, path)
	}
	return normalize.Yes
}

func (s *selection) namedImplements(name string, trait normalize.Trait, path map[string]bool) normalize.Implements {
	if s.x.opts.denied(name) {
		return s.x.policy.ImplementsTrait(name, trait)
	}
	if path[name] {
		return normalize.Yes
	}
	path[name] = true
	defer delete(path, name)

	decls := s.byName[name]
	for _, d := range decls {
		if r, ok := d.(*ir.Record); ok {
			return s.recordImplements(r, trait, path)
		}
	}
	for _, d := range decls {
		if td, ok := d.(*ir.Typedef); ok {
			return s.implements(td.Target, trait, path)
		}
	}
	return normalize.Yes
}
