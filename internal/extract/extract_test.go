package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/logger"
	"mbedtlsbindgen/internal/normalize"
)

type fakeEngine struct {
	file *ir.File
	err  error
	got  Unit
}

func (e *fakeEngine) Parse(u Unit) (*ir.File, error) {
	e.got = u
	return e.file, e.err
}

func extract(t *testing.T, opts Options, decls ...ir.Decl) *ir.File {
	t.Helper()
	x := New(&fakeEngine{file: &ir.File{Decls: decls}}, normalize.Mbedtls(), opts, logger.Discard())
	f, err := x.Extract(Unit{Name: "bindgen-input.h"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return f
}

func names(f *ir.File) []string {
	var out []string
	for _, d := range f.Decls {
		out = append(out, d.DeclName())
	}
	return out
}

func find[T ir.Decl](t *testing.T, f *ir.File, name string) T {
	t.Helper()
	for _, d := range f.Decls {
		if d, ok := d.(T); ok && d.DeclName() == name {
			return d
		}
	}
	var zero T
	t.Fatalf("declaration %q not found in %q", name, names(f))
	return zero
}

func TestExtractRenamesFunction(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Function{
			Name:   "mbedtls_foo_bar",
			Params: []*ir.Param{{Name: "ctx", Type: ir.PointerTo(ir.NamedType("mbedtls_foo_context"))}, {Name: "", Type: ir.BasicType("int32")}},
			Result: ir.BasicType("int32"),
		},
	)
	fn := find[*ir.Function](t, f, "foo_bar")
	if fn.Link != "mbedtls_foo_bar" {
		t.Fatalf("Link = %q, want mbedtls_foo_bar", fn.Link)
	}
	if got := fn.Params[0].Type.Go(); got != "*foo_context" {
		t.Fatalf("param type = %q, want *foo_context", got)
	}
	if fn.Params[1].Name != "arg1" {
		t.Fatalf("unnamed param = %q, want arg1", fn.Params[1].Name)
	}
	if src := ir.Render(f); strings.Contains(src, "var mbedtls_foo_bar") || !strings.Contains(src, "var foo_bar func(") {
		t.Fatalf("Render() =\n%s", src)
	}
	if f.LinkPrefix != "mbedtls_" {
		t.Fatalf("LinkPrefix = %q", f.LinkPrefix)
	}
}

func TestExtractAllowList(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Function{Name: "free"},
		&ir.Function{Name: "MBEDTLS_upper_fn"},
		&ir.Record{Name: "other_struct", Size: 4, Align: 4},
		&ir.Record{Name: "mbedtls_mpi", Size: 24, Align: 8, Fields: []*ir.Field{
			{Name: "s", Type: ir.BasicType("int32"), Offset: 0, Size: 4, Align: 4},
			{Name: "o", Type: ir.NamedType("other_struct"), Offset: 4, Size: 4, Align: 4},
		}},
		&ir.Var{Name: "mbedtls_debug_threshold", Type: ir.BasicType("int32")},
		&ir.Var{Name: "errno", Type: ir.BasicType("int32")},
		&ir.Const{Name: "MBEDTLS_ERR_MPI_ALLOC_FAILED", Int: -16},
		&ir.Const{Name: "EOF", Int: -1},
	)
	want := []string{"upper_fn", "mpi", "debug_threshold", "ERR_MPI_ALLOC_FAILED"}
	if got := names(f); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %q, want %q", got, want)
	}
}

func TestExtractRecursive(t *testing.T) {
	decls := []ir.Decl{
		&ir.Record{Name: "helper", Size: 4, Align: 4},
		&ir.Typedef{Name: "mbedtls_time_t", Target: ir.BasicType("int64")},
		&ir.Function{Name: "mbedtls_f", Params: []*ir.Param{
			{Name: "h", Type: ir.PointerTo(ir.NamedType("helper"))},
			{Name: "t", Type: ir.NamedType("mbedtls_time_t")},
		}},
	}

	if got := names(extract(t, MbedtlsOptions(), decls...)); !reflect.DeepEqual(got, []string{"f"}) {
		t.Fatalf("non-recursive names = %q", got)
	}

	opts := MbedtlsOptions()
	opts.Recursive = true
	if got := names(extract(t, opts, decls...)); !reflect.DeepEqual(got, []string{"helper", "f"}) {
		t.Fatalf("recursive names = %q", got)
	}
}

func TestExtractNeverEmitsTimeType(t *testing.T) {
	for _, recursive := range []bool{false, true} {
		opts := MbedtlsOptions()
		opts.Recursive = recursive
		f := extract(t, opts,
			&ir.Typedef{Name: "mbedtls_time_t", Target: ir.BasicType("int64")},
			&ir.Record{Name: "mbedtls_x509_time", Size: 8, Align: 8, Fields: []*ir.Field{
				{Name: "t", Type: ir.NamedType("mbedtls_time_t"), Offset: 0, Size: 8, Align: 8},
			}},
			&ir.Function{Name: "mbedtls_ms_time", Result: ir.NamedType("mbedtls_time_t")},
		)
		if src := ir.Render(f); strings.Contains(src, "mbedtls_time_t") {
			t.Fatalf("recursive=%v: output mentions mbedtls_time_t\n%s", recursive, src)
		}
		for _, d := range f.Decls {
			if d.DeclName() == "time_t" {
				t.Fatalf("recursive=%v: time type declared", recursive)
			}
		}
	}
}

func TestExtractEnums(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Enum{Name: "mbedtls_md_type_t", Repr: ir.BasicType("uint32"), Variants: []*ir.Variant{
			{Name: "MBEDTLS_MD_NONE", Value: 0},
			{Name: "MBEDTLS_MD_SHA256", Value: 9},
		}},
		&ir.Enum{Repr: ir.BasicType("int32"), Variants: []*ir.Variant{{Name: "MBEDTLS_ANON", Value: 1}}},
		&ir.Enum{Repr: ir.BasicType("int32"), Variants: []*ir.Variant{{Name: "OTHER", Value: 1}}},
	)
	if len(f.Decls) != 2 {
		t.Fatalf("got %d enums, want 2", len(f.Decls))
	}
	md := f.Decls[0].(*ir.Enum)
	if md.Name != "md_type_t" || md.Variants[1].Name != "MD_SHA256" {
		t.Fatalf("enum = %s %+v", md.Name, md.Variants[1])
	}
	if anon := f.Decls[1].(*ir.Enum); anon.Name != "" || anon.Variants[0].Name != "ANON" {
		t.Fatalf("anonymous enum = %+v", anon.Variants[0])
	}

	opts := MbedtlsOptions()
	opts.PrependEnumName = true
	f = extract(t, opts, &ir.Enum{Name: "mbedtls_md_type_t", Repr: ir.BasicType("uint32"), Variants: []*ir.Variant{{Name: "MBEDTLS_MD_NONE"}}})
	if got := f.Decls[0].(*ir.Enum).Variants[0].Name; got != "md_type_t_MD_NONE" {
		t.Fatalf("prepended variant = %q", got)
	}
}

func TestExtractIntMacroWidth(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Const{Name: "MBEDTLS_SMALL", Int: 1<<31 - 1},
		&ir.Const{Name: "MBEDTLS_BIG", Int: 1 << 31},
		&ir.Const{Name: "MBEDTLS_NEG", Int: -1<<31 - 1},
		&ir.Const{Name: "MBEDTLS_VERSION_STRING", Str: "3.6.0", IsString: true},
	)
	want := map[string]string{"SMALL": "int32", "BIG": "int64", "NEG": "int64"}
	for name, typ := range want {
		if got := find[*ir.Const](t, f, name).Type.Go(); got != typ {
			t.Errorf("%s type = %q, want %q", name, got, typ)
		}
	}
	if c := find[*ir.Const](t, f, "VERSION_STRING"); !c.IsString || c.Str != "3.6.0" {
		t.Errorf("string macro = %+v", c)
	}
}

func TestExtractTraits(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Record{Name: "mbedtls_plain", Size: 4, Align: 4, Fields: []*ir.Field{
			{Name: "n", Type: ir.BasicType("int32"), Size: 4, Align: 4},
		}},
		&ir.Record{Name: "mbedtls_ptr", Size: 8, Align: 8, Fields: []*ir.Field{
			{Name: "p", Type: ir.PointerTo(ir.BasicType("uint8")), Size: 8, Align: 8},
		}},
		&ir.Record{Name: "mbedtls_u", Union: true, Size: 8, Align: 8, Fields: []*ir.Field{
			{Name: "a", Type: ir.BasicType("int64")},
		}},
		&ir.Record{Name: "mbedtls_holds_union", Size: 8, Align: 8, Fields: []*ir.Field{
			{Name: "u", Type: ir.NamedType("mbedtls_u"), Size: 8, Align: 8},
		}},
		&ir.Record{Name: "mbedtls_holds_time", Size: 8, Align: 8, Fields: []*ir.Field{
			{Name: "t", Type: ir.NamedType("mbedtls_time_t"), Size: 8, Align: 8},
		}},
		&ir.Record{Name: "mbedtls_ssl_context", Opaque: true},
	)

	copyOnly := []normalize.Trait{normalize.Copy}
	both := []normalize.Trait{normalize.Copy, normalize.Default}
	defaultOnly := []normalize.Trait{normalize.Default}
	tests := []struct {
		name   string
		derive []normalize.Trait
		manual []normalize.Trait
	}{
		{"plain", both, nil},
		{"ptr", copyOnly, defaultOnly},
		{"u", copyOnly, defaultOnly},
		{"holds_union", copyOnly, defaultOnly},
		{"holds_time", copyOnly, defaultOnly},
		{"ssl_context", copyOnly, nil},
	}
	for _, tt := range tests {
		r := find[*ir.Record](t, f, tt.name)
		if !reflect.DeepEqual(r.Derive, tt.derive) || !reflect.DeepEqual(r.Manual, tt.manual) {
			t.Errorf("%s: Derive = %v, Manual = %v; want %v, %v", tt.name, r.Derive, r.Manual, tt.derive, tt.manual)
		}
	}
}

func TestExtractIdentifiers(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Record{Name: "mbedtls_Symbols", Size: 8, Align: 4, Fields: []*ir.Field{
			{Name: "type", Type: ir.BasicType("int32"), Offset: 0, Size: 4, Align: 4},
			{Name: "range", Type: ir.BasicType("int32"), Offset: 4, Size: 4, Align: 4},
		}},
		&ir.Function{Name: "mbedtls_3des_func", Params: []*ir.Param{{Name: "func", Type: ir.FuncPointer()}}},
	)
	r := find[*ir.Record](t, f, "Symbols_")
	if r.Fields[0].Name != "type_" || r.Fields[1].Name != "range_" {
		t.Fatalf("fields = %q, %q", r.Fields[0].Name, r.Fields[1].Name)
	}
	fn := find[*ir.Function](t, f, "_3des_func")
	if fn.Params[0].Name != "func_" {
		t.Fatalf("param = %q", fn.Params[0].Name)
	}
}

func TestExtractTypedefs(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Record{Name: "mbedtls_mpi", Size: 8, Align: 8},
		&ir.Typedef{Name: "mbedtls_mpi", Target: ir.NamedType("mbedtls_mpi")},
		&ir.Typedef{Name: "mbedtls_mpi_uint", Target: ir.BasicType("uint64")},
	)
	if got, want := names(f), []string{"mpi", "mpi_uint"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %q, want %q", got, want)
	}
}

func TestExtractDuplicates(t *testing.T) {
	f := extract(t, MbedtlsOptions(),
		&ir.Const{Name: "MBEDTLS_X", Int: 1},
		&ir.Const{Name: "mbedtls_X", Int: 2},
		&ir.Enum{Repr: ir.BasicType("int32"), Variants: []*ir.Variant{
			{Name: "MBEDTLS_X", Value: 3},
			{Name: "MBEDTLS_Y", Value: 4},
		}},
	)
	if n := len(f.Decls); n != 2 {
		t.Fatalf("got %d declarations, want 2", n)
	}
	if c := f.Decls[0].(*ir.Const); c.Int != 1 {
		t.Fatalf("kept %d, want the first definition", c.Int)
	}
	vs := f.Decls[1].(*ir.Enum).Variants
	if len(vs) != 1 || vs[0].Name != "Y" {
		t.Fatalf("variants = %+v", vs)
	}
}

func TestExtractParseError(t *testing.T) {
	boom := errors.New("boom")
	x := New(&fakeEngine{err: boom}, normalize.Mbedtls(), MbedtlsOptions(), logger.Discard())
	if _, err := x.Extract(Unit{Name: "bindgen-input.h"}); !errors.Is(err, boom) {
		t.Fatalf("Extract() error = %v, want %v", err, boom)
	}
}

func TestExtractPassesUnit(t *testing.T) {
	e := &fakeEngine{file: &ir.File{}}
	u := Unit{Name: "bindgen-input.h", Contents: "#include <mbedtls/aes.h>\n", Args: []string{"-Iinc"}, Target: "x86_64-unknown-linux-gnu"}
	if _, err := New(e, normalize.Mbedtls(), MbedtlsOptions(), nil).Extract(u); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !reflect.DeepEqual(e.got, u) {
		t.Fatalf("engine got %+v, want %+v", e.got, u)
	}
}
