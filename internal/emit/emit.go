// Package emit assembles and writes the generated binding files.
package emit

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"mbedtlsbindgen/internal/logger"
)

const generatedHeader = "// Code generated by mbedtlsbindgen. DO NOT EDIT.\n\n"

// ErrFormat reports generated source that does not parse.
var ErrFormat = errors.New("generated source is not valid Go")

type Options struct {
	// Package is the package of the bindings file.
	Package string
	// TypesImport is dot-imported so platform types such as FILE and
	// time_t resolve. Empty disables the import, as does an empty body.
	TypesImport string
	// BindingsImport is the import path of Package, used by the wrapper.
	BindingsImport string
	// WrapperPackage is the package of the wrapper file.
	WrapperPackage string

	BindingsFile string
	WrapperFile  string
}

func DefaultOptions() Options {
	return Options{
		Package:        "bindings",
		TypesImport:    "mbedtls/types",
		BindingsImport: "mbedtls/bindings",
		WrapperPackage: "mbedtls",
		BindingsFile:   "bindings/bindings.go",
		WrapperFile:    "mod_bindings.go",
	}
}

func (o Options) validate() error {
	switch {
	case o.Package == "":
		return errors.New("bindings package name is empty")
	case o.WrapperPackage == "":
		return errors.New("wrapper package name is empty")
	case o.BindingsImport == "":
		return errors.New("bindings import path is empty")
	case o.BindingsFile == "" || o.WrapperFile == "":
		return errors.New("output file name is empty")
	}
	return nil
}

// Assemble joins the package clause, the types import, the declarations and
// the shims, and formats the result.
func Assemble(opts Options, decls, shims string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(generatedHeader)
	fmt.Fprintf(&buf, "package %s\n\n", opts.Package)

	var imps []string
	body := decls + shims
	if opts.TypesImport != "" && strings.TrimSpace(body) != "" {
		imps = append(imps, ". "+strconv.Quote(opts.TypesImport))
	}
	if strings.Contains(body, "fmt.") {
		imps = append(imps, strconv.Quote("fmt"))
	}
	if strings.Contains(body, "unsafe.") {
		imps = append(imps, strconv.Quote("unsafe"))
	}
	if len(imps) > 0 {
		buf.WriteString("import (\n")
		for _, imp := range imps {
			buf.WriteString("\t" + imp + "\n")
		}
		buf.WriteString(")\n\n")
	}

	buf.WriteString(decls)
	buf.WriteString(shims)
	return format(opts.BindingsFile, buf.Bytes())
}

// Wrapper returns the file that re-exports the bindings package. The symbol
// table is re-exported when the bindings declare one.
func Wrapper(opts Options, hasSymbols bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(generatedHeader)
	fmt.Fprintf(&buf, "package %s\n\n", opts.WrapperPackage)
	if !hasSymbols {
		fmt.Fprintf(&buf, "import _ %s\n", strconv.Quote(opts.BindingsImport))
		return format(opts.WrapperFile, buf.Bytes())
	}
	fmt.Fprintf(&buf, "import %s %s\n\n", opts.Package, strconv.Quote(opts.BindingsImport))
	buf.WriteString("// Symbols lists the library symbols of the bindings package.\n")
	fmt.Fprintf(&buf, "var Symbols = %s.Symbols\n", opts.Package)
	return format(opts.WrapperFile, buf.Bytes())
}

func format(name string, src []byte) ([]byte, error) {
	out, err := imports.Process(path.Base(name), src, &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
	}
	return out, nil
}

// Emitter writes both artifacts to a sink.
type Emitter struct {
	sink Sink
	opts Options
	log  *slog.Logger
}

func New(sink Sink, opts Options, log *slog.Logger) *Emitter {
	return &Emitter{sink: sink, opts: opts, log: logger.OrDefault(log)}
}

// Emit formats and writes the bindings file, then the wrapper. Nothing is
// written if either file fails to format.
func (e *Emitter) Emit(decls, shims string, hasSymbols bool) error {
	if err := e.opts.validate(); err != nil {
		return fmt.Errorf("emit options: %w", err)
	}

	bindings, err := Assemble(e.opts, decls, shims)
	if err != nil {
		return err
	}
	wrapper, err := Wrapper(e.opts, hasSymbols)
	if err != nil {
		return err
	}

	if err := e.sink.WriteFile(e.opts.BindingsFile, bindings); err != nil {
		return err
	}
	e.log.Info("wrote bindings", "file", e.opts.BindingsFile, "bytes", len(bindings))

	if err := e.sink.WriteFile(e.opts.WrapperFile, wrapper); err != nil {
		return err
	}
	e.log.Info("wrote wrapper", "file", e.opts.WrapperFile, "bytes", len(wrapper))
	return nil
}
