// Package clangparse reads declarations out of a header unit with libclang.
package clangparse

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-clang/clang-v13/clang"

	"mbedtlsbindgen/internal/extract"
	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/logger"
)

var (
	// ErrParse reports that libclang could not create a translation unit.
	ErrParse = errors.New("clang parse failed")
	// ErrDiagnostics reports error or fatal diagnostics in the unit.
	ErrDiagnostics = errors.New("clang reported errors")
)

// Engine is an extract.Engine backed by libclang.
type Engine struct {
	log *slog.Logger
}

var _ extract.Engine = (*Engine)(nil)

func New(log *slog.Logger) *Engine {
	return &Engine{log: logger.OrDefault(log)}
}

// Parse parses u as an unsaved file. Function bodies are skipped and the
// detailed preprocessing record is kept so macros can be read back.
func (e *Engine) Parse(u extract.Unit) (*ir.File, error) {
	args := append([]string(nil), u.Args...)
	if u.Target != "" && !hasTarget(args) {
		args = append(args, "--target="+u.Target)
	}
	e.log.Debug("clang arguments", "unit", u.Name, "args", strings.Join(args, " "))

	idx := clang.NewIndex(0, 0)
	defer idx.Dispose()

	var tu clang.TranslationUnit
	unsaved := []clang.UnsavedFile{clang.NewUnsavedFile(u.Name, u.Contents)}
	opts := uint32(clang.TranslationUnit_DetailedPreprocessingRecord | clang.TranslationUnit_SkipFunctionBodies)
	if code := idx.ParseTranslationUnit2(u.Name, args, unsaved, opts, &tu); code != clang.Error_Success {
		return nil, fmt.Errorf("%w: %s: error code %d", ErrParse, u.Name, int(code))
	}
	defer tu.Dispose()

	if err := checkDiagnostics(tu); err != nil {
		return nil, err
	}

	p := newParser(tu, e.log)
	p.walk(tu.TranslationUnitCursor())
	e.log.Debug("clang declarations", "count", p.decls.Len())
	return &ir.File{Decls: p.decls.Values()}, nil
}

func hasTarget(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "--target=") {
			return true
		}
	}
	return false
}

func checkDiagnostics(tu clang.TranslationUnit) error {
	var msgs []string
	for _, d := range tu.Diagnostics() {
		if sev := d.Severity(); sev == clang.Diagnostic_Error || sev == clang.Diagnostic_Fatal {
			msgs = append(msgs, d.Spelling())
		}
		d.Dispose()
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrDiagnostics, strings.Join(msgs, "; "))
	}
	return nil
}
