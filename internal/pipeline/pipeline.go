// Package pipeline runs the generation stages in order: header aggregation,
// compiler flags, sysroot and target resolution, extraction, rendering, shim
// synthesis and output.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"mbedtlsbindgen/internal/emit"
	"mbedtlsbindgen/internal/extract"
	"mbedtlsbindgen/internal/headers"
	"mbedtlsbindgen/internal/ir"
	"mbedtlsbindgen/internal/logger"
	"mbedtlsbindgen/internal/normalize"
	"mbedtlsbindgen/internal/shim"
	"mbedtlsbindgen/internal/toolchain"
)

// Fatal error categories. Every error returned by Run wraps one of them.
var (
	ErrConfig  = errors.New("configuration error")
	ErrExtract = errors.New("extraction error")
	ErrOutput  = errors.New("output error")
)

type Config struct {
	Toolchain toolchain.Config
	Headers   headers.Provider
	Policy    normalize.Policy
	Extract   extract.Options
	Emit      emit.Options
	// Target forces the parse target triple when non-empty.
	Target string
}

// DefaultConfig returns the mbed TLS policy, selection and output layout.
// Headers and the toolchain paths still have to be filled in.
func DefaultConfig() Config {
	return Config{
		Policy:  normalize.Mbedtls(),
		Extract: extract.MbedtlsOptions(),
		Emit:    emit.DefaultOptions(),
	}
}

// Deps are the collaborators that touch the outside world.
type Deps struct {
	Engine extract.Engine
	Sink   emit.Sink
	// Probe and Run default to toolchain.Probe and toolchain.ExecRunner.
	Probe toolchain.Prober
	Run   toolchain.Runner
}

// Result summarizes a run.
type Result struct {
	Headers   int
	Flags     []string
	Decls     int
	Accessors int
}

type Pipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

func New(cfg Config, deps Deps, log *slog.Logger) *Pipeline {
	if deps.Probe == nil {
		deps.Probe = toolchain.Probe
	}
	if deps.Run == nil {
		deps.Run = toolchain.ExecRunner
	}
	if cfg.Policy == nil {
		cfg.Policy = normalize.Mbedtls()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: logger.OrDefault(log)}
}

func (p *Pipeline) Run() (*Result, error) {
	if p.cfg.Headers == nil {
		return nil, fmt.Errorf("%w: no header provider", ErrConfig)
	}
	if p.deps.Engine == nil || p.deps.Sink == nil {
		return nil, fmt.Errorf("%w: engine and sink are required", ErrConfig)
	}

	list, err := p.cfg.Headers.Enabled()
	if err != nil {
		return nil, fmt.Errorf("%w: headers: %w", ErrConfig, err)
	}
	unit := headers.Aggregate(list)
	p.log.Info("aggregated headers", "count", len(list))

	flags, err := p.flags()
	if err != nil {
		return nil, err
	}

	x := extract.New(p.deps.Engine, p.cfg.Policy, p.cfg.Extract, p.log)
	file, err := x.Extract(extract.Unit{
		Name:     headers.UnitName,
		Contents: unit,
		Args:     flags.Args(),
		Target:   p.cfg.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtract, err)
	}

	decls := ir.Render(file)
	shims := shim.Synthesize(file)
	accessors := shim.Count(file)
	p.log.Info("synthesized union accessors", "unions", len(shim.Collect(file)), "accessors", accessors)

	e := emit.New(p.deps.Sink, p.cfg.Emit, p.log)
	if err := e.Emit(decls, shims, hasSymbols(file)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutput, err)
	}

	return &Result{
		Headers:   len(list),
		Flags:     flags.Args(),
		Decls:     len(file.Decls),
		Accessors: accessors,
	}, nil
}

// flags builds the parse arguments: configuration flags, host includes,
// sysroot, then the target override.
func (p *Pipeline) flags() (*toolchain.FlagSet, error) {
	tc := p.cfg.Toolchain
	flags, err := toolchain.Flags(tc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	cmd := tc.CompilerCommand()
	compiler, err := p.deps.Probe(cmd, flags.Args())
	if err != nil {
		p.log.Warn("compiler probe failed", "compiler", cmd, "err", err)
		compiler = toolchain.Compiler{Command: cmd}
	}
	p.log.Debug("compiler", "command", compiler.Command, "family", compiler.Family.String())

	if tc.HostIncludes {
		flags.Add(toolchain.HostIncludeFlags(compiler)...)
	}
	if err := toolchain.ResolveSysroot(compiler, flags, p.deps.Run, p.log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if p.cfg.Target != "" {
		flags.Add(toolchain.TargetFlag(p.cfg.Target))
		p.log.Info("target override", "target", p.cfg.Target)
	}

	p.log.Debug("clang flags", "flags", flags.String())
	return flags, nil
}

func hasSymbols(f *ir.File) bool {
	found := false
	ir.Inspect(f, func(n ir.Node) bool {
		switch n.(type) {
		case *ir.File:
			return true
		case *ir.Function, *ir.Var:
			found = true
		}
		return false
	})
	return found
}
