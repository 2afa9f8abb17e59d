// Package toolchain derives the compiler arguments the header parser needs:
// include paths and defines, the sysroot of GNU toolchains and an optional
// target triple override.
package toolchain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ConfigDefine names the define that points mbed TLS at its configuration header.
const ConfigDefine = "MBEDTLS_CONFIG_FILE"

// ErrConfig marks unusable toolchain configuration.
var ErrConfig = errors.New("invalid toolchain configuration")

// Config is the toolchain configuration the build would compile the library with.
type Config struct {
	// Compiler is the C compiler command, "cc" when empty.
	Compiler string
	// IncludeDir is the library's include directory.
	IncludeDir string
	// ConfigHeader is the library configuration header.
	ConfigHeader string
	// CFlags are appended after the generated flags, in order.
	CFlags []string
	// HostIncludes adds the compiler's system include directories as -isystem flags.
	HostIncludes bool
}

// CompilerCommand returns the compiler to invoke.
func (c Config) CompilerCommand() string {
	if c.Compiler == "" {
		return "cc"
	}
	return c.Compiler
}

// FlagSet is an ordered list of opaque compiler arguments.
type FlagSet struct {
	args []string
}

// Add appends tokens in order.
func (f *FlagSet) Add(tokens ...string) {
	f.args = append(f.args, tokens...)
}

// Args returns a copy of the arguments.
func (f *FlagSet) Args() []string {
	out := make([]string, len(f.args))
	copy(out, f.args)
	return out
}

func (f *FlagSet) Len() int { return len(f.args) }

func (f *FlagSet) String() string { return strings.Join(f.args, " ") }

// Flags seeds a FlagSet from cfg: the include directory, the configuration
// header define, then the caller's flags.
func Flags(cfg Config) (*FlagSet, error) {
	if cfg.IncludeDir == "" {
		return nil, fmt.Errorf("%w: include directory is not set", ErrConfig)
	}
	if cfg.ConfigHeader == "" {
		return nil, fmt.Errorf("%w: configuration header is not set", ErrConfig)
	}
	if !utf8.ValidString(cfg.ConfigHeader) {
		return nil, fmt.Errorf("%w: configuration header path %q is not valid UTF-8", ErrConfig, cfg.ConfigHeader)
	}

	f := &FlagSet{}
	f.Add("-I" + cfg.IncludeDir)
	f.Add(fmt.Sprintf("-D%s=\"%s\"", ConfigDefine, cfg.ConfigHeader))
	f.Add(cfg.CFlags...)
	return f, nil
}
