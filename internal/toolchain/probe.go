package toolchain

import (
	"fmt"
	"strings"

	"modernc.org/cc/v3"
)

// Family is the compiler family, as told by its predefined macros.
type Family int

const (
	Unknown Family = iota
	GNU
	Clang
	MSVC
)

func (f Family) String() string {
	switch f {
	case GNU:
		return "gnu"
	case Clang:
		return "clang"
	case MSVC:
		return "msvc"
	}
	return "unknown"
}

// Compiler is a probed C compiler.
type Compiler struct {
	Command     string
	Family      Family
	SysIncludes []string
}

// IsLikeGNU reports whether the compiler understands GCC-only driver queries
// such as --print-sysroot.
func (c Compiler) IsLikeGNU() bool { return c.Family == GNU }

// Prober probes a compiler invoked with args.
type Prober func(command string, args []string) (Compiler, error)

// Probe runs the compiler as a preprocessor to read its predefined macros and
// system include directories.
func Probe(command string, args []string) (Compiler, error) {
	opts := append([]string{"-E"}, args...)
	predefined, _, sysIncludes, err := cc.HostConfig(command, opts...)
	if err != nil {
		return Compiler{Command: command}, fmt.Errorf("probe %s: %w", command, err)
	}
	return Compiler{
		Command:     command,
		Family:      Classify(predefined),
		SysIncludes: sysIncludes,
	}, nil
}

// Classify picks the family from "#define NAME VALUE" lines.
func Classify(predefined string) Family {
	defined := map[string]bool{}
	for _, line := range strings.Split(predefined, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "#define" {
			defined[fields[1]] = true
		}
	}

	switch {
	case defined["_MSC_VER"]:
		return MSVC
	case defined["__clang__"]:
		return Clang
	case defined["__GNUC__"]:
		return GNU
	}
	return Unknown
}

// HostIncludeFlags returns -isystem flags for the compiler's system include directories.
func HostIncludeFlags(c Compiler) []string {
	var flags []string
	for _, dir := range c.SysIncludes {
		if dir == "" {
			continue
		}
		flags = append(flags, "-isystem", dir)
	}
	return flags
}
