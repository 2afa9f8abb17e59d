package toolchain

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// Runner runs a command and returns its standard output.
type Runner func(name string, args ...string) ([]byte, error)

// ExecRunner runs the command synchronously with os/exec.
func ExecRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// TrimLineEnding strips one trailing "\r\n" or, failing that, one "\n".
func TrimLineEnding(s string) string {
	if t, ok := strings.CutSuffix(s, "\r\n"); ok {
		return t
	}
	if t, ok := strings.CutSuffix(s, "\n"); ok {
		return t
	}
	return s
}

// ResolveSysroot asks a GNU compiler for its sysroot and appends --sysroot to
// flags. Other families, launch failures and empty answers leave flags
// untouched. Output that is not valid UTF-8 is an error.
func ResolveSysroot(c Compiler, flags *FlagSet, run Runner, log *slog.Logger) error {
	if !c.IsLikeGNU() {
		log.Debug("sysroot query skipped", "compiler", c.Command, "family", c.Family.String())
		return nil
	}

	out, err := run(c.Command, append(flags.Args(), "--print-sysroot")...)
	if err != nil {
		log.Debug("sysroot query failed", "compiler", c.Command, "err", err)
		return nil
	}
	if !utf8.Valid(out) {
		return fmt.Errorf("%w: malformed sysroot reported by %s", ErrConfig, c.Command)
	}

	path := TrimLineEnding(string(out))
	if path == "" {
		log.Debug("compiler has no configured sysroot", "compiler", c.Command)
		return nil
	}
	flags.Add("--sysroot=" + path)
	log.Debug("sysroot resolved", "sysroot", path)
	return nil
}
