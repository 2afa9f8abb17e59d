package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mbedtlsbindgen/internal/headers"
	"mbedtlsbindgen/internal/pipeline"
	"mbedtlsbindgen/internal/toolchain"
)

// clearEnv unsets names for the duration of the test.
func clearEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		t.Setenv(n, "")
		os.Unsetenv(n)
	}
}

var buildVars = []string{"CC", "CFLAGS", "MBEDTLS_INCLUDE", "MBEDTLS_CONFIG_H", "OUT_DIR", toolchain.TargetEnv, "MBEDTLS_BINDGEN_HEADERS"}

func TestLoadBuildEnvironment(t *testing.T) {
	clearEnv(t, buildVars...)
	t.Setenv("CC", "arm-none-eabi-gcc")
	t.Setenv("CFLAGS", "-O2 -mthumb")
	t.Setenv("MBEDTLS_INCLUDE", "/src/mbedtls/include")
	t.Setenv("MBEDTLS_CONFIG_H", "/out/config.h")
	t.Setenv("OUT_DIR", "/out")
	t.Setenv("MBEDTLS_BINDGEN_HEADERS", "aes.h bignum.h")

	c, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := toolchain.Config{
		Compiler:     "arm-none-eabi-gcc",
		IncludeDir:   "/src/mbedtls/include",
		ConfigHeader: "/out/config.h",
		CFlags:       []string{"-O2", "-mthumb"},
	}
	if !reflect.DeepEqual(c.Toolchain, want) {
		t.Fatalf("Toolchain = %+v, want %+v", c.Toolchain, want)
	}
	if c.OutDir != "/out" {
		t.Fatalf("OutDir = %q", c.OutDir)
	}
	if got, _ := c.HeaderProvider().Enabled(); !reflect.DeepEqual(got, []string{"aes.h", "bignum.h"}) {
		t.Fatalf("headers = %q", got)
	}
	if c.Target != "" {
		t.Fatalf("Target = %q without %s", c.Target, toolchain.TargetEnv)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, buildVars...)
	c, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Toolchain.Compiler != "cc" || c.OutDir != "." {
		t.Fatalf("defaults = %+v", c)
	}
	if c.Emit.BindingsFile != "bindings/bindings.go" || c.Emit.WrapperFile != "mod_bindings.go" {
		t.Fatalf("emit defaults = %+v", c.Emit)
	}
}

func TestLoadTarget(t *testing.T) {
	for _, value := range []string{"riscv32imc-unknown-none-elf", "aarch64-unknown-custom-os", "1", ""} {
		t.Run(value, func(t *testing.T) {
			t.Setenv(toolchain.TargetEnv, value)
			c, err := Load(New())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if c.Target != toolchain.SubstituteTarget {
				t.Fatalf("Target = %q, want %q", c.Target, toolchain.SubstituteTarget)
			}
			if got := c.Pipeline().Target; got != toolchain.SubstituteTarget {
				t.Fatalf("Pipeline().Target = %q", got)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	clearEnv(t, buildVars...)
	dir := t.TempDir()
	path := filepath.Join(dir, "mbedtlsbindgen.yaml")
	data := "mbedtls_include: /inc\nmbedtls_config_h: /cfg.h\nheaders_file: headers.yaml\nhost_includes: true\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	c, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Toolchain.IncludeDir != "/inc" || !c.Toolchain.HostIncludes {
		t.Fatalf("Toolchain = %+v", c.Toolchain)
	}
	if p, ok := c.HeaderProvider().(headers.FileProvider); !ok || p.Path != "headers.yaml" {
		t.Fatalf("HeaderProvider() = %#v", c.HeaderProvider())
	}
	lc, err := c.Logger()
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}
	if lc.Level != slog.LevelDebug {
		t.Fatalf("Level = %v", lc.Level)
	}
}

func TestReadFileMissing(t *testing.T) {
	if err := ReadFile(New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("ReadFile() error = nil for a missing explicit file")
	}
}

func TestLoadConflictingHeaders(t *testing.T) {
	v := New()
	v.Set(KeyHeaders, []string{"aes.h"})
	v.Set(KeyHeadersFile, "headers.yaml")
	if _, err := Load(v); !errors.Is(err, pipeline.ErrConfig) {
		t.Fatalf("Load() error = %v, want ErrConfig", err)
	}
}

func TestLoggerBadLevel(t *testing.T) {
	c := Config{LogLevel: "loud"}
	if _, err := c.Logger(); !errors.Is(err, pipeline.ErrConfig) {
		t.Fatalf("Logger() error = %v, want ErrConfig", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MBEDTLS_INCLUDE=/from/dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t, "MBEDTLS_INCLUDE")

	if err := LoadEnvFiles([]string{path, filepath.Join(dir, "missing.env")}, false); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("MBEDTLS_INCLUDE"); got != "/from/dotenv" {
		t.Fatalf("MBEDTLS_INCLUDE = %q", got)
	}
	if err := LoadEnvFiles([]string{filepath.Join(dir, "missing.env")}, true); err == nil {
		t.Fatal("LoadEnvFiles() error = nil for a required missing file")
	}
}
