// Package config loads generator settings from flags, environment, an
// optional config file and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mbedtlsbindgen/internal/emit"
	"mbedtlsbindgen/internal/headers"
	"mbedtlsbindgen/internal/logger"
	"mbedtlsbindgen/internal/pipeline"
	"mbedtlsbindgen/internal/toolchain"
)

// Setting keys.
const (
	KeyCompiler       = "cc"
	KeyCFlags         = "cflags"
	KeyIncludeDir     = "mbedtls_include"
	KeyConfigHeader   = "mbedtls_config_h"
	KeyOutDir         = "out_dir"
	KeyTarget         = "target"
	KeyHeaders        = "headers"
	KeyHeadersFile    = "headers_file"
	KeyHostIncludes   = "host_includes"
	KeyPackage        = "package"
	KeyTypesImport    = "types_import"
	KeyBindingsImport = "bindings_import"
	KeyWrapperPackage = "wrapper_package"
	KeyBindingsFile   = "bindings_file"
	KeyWrapperFile    = "wrapper_file"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

// EnvPrefix prefixes the variables of settings that have no build variable.
const EnvPrefix = "MBEDTLS_BINDGEN"

// FileName is the config file looked up in the working directory.
const FileName = "mbedtlsbindgen"

// The build environment a C build step would read.
var buildEnv = map[string]string{
	KeyCompiler:     "CC",
	KeyCFlags:       "CFLAGS",
	KeyIncludeDir:   "MBEDTLS_INCLUDE",
	KeyConfigHeader: "MBEDTLS_CONFIG_H",
	KeyOutDir:       "OUT_DIR",
	KeyTarget:       toolchain.TargetEnv,
}

type Config struct {
	Toolchain toolchain.Config
	OutDir    string

	Headers     []string
	HeadersFile string

	// Target is the forced parse target, empty without an override.
	Target string

	Emit emit.Options

	LogLevel  string
	LogFormat string
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	for key, env := range buildEnv {
		_ = v.BindEnv(key, env)
	}

	d := emit.DefaultOptions()
	v.SetDefault(KeyCompiler, "cc")
	v.SetDefault(KeyOutDir, ".")
	v.SetDefault(KeyPackage, d.Package)
	v.SetDefault(KeyTypesImport, d.TypesImport)
	v.SetDefault(KeyBindingsImport, d.BindingsImport)
	v.SetDefault(KeyWrapperPackage, d.WrapperPackage)
	v.SetDefault(KeyBindingsFile, d.BindingsFile)
	v.SetDefault(KeyWrapperFile, d.WrapperFile)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables already set. Missing files are skipped unless required.
func LoadEnvFiles(files []string, required bool) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !required && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ReadFile reads path, or the default config file when path is empty. A
// missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads every setting from v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Toolchain: toolchain.Config{
			Compiler:     v.GetString(KeyCompiler),
			IncludeDir:   v.GetString(KeyIncludeDir),
			ConfigHeader: v.GetString(KeyConfigHeader),
			CFlags:       v.GetStringSlice(KeyCFlags),
			HostIncludes: v.GetBool(KeyHostIncludes),
		},
		OutDir:      v.GetString(KeyOutDir),
		Headers:     v.GetStringSlice(KeyHeaders),
		HeadersFile: v.GetString(KeyHeadersFile),
		Emit: emit.Options{
			Package:        v.GetString(KeyPackage),
			TypesImport:    v.GetString(KeyTypesImport),
			BindingsImport: v.GetString(KeyBindingsImport),
			WrapperPackage: v.GetString(KeyWrapperPackage),
			BindingsFile:   v.GetString(KeyBindingsFile),
			WrapperFile:    v.GetString(KeyWrapperFile),
		},
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}

	c.Target, _ = toolchain.TargetOverride(func(string) (string, bool) {
		return v.GetString(KeyTarget), v.IsSet(KeyTarget)
	})

	if c.OutDir == "" {
		return c, fmt.Errorf("%w: output directory is not set", pipeline.ErrConfig)
	}
	if len(c.Headers) > 0 && c.HeadersFile != "" {
		return c, fmt.Errorf("%w: both %s and %s are set", pipeline.ErrConfig, KeyHeaders, KeyHeadersFile)
	}
	return c, nil
}

// HeaderProvider returns the provider for the configured header list.
func (c Config) HeaderProvider() headers.Provider {
	if c.HeadersFile != "" {
		return headers.FileProvider{Path: c.HeadersFile}
	}
	return headers.Static(c.Headers)
}

// Pipeline returns the pipeline configuration for c.
func (c Config) Pipeline() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Toolchain = c.Toolchain
	pc.Headers = c.HeaderProvider()
	pc.Emit = c.Emit
	pc.Target = c.Target
	return pc
}

// Logger returns the logger configuration for c.
func (c Config) Logger() (logger.Config, error) {
	lc := logger.DefaultConfig()
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return lc, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}
	lc.Level = level
	lc.Format = c.LogFormat
	return lc, nil
}
