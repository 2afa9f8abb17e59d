package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mbedtlsbindgen/internal/clangparse"
	"mbedtlsbindgen/internal/config"
	"mbedtlsbindgen/internal/emit"
	"mbedtlsbindgen/internal/headers"
	"mbedtlsbindgen/internal/logger"
	"mbedtlsbindgen/internal/pipeline"
)

type options struct {
	configFile string
	envFiles   []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	opts := &options{}

	root := &cobra.Command{
		Use:           "mbedtlsbindgen",
		Short:         "Generate Go declarations for the mbed TLS C headers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./mbedtlsbindgen.yaml if present)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "env files loaded before reading the environment")

	root.AddCommand(newGenerateCommand(v, opts), newUnitCommand(v, opts))
	return root
}

var flagKeys = map[string]string{
	"cc":                config.KeyCompiler,
	"cflags":            config.KeyCFlags,
	"include":           config.KeyIncludeDir,
	"config-h":          config.KeyConfigHeader,
	"out-dir":           config.KeyOutDir,
	"headers":           config.KeyHeaders,
	"headers-file":      config.KeyHeadersFile,
	"host-includes":     config.KeyHostIncludes,
	"substitute-target": config.KeyTarget,
	"package":           config.KeyPackage,
	"types-import":      config.KeyTypesImport,
	"bindings-import":   config.KeyBindingsImport,
	"wrapper-package":   config.KeyWrapperPackage,
	"bindings-file":     config.KeyBindingsFile,
	"wrapper-file":      config.KeyWrapperFile,
	"log-level":         config.KeyLogLevel,
	"log-format":        config.KeyLogFormat,
}

func defineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cc", "", "C compiler (CC)")
	f.StringSlice("cflags", nil, "extra compiler flags (CFLAGS)")
	f.String("include", "", "mbed TLS include directory (MBEDTLS_INCLUDE)")
	f.String("config-h", "", "mbed TLS configuration header (MBEDTLS_CONFIG_H)")
	f.String("out-dir", "", "output directory (OUT_DIR)")
	f.StringSlice("headers", nil, "enabled headers, in include order")
	f.String("headers-file", "", "YAML file listing the enabled headers")
	f.Bool("host-includes", false, "pass the host compiler's system include directories to clang")
	f.Bool("substitute-target", false, "parse for the substitute target, as when MBEDTLS_BINDGEN_TARGET is set")
	f.String("package", "", "package of the bindings file")
	f.String("types-import", "", "import path of the platform types package")
	f.String("bindings-import", "", "import path of the bindings package")
	f.String("wrapper-package", "", "package of the wrapper file")
	f.String("bindings-file", "", "bindings file path, relative to the output directory")
	f.String("wrapper-file", "", "wrapper file path, relative to the output directory")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "text or json")
}

// bindFlags binds the running command's flags; a flag only overrides the
// environment and config file when it is given.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

func load(cmd *cobra.Command, v *viper.Viper, opts *options) (config.Config, error) {
	if err := bindFlags(cmd, v); err != nil {
		return config.Config{}, err
	}
	userEnv := len(opts.envFiles) != 1 || opts.envFiles[0] != ".env"
	if err := config.LoadEnvFiles(opts.envFiles, userEnv); err != nil {
		return config.Config{}, err
	}
	if err := config.ReadFile(v, opts.configFile); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func newGenerateCommand(v *viper.Viper, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Parse the enabled headers and write bindings.go and mod_bindings.go",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd, v, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			lc, err := cfg.Logger()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			log, err := logger.Init(lc)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}

			p := pipeline.New(cfg.Pipeline(), pipeline.Deps{
				Engine: clangparse.New(log),
				Sink:   emit.DirSink{Dir: cfg.OutDir},
			}, log)
			res, err := p.Run()
			if err != nil {
				log.Error("generation failed", "err", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated bindings: %s\n", filepath.Join(cfg.OutDir, cfg.Emit.BindingsFile))
			fmt.Fprintf(cmd.OutOrStdout(), "Headers: %d\n", res.Headers)
			fmt.Fprintf(cmd.OutOrStdout(), "Declarations: %d\n", res.Decls)
			fmt.Fprintf(cmd.OutOrStdout(), "Union accessors: %d\n", res.Accessors)
			return nil
		},
	}
	defineFlags(cmd)
	return cmd
}

func newUnitCommand(v *viper.Viper, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Print the virtual header unit handed to the parser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd, v, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			list, err := cfg.HeaderProvider().Enabled()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), headers.Aggregate(list))
			return nil
		},
	}
	defineFlags(cmd)
	return cmd
}
