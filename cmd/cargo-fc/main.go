// main.go bootstraps cargo-fc: it builds the root Cobra command, wires
// viper-backed flag defaults, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/example/cargofc/internal/cargometa"
	"github.com/example/cargofc/internal/fcconfig"
	"github.com/example/cargofc/internal/history"
	"github.com/example/cargofc/internal/logging"
	"github.com/example/cargofc/internal/runner"
)

var validBools = []string{"yes", "true", "y", "t"}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !isTerminalWriter(os.Stdout) {
		color.NoColor = true
	}

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

type cliOptions struct {
	manifestPath    string
	packages        []string
	excludePackages []string
	workspaceConfig string
	silent          bool
	verbose         bool
	pedantic        bool
	errorsOnly      bool
	failFast        bool
	packagesOnly    bool
	historyPath     string
	logLevel        string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{logLevel: "info"}
	cmd := &cobra.Command{
		Use:           "cargo-fc [OPTIONS] [CARGO_OPTIONS] [CARGO_SUBCOMMAND] [-- EXTRA_ARGS]",
		Short:         "Run cargo commands for all feature combinations",
		Long: "cargo-fc drives cargo across every relevant combination of a package's\n" +
			"optional features, so flag-interaction bugs surface that a single default\n" +
			"build would miss.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombinations(cmd, restoreDash(cmd, args), opts)
		},
	}
	cmd.Flags().SetInterspersed(false)
	bindSelectionFlags(cmd.PersistentFlags(), opts)
	bindRunFlags(cmd.Flags(), opts)

	matrixCmd := newMatrixCommand(opts)
	cmd.AddCommand(matrixCmd)
	cmd.Example = `  # Check every feature combination of the current workspace
  cargo-fc check

  # Treat warnings as failures and stop at the first bad combination
  cargo-fc --pedantic --fail-fast test

  # Print the CI matrix as pretty JSON
  cargo-fc matrix --pretty`
	bindViper(cmd, matrixCmd)
	return cmd
}

// bindSelectionFlags covers the flags shared with the matrix subcommand:
// which workspace to load and which packages to keep.
func bindSelectionFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.manifestPath, "manifest-path", "", "Path to the Cargo.toml manifest to operate on")
	fs.StringArrayVarP(&opts.packages, "package", "p", nil, "Only run for the named package (repeatable)")
	fs.StringArrayVar(&opts.excludePackages, "exclude-package", nil, "Skip the named package entirely (repeatable)")
	fs.StringVar(&opts.workspaceConfig, "workspace-config", "", "Additional workspace configuration YAML file")
	fs.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level for cargo-fc diagnostics (debug, info, warn, error)")
}

func bindRunFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.BoolVar(&opts.silent, "silent", false, "Hide cargo output and only show the summary")
	fs.BoolVar(&opts.verbose, "verbose", false, "Show the full cargo command line per combination")
	fs.BoolVar(&opts.pedantic, "pedantic", false, "Treat warnings like errors in the summary and with --fail-fast")
	fs.BoolVar(&opts.errorsOnly, "errors-only", false, "Suppress rustc warning emission in the spawned builds")
	fs.BoolVar(&opts.failFast, "fail-fast", false, "Abort on the first bad feature combination")
	fs.BoolVar(&opts.packagesOnly, "packages-only", false, "Print the selected package names and exit")
	fs.StringVar(&opts.historyPath, "history", "", "Record run outcomes into the given SQLite database")
}

// restoreDash re-inserts the literal "--" separator that pflag strips, so
// everything after it reaches the build tool unmodified.
func restoreDash(cmd *cobra.Command, args []string) []string {
	i := cmd.ArgsLenAtDash()
	if i < 0 {
		return args
	}
	out := slices.Clone(args[:i])
	out = append(out, "--")
	return append(out, args[i:]...)
}

func runCombinations(cmd *cobra.Command, cargoArgs []string, opts *cliOptions) error {
	log, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	packages, configs, err := selectPackages(cmd.Context(), opts, log)
	if err != nil {
		return err
	}
	if opts.packagesOnly {
		for _, pkg := range packages {
			fmt.Fprintln(cmd.OutOrStdout(), pkg.Name)
		}
		return nil
	}

	runOpts := runner.Options{
		Silent:     opts.silent,
		Verbose:    opts.verbose || boolishEnv("VERBOSE"),
		Pedantic:   opts.pedantic,
		ErrorsOnly: opts.errorsOnly,
		FailFast:   opts.failFast,
		Log:        log,
	}
	if raw := os.Getenv("CARGO_FC_ARGS"); strings.TrimSpace(raw) != "" {
		extra, err := shellwords.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse CARGO_FC_ARGS: %w", err)
		}
		runOpts.ExtraArgs = extra
	}
	if opts.historyPath != "" {
		rec, err := history.Open(opts.historyPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		runOpts.History = rec
	}
	return runner.Run(cmd.Context(), packages, configs, cargoArgs, runOpts)
}

// selectPackages loads the workspace, resolves every configuration
// document, and applies the package include and exclude filters.
func selectPackages(ctx context.Context, opts *cliOptions, log *zap.SugaredLogger) ([]cargometa.Package, map[string]fcconfig.Config, error) {
	ws, err := cargometa.Load(ctx, opts.manifestPath)
	if err != nil {
		return nil, nil, err
	}
	resolver := fcconfig.Resolver{Log: log}
	wsCfg, err := resolver.ResolveWorkspace(ws.Config)
	if err != nil {
		return nil, nil, err
	}
	if opts.workspaceConfig != "" {
		wsCfg, err = resolver.LoadWorkspaceFile(opts.workspaceConfig, wsCfg)
		if err != nil {
			return nil, nil, err
		}
	}

	configs := make(map[string]fcconfig.Config, len(ws.Packages))
	for _, pkg := range ws.Packages {
		cfg, err := resolver.Resolve(pkg.Config, pkg.Name)
		if err != nil {
			return nil, nil, err
		}
		configs[pkg.Name] = fcconfig.MergeWorkspace(wsCfg, cfg)
	}

	excluded := make(map[string]struct{})
	for _, name := range wsCfg.ExcludePackages {
		excluded[name] = struct{}{}
	}
	for _, name := range opts.excludePackages {
		excluded[name] = struct{}{}
	}
	for _, pkg := range ws.Packages {
		pkgExcludes := configs[pkg.Name].ExcludePackages
		if len(pkgExcludes) == 0 {
			continue
		}
		if pkg.Name != ws.Root {
			log.Warnf("exclude_packages on non-root package %s has no effect", pkg.Name)
			continue
		}
		for _, name := range pkgExcludes {
			excluded[name] = struct{}{}
		}
	}

	include := make(map[string]struct{}, len(opts.packages))
	for _, name := range opts.packages {
		include[name] = struct{}{}
	}

	packages := make([]cargometa.Package, 0, len(ws.Packages))
	for _, pkg := range ws.Packages {
		if _, ok := excluded[pkg.Name]; ok {
			continue
		}
		if len(include) > 0 {
			if _, ok := include[pkg.Name]; !ok {
				continue
			}
		}
		packages = append(packages, pkg)
	}
	return packages, configs, nil
}

func boolishEnv(name string) bool {
	return slices.Contains(validBools, strings.ToLower(strings.TrimSpace(os.Getenv(name))))
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("CARGO_FC")
	v.AutomaticEnv()
	configFile := os.Getenv("CARGO_FC_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				if err := v.BindPFlags(fs); err != nil {
					cobra.CheckErr(err)
				}
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		override := func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
				_ = f.Value.Set(val)
			}
		}
		for _, cmd := range commands {
			cmd.Flags().VisitAll(override)
			cmd.PersistentFlags().VisitAll(override)
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "cargo-fc"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "cargo-fc"))
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		// the summary already told the story
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
}

func isTerminalWriter(w any) bool {
	type fdProvider interface {
		Fd() uintptr
	}
	if v, ok := w.(fdProvider); ok {
		return term.IsTerminal(int(v.Fd()))
	}
	return false
}
