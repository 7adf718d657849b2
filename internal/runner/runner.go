// Package runner drives the build tool across every generated feature
// combination, teeing its diagnostic stream and classifying each run.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/cargofc/internal/cargometa"
	"github.com/example/cargofc/internal/combinations"
	"github.com/example/cargofc/internal/fcconfig"
	"github.com/example/cargofc/internal/featureset"
	"github.com/example/cargofc/internal/history"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	failColor    = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
	passColor    = color.New(color.FgGreen, color.Bold).SprintFunc()
)

// Options configures a Run invocation.
type Options struct {
	Silent     bool
	Verbose    bool
	Pedantic   bool
	ErrorsOnly bool
	FailFast   bool

	// CargoPath overrides the build tool executable. Empty falls back to
	// the CARGO environment variable, then "cargo".
	CargoPath string

	// ExtraArgs holds additional build tool arguments (typically from the
	// CARGO_FC_ARGS environment variable), appended after the generated
	// feature flags.
	ExtraArgs []string

	// History, when non-nil, records every outcome.
	History *history.Recorder

	Stdout io.Writer
	Stderr io.Writer
	Log    *zap.SugaredLogger
}

func (o *Options) setDefaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.CargoPath == "" {
		o.CargoPath = cargometa.CargoPath()
	}
}

func (o *Options) warnf(format string, args ...any) {
	if o.Log != nil {
		o.Log.Warnf(format, args...)
		return
	}
	fmt.Fprintf(o.Stderr, "warning: "+format+"\n", args...)
}

// Outcome records one executed (package, feature set) combination. It is
// created once per subprocess invocation and never mutated afterwards.
type Outcome struct {
	Package  string
	Features featureset.Set

	// ExitCode is nil when the process was killed abnormally.
	ExitCode *int

	Warnings        int
	Errors          int
	PedanticSuccess bool
}

// ExitError carries the process exit code the invocation should
// terminate with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// plan pairs a package with its generated combinations. All plans are
// materialized before the first subprocess is spawned, so configuration
// and explosion errors surface before any build starts.
type plan struct {
	pkg  cargometa.Package
	sets []featureset.Set
}

// Run executes the build tool for every feature combination of every
// package, prints the final summary, and returns an *ExitError when the
// invocation must terminate non-zero.
func Run(ctx context.Context, packages []cargometa.Package, configs map[string]fcconfig.Config, cargoArgs []string, opts Options) error {
	opts.setDefaults()
	start := time.Now()

	cargoArgs, extraArgs := splitPassthrough(cargoArgs)
	missingArguments := len(cargoArgs) == 0 && len(extraArgs) == 0
	if !containsArg(cargoArgs, "--color") {
		// force colored output so the live view matches a direct run
		cargoArgs = append(cargoArgs, "--color", "always")
	}

	plans := make([]plan, 0, len(packages))
	for _, pkg := range packages {
		sets, err := combinations.Generate(pkg.FeatureNames(), configs[pkg.Name])
		if err != nil {
			return fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		plans = append(plans, plan{pkg: pkg, sets: sets})
	}

	var outcomes []Outcome
	for _, p := range plans {
		workingDir, err := p.pkg.WorkingDir()
		if err != nil {
			return err
		}
		for _, features := range p.sets {
			args := slices.Clone(cargoArgs)
			if !missingArguments {
				args = append(args, "--no-default-features", "--features="+features.String())
			}
			args = append(args, opts.ExtraArgs...)
			args = append(args, extraArgs...)

			printRunHeading(opts, cargoArgs, args, p.pkg.Name, features)

			outcome, captured, err := runOne(ctx, workingDir, args, p.pkg.Name, features, opts)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, outcome)
			recordOutcome(ctx, opts, outcome)

			if opts.FailFast && !outcome.PedanticSuccess {
				if opts.Silent {
					// the buffer was never streamed live; show it now
					opts.Stdout.Write(captured)
					flush(opts.Stdout)
				}
				printSummary(opts.Stdout, outcomes, time.Since(start))
				code := 1
				if outcome.ExitCode != nil {
					code = *outcome.ExitCode
				}
				if code == 0 {
					code = 1
				}
				return &ExitError{Code: code}
			}
		}
	}

	printSummary(opts.Stdout, outcomes, time.Since(start))
	if code := firstBadExitCode(outcomes); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// runOne spawns a single build and classifies its outcome. The returned
// bytes hold the captured stderr with color codes intact.
func runOne(ctx context.Context, workingDir string, args []string, pkgName string, features featureset.Set, opts Options) (Outcome, []byte, error) {
	cmd := exec.CommandContext(ctx, opts.CargoPath, args...)
	cmd.Dir = workingDir
	cmd.Stdout = opts.Stdout
	if opts.ErrorsOnly {
		cmd.Env = append(os.Environ(), "RUSTFLAGS="+strings.TrimSpace(os.Getenv("RUSTFLAGS")+" -Awarnings"))
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, nil, fmt.Errorf("pipe stderr of %s: %w", opts.CargoPath, err)
	}
	if err := cmd.Start(); err != nil {
		return Outcome{}, nil, fmt.Errorf("spawn %s %s: %w", opts.CargoPath, strings.Join(args, " "), err)
	}

	var captured bytes.Buffer
	src := io.Reader(stderrPipe)
	if !opts.Silent {
		src = newTeeReader(stderrPipe, opts.Stdout)
	}
	if _, err := io.Copy(&captured, src); err != nil {
		// analysis proceeds on whatever was captured
		opts.warnf("failed to read build output: %v", err)
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Outcome{}, nil, fmt.Errorf("wait for %s: %w", opts.CargoPath, waitErr)
		}
	}

	var exitCode *int
	if code := cmd.ProcessState.ExitCode(); code >= 0 {
		exitCode = &code
	}

	stripped := stripANSI(captured.String())
	numWarnings := sum(warningCounts(stripped))
	numErrors := sum(errorCounts(stripped))

	fail := !cmd.ProcessState.Success()
	pedanticFail := opts.Pedantic && (numErrors > 0 || numWarnings > 0)

	return Outcome{
		Package:         pkgName,
		Features:        features,
		ExitCode:        exitCode,
		Warnings:        numWarnings,
		Errors:          numErrors,
		PedanticSuccess: !(fail || pedanticFail),
	}, captured.Bytes(), nil
}

func recordOutcome(ctx context.Context, opts Options, outcome Outcome) {
	if opts.History == nil {
		return
	}
	err := opts.History.Record(ctx, history.Entry{
		Package:         outcome.Package,
		Features:        outcome.Features.String(),
		ExitCode:        outcome.ExitCode,
		Warnings:        outcome.Warnings,
		Errors:          outcome.Errors,
		PedanticSuccess: outcome.PedanticSuccess,
	})
	if err != nil {
		opts.warnf("record run history: %v", err)
	}
}

// printRunHeading writes the cyan status line announcing the next build.
func printRunHeading(opts Options, cargoArgs, allArgs []string, pkgName string, features featureset.Set) {
	if !opts.Silent {
		fmt.Fprintln(opts.Stdout)
	}
	action := "     Running "
	switch {
	case containsArg(cargoArgs, "build"):
		action = "    Building "
	case containsArg(cargoArgs, "check"), containsArg(cargoArgs, "clippy"):
		action = "    Checking "
	case containsArg(cargoArgs, "test"):
		action = "     Testing "
	}
	fmt.Fprintf(opts.Stdout, "%s%s ( features = [%s] )", headingColor(action), pkgName, features.List())
	if opts.Verbose {
		fmt.Fprintf(opts.Stdout, " [cargo %s]", strings.Join(allArgs, " "))
	}
	fmt.Fprintln(opts.Stdout)
	if !opts.Silent {
		fmt.Fprintln(opts.Stdout)
	}
}

// splitPassthrough separates the build tool arguments from everything
// after the literal "--" separator, which is forwarded unmodified.
func splitPassthrough(args []string) (cargoArgs, extra []string) {
	for i, a := range args {
		if a == "--" {
			return slices.Clone(args[:i]), slices.Clone(args[i:])
		}
	}
	return slices.Clone(args), nil
}

// containsArg reports whether args holds name either bare or as name=value.
func containsArg(args []string, name string) bool {
	for _, a := range args {
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

func flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() error }); ok {
		f.Flush()
	}
}
