package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-runewidth"
)

// printSummary aggregates the recorded outcomes into the final report:
// one colored status line per combination plus a Finished heading with
// distinct package and combination counts.
func printSummary(w io.Writer, outcomes []Outcome, elapsed time.Duration) {
	packages := make(map[string]struct{}, len(outcomes))
	featureSets := make(map[string]struct{}, len(outcomes))
	maxErrors, maxWarnings, maxName := 0, 0, 0
	for _, o := range outcomes {
		packages[o.Package] = struct{}{}
		featureSets[o.Package+"\x00"+o.Features.String()] = struct{}{}
		maxErrors = max(maxErrors, o.Errors)
		maxWarnings = max(maxWarnings, o.Warnings)
		maxName = max(maxName, runewidth.StringWidth(o.Package))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%d total feature %s for %d %s in %s\n",
		headingColor("    Finished "),
		len(featureSets), plural("combination", len(featureSets)),
		len(packages), plural("package", len(packages)),
		elapsed.Round(time.Millisecond),
	)
	fmt.Fprintln(w)

	errorsWidth := len(fmt.Sprint(maxErrors))
	warningsWidth := len(fmt.Sprint(maxWarnings))
	for _, o := range outcomes {
		var status string
		switch {
		case !o.PedanticSuccess:
			status = failColor("        FAIL ")
		case o.Warnings > 0:
			status = warnColor("        WARN ")
		default:
			status = passColor("        PASS ")
		}
		fmt.Fprintf(w, "%s%s ( %0*d errors, %0*d warnings, features = [%s] )\n",
			status,
			runewidth.FillRight(o.Package, maxName),
			errorsWidth, o.Errors,
			warningsWidth, o.Warnings,
			o.Features.List(),
		)
	}
	fmt.Fprintln(w)
}

// firstBadExitCode returns the exit code the whole invocation should
// terminate with: the code of the first non-pedantic-success outcome in
// iteration order (1 when that code is unavailable or zero), or 0 when
// every combination passed.
func firstBadExitCode(outcomes []Outcome) int {
	for _, o := range outcomes {
		if o.PedanticSuccess {
			continue
		}
		if o.ExitCode != nil && *o.ExitCode != 0 {
			return *o.ExitCode
		}
		return 1
	}
	return 0
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
