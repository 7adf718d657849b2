package runner

import (
	"regexp"
	"strconv"
)

// Process-wide immutable patterns, compiled once at startup.
var (
	// ansiEscapeRE matches CSI and OSC escape sequences so captured
	// output can be analyzed without color codes.
	ansiEscapeRE = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)

	// warningLineRE matches cargo's per-unit terminal summary line, e.g.
	// "warning: `demo` (lib) generated 6 warnings".
	warningLineRE = regexp.MustCompile(`warning: .* generated (\d+) warnings?`)

	// errorLineRE matches cargo's per-unit failure summary line, e.g.
	// "error: could not compile `demo` due to 2 previous errors". The
	// singular form carries no digit and counts as one error.
	errorLineRE = regexp.MustCompile("error: could not compile `.*` due to\\s*(\\d*)\\s*previous errors?")
)

// stripANSI removes terminal escape sequences from captured output.
func stripANSI(s string) string {
	return ansiEscapeRE.ReplaceAllString(s, "")
}

// warningCounts extracts the per-unit warning counts from stripped output.
func warningCounts(output string) []int {
	var counts []int
	for _, m := range warningLineRE.FindAllStringSubmatch(output, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = 0
		}
		counts = append(counts, n)
	}
	return counts
}

// errorCounts extracts the per-unit error counts from stripped output.
func errorCounts(output string) []int {
	var counts []int
	for _, m := range errorLineRE.FindAllStringSubmatch(output, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = 1
		}
		counts = append(counts, n)
	}
	return counts
}

func sum(counts []int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
