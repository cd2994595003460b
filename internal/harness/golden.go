package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/queueboard/internal/board"
)

// FormatTrace renders a result as golden file text: one line per step,
// indented lines for the calls, views and errors it produced, then the
// final store dump of each side.
func FormatTrace(name string, result *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, ev := range result.Trace {
		if ev.Type == TraceStep {
			fmt.Fprintf(&b, "%02d %s\n", ev.Seq, ev.Detail)
			continue
		}
		for _, line := range strings.Split(ev.Detail, "\n") {
			fmt.Fprintf(&b, "   %s %s\n", ev.Type, line)
		}
	}
	for _, side := range board.Sides {
		fmt.Fprintf(&b, "store %s:\n", side)
		b.WriteString(result.Store[string(side)])
	}
	return b.Bytes()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result))
}
