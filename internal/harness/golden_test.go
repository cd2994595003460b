package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTrace(t *testing.T) {
	result := NewResult()
	result.AddStepTrace("snapshot left", 1)
	result.AddTrace(TraceView, "0: Ana|\n1: |", 1)
	result.AddStepTrace("poll", 2)
	result.AddTrace(TraceCall, "list", 2)
	result.Store["left"] = "0: Ana|\n"
	result.Store["right"] = "0: |\n"

	want := "scenario: demo\n" +
		"01 snapshot left\n" +
		"   view 0: Ana|\n" +
		"   view 1: |\n" +
		"02 poll\n" +
		"   call list\n" +
		"store left:\n" +
		"0: Ana|\n" +
		"store right:\n" +
		"0: |\n"
	assert.Equal(t, want, string(FormatTrace("demo", result)))
}

func TestAssertGolden_ExistingFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/scenario_b_check_exclusive.yaml")
	if err != nil {
		t.Fatal(err)
	}
	result, err := Run(scenario)
	if err != nil {
		t.Fatal(err)
	}
	AssertGolden(t, scenario.Name, result)
}
