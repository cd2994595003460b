package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/engine"
	"github.com/roach88/queueboard/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == TraceStep {
				fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Detail)
			} else {
				fmt.Fprintf(&buf, "      %s %s\n", event.Type, event.Detail)
			}
		}
	}

	return buf.String()
}

// AssertionContext provides the final state assertions inspect.
type AssertionContext interface {
	Slots(source string) []board.Slot
	Status() engine.Status
}

// assertTraceContains checks that the call appears in the trace.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == TraceCall && event.Detail == assertion.Call {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s", assertion.Call),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Find first position of each expected call
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != TraceCall {
			continue
		}
		if _, seen := positions[event.Detail]; !seen {
			positions[event.Detail] = i + 1 // 1-indexed for readability
		}
	}

	for _, call := range assertion.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", assertion.Calls),
				Actual:   fmt.Sprintf("missing call: %s", call),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Calls); i++ {
		prev := assertion.Calls[i-1]
		curr := assertion.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that op was called exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceCall && callOp(event.Detail) == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s calls", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}

	return nil
}

func callOp(call string) string {
	op, _, _ := strings.Cut(call, " ")
	return op
}

// assertFinalState compares the leading lines of a side's dump.
func assertFinalState(actx AssertionContext, assertion Assertion) error {
	dump := testutil.DumpSlots(actx.Slots(assertion.Source), assertion.Side)
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")

	if len(lines) < len(assertion.Rows) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("at least %d %s rows in %s", len(assertion.Rows), assertion.Side, assertion.Source),
			Actual:   fmt.Sprintf("%d rows:\n%s", len(lines), dump),
		}
	}
	for i, want := range assertion.Rows {
		if lines[i] != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s row line %q", assertion.Source, assertion.Side, want),
				Actual:   fmt.Sprintf("%q in:\n%s", lines[i], dump),
			}
		}
	}
	return nil
}

func assertSlotCount(actx AssertionContext, assertion Assertion) error {
	if n := len(actx.Slots(assertion.Source)); n != assertion.Count {
		return &AssertionError{
			Type:     AssertSlotCount,
			Expected: fmt.Sprintf("%d slots in %s", assertion.Count, assertion.Source),
			Actual:   fmt.Sprintf("%d slots", n),
		}
	}
	return nil
}

func assertStatus(actx AssertionContext, assertion Assertion) error {
	err := actx.Status().Err
	switch {
	case assertion.Error == "" && err != nil:
		return &AssertionError{Type: AssertStatus, Expected: "no error", Actual: err.Error()}
	case assertion.Error != "" && err == nil:
		return &AssertionError{Type: AssertStatus, Expected: fmt.Sprintf("error containing %q", assertion.Error), Actual: "no error"}
	case assertion.Error != "" && !strings.Contains(err.Error(), assertion.Error):
		return &AssertionError{Type: AssertStatus, Expected: fmt.Sprintf("error containing %q", assertion.Error), Actual: err.Error()}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides final state for state and status assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertSlotCount, AssertStatus:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a state context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertFinalState:
				err = assertFinalState(actx, assertion)
			case AssertSlotCount:
				err = assertSlotCount(actx, assertion)
			default:
				err = assertStatus(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
