package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/testutil"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fresh starts from an empty store instead of the 48-slot grid.
	Fresh bool `yaml:"fresh,omitempty"`

	// Setup writes slots as another client would before the flow starts.
	Setup []Seed `yaml:"setup,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Seed is one setup write.
type Seed struct {
	Row      int            `yaml:"row"`
	Side     board.Side     `yaml:"side"`
	Position board.Position `yaml:"position,omitempty"`
	Text     *string        `yaml:"text,omitempty"`
	Checked  *bool          `yaml:"checked,omitempty"`
}

// Step is one flow step. Which fields apply depends on Do.
type Step struct {
	Do       string         `yaml:"do"`
	Row      int            `yaml:"row,omitempty"`
	Side     board.Side     `yaml:"side,omitempty"`
	Position board.Position `yaml:"position,omitempty"`
	Text     *string        `yaml:"text,omitempty"`
	Checked  *bool          `yaml:"checked,omitempty"`

	// Publish makes a remote write also broadcast entry-updated.
	Publish bool `yaml:"publish,omitempty"`

	// Duration is a time.ParseDuration string for advance.
	Duration string `yaml:"duration,omitempty"`

	// Op names a store operation for fail, hold, release and await.
	Op string `yaml:"op,omitempty"`

	// Error is the injected error message for fail.
	Error string `yaml:"error,omitempty"`

	// Count is the number of calls await waits for.
	Count int `yaml:"count,omitempty"`

	// Async runs an intent step in the background until join.
	Async bool `yaml:"async,omitempty"`

	// ExpectError, if set, must be contained in the step's error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step kinds.
const (
	StepSetText    = "set_text"
	StepCheck      = "check"
	StepUncheck    = "uncheck"
	StepClear      = "clear"
	StepClearRow   = "clear_row"
	StepInitialize = "initialize"
	StepPoll       = "poll"
	StepFlush      = "flush"
	StepRemote     = "remote"
	StepAdvance    = "advance"
	StepFail       = "fail"
	StepHold       = "hold"
	StepRelease    = "release"
	StepAwait      = "await"
	StepJoin       = "join"
	StepSnapshot   = "snapshot"
)

// String describes the step for the trace.
func (s Step) String() string {
	switch s.Do {
	case StepSetText:
		return fmt.Sprintf("%s %s row %d %s %q", s.Do, s.Side, s.Row, s.position(), deref(s.Text))
	case StepClear:
		return fmt.Sprintf("%s %s row %d %s", s.Do, s.Side, s.Row, s.position())
	case StepCheck, StepUncheck, StepClearRow:
		return fmt.Sprintf("%s %s row %d", s.Do, s.Side, s.Row)
	case StepRemote:
		patch := s.patch()
		out := fmt.Sprintf("%s %s row %d %s %s", s.Do, s.Side, s.Row, s.position(), patch)
		if s.Publish {
			out += " +publish"
		}
		return out
	case StepAdvance:
		return s.Do + " " + s.Duration
	case StepFail:
		if s.Error == "" {
			return fmt.Sprintf("%s %s cleared", s.Do, s.Op)
		}
		return fmt.Sprintf("%s %s %q", s.Do, s.Op, s.Error)
	case StepHold, StepRelease:
		return s.Do + " " + s.Op
	case StepAwait:
		return fmt.Sprintf("%s %d %s", s.Do, s.Count, s.Op)
	case StepSnapshot:
		return s.Do + " " + string(s.Side)
	}
	return s.Do
}

func (s Step) position() board.Position {
	if s.Position == "" {
		return board.P1
	}
	return s.Position
}

func (s Step) patch() board.SlotPatch {
	return board.SlotPatch{Text: s.Text, Checked: s.Checked}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Call is a rendered store call, e.g. `update 7 {text="abc"}` (trace_contains).
	Call string `yaml:"call,omitempty"`

	// Calls is the expected call order (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Op and Count are used by trace_count. Count is also used by slot_count.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Source is "view" or "store" (final_state, slot_count).
	Source string `yaml:"source,omitempty"`

	// Side and Rows are used by final_state. Rows is a prefix of the dump.
	Side board.Side `yaml:"side,omitempty"`
	Rows []string   `yaml:"rows,omitempty"`

	// Error is the expected substring for status; empty means no error.
	Error string `yaml:"error,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertSlotCount     = "slot_count"
	AssertStatus        = "status"
)

// State sources.
const (
	SourceView  = "view"
	SourceStore = "store"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Fresh && len(s.Setup) > 0 {
		return fmt.Errorf("setup needs the grid; remove fresh or setup")
	}

	for i, seed := range s.Setup {
		if err := validateSlotRef(seed.Row, seed.Side, seed.Position); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if seed.Text == nil && seed.Checked == nil {
			return fmt.Errorf("setup[%d]: text or checked is required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateSlotRef(row int, side board.Side, pos board.Position) error {
	if !board.ValidRow(row) {
		return fmt.Errorf("row %d out of range", row)
	}
	if _, err := board.ParseSide(string(side)); err != nil {
		return err
	}
	if pos != "" && pos != board.P1 && pos != board.P2 {
		return fmt.Errorf("invalid position %q", pos)
	}
	return nil
}

var storeOps = map[string]bool{
	testutil.OpList:       true,
	testutil.OpGet:        true,
	testutil.OpUpdate:     true,
	testutil.OpClear:      true,
	testutil.OpInitialize: true,
	testutil.OpHistory:    true,
}

func validateStep(step Step) error {
	if step.Async {
		switch step.Do {
		case StepCheck, StepUncheck, StepClear, StepClearRow, StepInitialize, StepPoll:
		default:
			return fmt.Errorf("%s cannot run async", step.Do)
		}
	}

	switch step.Do {
	case StepSetText:
		if step.Text == nil {
			return fmt.Errorf("set_text: text is required")
		}
		return validateSlotRef(step.Row, step.Side, step.Position)
	case StepCheck, StepUncheck, StepClear, StepClearRow:
		return validateSlotRef(step.Row, step.Side, step.Position)
	case StepRemote:
		if step.Text == nil && step.Checked == nil {
			return fmt.Errorf("remote: text or checked is required")
		}
		return validateSlotRef(step.Row, step.Side, step.Position)
	case StepSnapshot:
		_, err := board.ParseSide(string(step.Side))
		return err
	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advance: duration must be positive")
		}
		return nil
	case StepFail, StepHold, StepRelease:
		if !storeOps[step.Op] {
			return fmt.Errorf("%s: unknown op %q", step.Do, step.Op)
		}
		return nil
	case StepAwait:
		if !storeOps[step.Op] {
			return fmt.Errorf("await: unknown op %q", step.Op)
		}
		if step.Count <= 0 {
			return fmt.Errorf("await: count must be positive")
		}
		return nil
	case StepInitialize, StepPoll, StepFlush, StepJoin:
		return nil
	case "":
		return fmt.Errorf("do is required")
	}
	return fmt.Errorf("unknown step %q", step.Do)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if err := validateSource(index, a.Source); err != nil {
			return err
		}
		if _, err := board.ParseSide(string(a.Side)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if len(a.Rows) == 0 {
			return fmt.Errorf("assertions[%d]: rows is required for final_state", index)
		}
	case AssertSlotCount:
		if err := validateSource(index, a.Source); err != nil {
			return err
		}
	case AssertStatus:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateSource(index int, source string) error {
	if source != SourceView && source != SourceStore {
		return fmt.Errorf("assertions[%d]: source must be %q or %q", index, SourceView, SourceStore)
	}
	return nil
}
