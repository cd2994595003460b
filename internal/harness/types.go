package harness

// Trace event types.
const (
	TraceStep  = "step"
	TraceCall  = "call"
	TraceView  = "view"
	TraceError = "error"
)

// TraceEvent is one line of a scenario trace. Step events carry the step
// description; call events a rendered store call; view events a side dump;
// error events a step's error.
type TraceEvent struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Seq    int    `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains steps and the store calls they caused, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Store holds the final store dump per side.
	Store map[string]string `json:"store,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Store:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace adds a flow step to the trace.
func (r *Result) AddStepTrace(detail string, seq int) {
	r.Trace = append(r.Trace, TraceEvent{Type: TraceStep, Detail: detail, Seq: seq})
}

// AddTrace adds a call, view or error event belonging to step seq.
func (r *Result) AddTrace(typ, detail string, seq int) {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, Detail: detail, Seq: seq})
}

// Calls returns the traced store calls in order.
func (r *Result) Calls() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == TraceCall {
			out = append(out, ev.Detail)
		}
	}
	return out
}
