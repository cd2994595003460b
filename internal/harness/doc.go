// Package harness runs queue board conformance scenarios.
//
// A scenario seeds a fake store, drives a real Dispatcher and Engine through
// a flow of user intents and peer activity on a fake clock, and records a
// trace: every flow step followed by the store calls it caused and any view
// snapshots it took. The trace is checked against assertions and, in tests,
// against golden files.
//
// # Scenario Format
//
//	name: uncheck_moves_row_down
//	description: "Unchecking a row moves it below the populated rows"
//	setup:
//	  - {row: 0, side: right, text: Ana, checked: true}
//	flow:
//	  - do: uncheck
//	    row: 0
//	    side: right
//	assertions:
//	  - type: trace_count
//	    op: update
//	    count: 2
//	  - type: final_state
//	    source: store
//	    side: right
//	    rows: ["0: Bo|", "1: Ana|"]
//
// Setup entries are written to the store as another client would, then the
// engine polls once. Setup calls are not traced.
//
// # Flow Steps
//
//   - set_text, clear: row, side, position (default P1), text
//   - check, uncheck, clear_row: row, side
//   - initialize, poll, flush
//   - remote: a peer writes text and/or checked; publish also broadcasts it
//   - advance: moves the fake clock by duration, firing due timers
//   - fail: makes op return error; an empty error clears it
//   - hold, release: gate calls to op
//   - await: waits until count calls to op reach the gate
//   - join: waits for async steps
//   - snapshot: records the engine's view of side
//
// Any intent step may set async to run in the background until join.
// Store calls are traced at the first step boundary with nothing running in
// the background, sorted so parallel writes compare stably.
//
// # Assertion Types
//
//   - trace_contains: a call appears in the trace
//   - trace_order: calls appear in the given order
//   - trace_count: op was called exactly count times
//   - final_state: the first rows of a side's dump, from view or store
//   - slot_count: the number of slots in view or store
//   - status: the engine's last error contains error, or is nil when error is empty
package harness
