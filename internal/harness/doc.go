// Package harness runs navigation scenarios against the real engine.
//
// A scenario drives one engine over an in-process history log with a fake
// timer clock, checks snapshots after each step and evaluates assertions on
// the resulting transition trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schemas/navigation.cue   # optional, default schema otherwise
//	initial: ["", "landing"]             # optional history seed
//	steps:
//	  - do: open
//	    depth: 1
//	    token: dash/modal
//	    flags: [classModal]
//	    expect:
//	      state: detail
//	      flags: [classModal]
//	  - do: confirm
//	    message: "Delete class?"
//	    as: del
//	  - do: back
//	    expect:
//	      resolved: { del: false }
//	assertions:
//	  - type: trace_contains
//	    effect: abandon_confirm
//	  - type: trace_count
//	    effect: exit_session
//	    count: 0
//	  - type: final_state
//	    expect: { state: detail }
//	  - type: replay
//
// # Step Types
//
// open, close, back, forward, confirm, answer, signal, close_gate map to
// the Engine methods of the same name. advance moves the fake timer clock by
// ms milliseconds. drain only processes the queue.
//
// After every step the harness drains the engine queue, so notifications
// produced by the step are applied before its expect clause is checked. Set
// hold: true to leave them queued and interleave the next step ahead of
// them.
//
// # Assertion Types
//
//   - trace_contains: a transition matches kind, token, effect and error
//   - trace_order: effects first appear in the listed order
//   - trace_count: a kind or effect appears exactly N times
//   - final_state: the last snapshot matches an expect clause
//   - replay: the recorded session replays without divergence
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory trace store, a logical clock starting at
// seq 1, a fake timer clock and counting pending IDs (pending-1,
// pending-2, ...), so traces are byte-identical across runs and can be
// compared against golden files.
package harness
