// Package harness runs conformance scenarios against compiled models.
//
// A scenario loads CUE model files, answers request descriptors from canned
// responses, calls actions through a real engine store and asserts on the
// resulting trace and state.
//
// # Scenario Format
//
//	name: load_users
//	description: "Loading users toggles the spinner"
//	specs:
//	  - models/users.cue
//	responses:
//	  - url: /api/users
//	    data: { users: [ada] }
//	setup:
//	  - dispatch: { type: users/reset }
//	steps:
//	  - call: users.load
//	    args: [{ page: 1 }]
//	    expect:
//	      data: { users: [ada] }
//	assertions:
//	  - type: state
//	    model: users
//	    path: list
//	    equals: [ada]
//	  - type: trace_order
//	    actions: [users/load/start, users/load/success]
//
// Spec paths are relative to the scenario file and may name files or
// directories.
//
// # Assertion Types
//
//   - state: the value at path in a model's final state equals the expected value
//   - trace_contains: an action (type or intent name) was delivered, optionally with matching data
//   - trace_order: actions were delivered in the given order
//   - trace_count: an action was delivered exactly N times
//   - revision: a model's revision is at least min
//   - replay: replaying the journal into a fresh store reproduces the final state
//
// # Deterministic Testing
//
// Invocation ids come from a numbered generator ("inv-1", "inv-2", ...) and
// steps run one at a time, each awaited before the next, so the same
// scenario produces a byte-identical trace on every run. Every delivered
// action is journaled to an in-memory SQLite store.
package harness
