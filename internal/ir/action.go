package ir

import "context"

// Awaiter is anything whose eventual value can be awaited.
// The engine's futures implement it; it lives here so Payload can carry one
// without ir importing the engine.
type Awaiter interface {
	Await(ctx context.Context) (any, error)
}

// Action is the wire contract between processors, the dispatch pipeline,
// and reducers.
//
// Exactly one of Type or Intent is set on a well-formed action:
//   - Type is a canonical action type ("model/action" or "model/action/status")
//   - Intent is the dotted name ("model.action") of an effect to run
type Action struct {
	Type    string  `json:"type,omitempty"`
	Intent  string  `json:"intent,omitempty"`
	Payload Payload `json:"payload"`
	Error   bool    `json:"error,omitempty"`

	// Invocation correlates every lifecycle dispatch issued by one call of
	// an action creator. Empty for raw dispatches.
	Invocation string `json:"invocation,omitempty"`

	// Seq is stamped by the store when the action enters the pipeline.
	Seq int64 `json:"seq,omitempty"`
}

// IsIntent reports whether the action asks the effect runner to run a body.
func (a Action) IsIntent() bool {
	return a.Intent != "" && a.Type == ""
}

// Payload is the data carried by an action.
type Payload struct {
	// Data is the result of the action (success data, immediate-update patch).
	Data any `json:"data,omitempty"`

	// Store is a copy of the owning model's initial state, fresh per call.
	Store State `json:"-"`

	// Arguments are the positional arguments the action creator was called with.
	Arguments []any `json:"arguments,omitempty"`

	// Message is set on error-status actions.
	Message string `json:"message,omitempty"`

	// Exec is the side-effect descriptor that produced the action, if any.
	Exec any `json:"-"`

	// Promise is the pending call result, only set on start-status actions.
	Promise Awaiter `json:"-"`
}

// Argument returns the i-th argument or nil when out of range.
func (p Payload) Argument(i int) any {
	if i < 0 || i >= len(p.Arguments) {
		return nil
	}
	return p.Arguments[i]
}

// View returns the journal-safe part of the payload as a plain value tree:
// {"data", "arguments", "message"}. Keys with zero values are omitted.
func (p Payload) View() map[string]any {
	view := make(map[string]any, 3)
	if p.Data != nil {
		view["data"] = p.Data
	}
	if len(p.Arguments) > 0 {
		view["arguments"] = p.Arguments
	}
	if p.Message != "" {
		view["message"] = p.Message
	}
	return view
}
