package harness

import "github.com/roach88/seed/internal/ir"

// TraceEvent is one delivered action, in delivery order.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	Type       string `json:"type,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Invocation string `json:"invocation,omitempty"`
	Data       any    `json:"data,omitempty"`
	Arguments  []any  `json:"arguments,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      bool   `json:"error,omitempty"`
}

// Name is the event's action type, or its intent name for intents.
func (e TraceEvent) Name() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Intent
}

func traceEvent(a ir.Action) TraceEvent {
	var args []any
	if len(a.Payload.Arguments) > 0 {
		args = ir.Clone(a.Payload.Arguments).([]any)
	}
	return TraceEvent{
		Seq:        a.Seq,
		Type:       a.Type,
		Intent:     a.Intent,
		Invocation: a.Invocation,
		Data:       ir.Clone(a.Payload.Data),
		Arguments:  args,
		Message:    a.Payload.Message,
		Error:      a.Error,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Scenario is the scenario's name.
	Scenario string `json:"scenario"`

	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every delivered action in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is every model's final state.
	State map[string]ir.State `json:"state,omitempty"`

	// Revisions is every model's final revision.
	Revisions map[string]int64 `json:"revisions,omitempty"`

	// Requests are the request descriptors the stub layer served.
	Requests []ir.Request `json:"requests,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		State:     map[string]ir.State{},
		Revisions: map[string]int64{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
