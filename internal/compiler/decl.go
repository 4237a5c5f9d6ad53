package compiler

import (
	"cuelang.org/go/cue/token"

	"github.com/roach88/seed/internal/ir"
)

// ModelDecl is a model as written in a model file, before its reducers and
// effect bodies are built.
type ModelDecl struct {
	Name          string                      `json:"name"`
	State         ir.State                    `json:"state,omitempty"`
	Reducers      map[string]Op               `json:"reducers,omitempty"`
	Actions       map[string]ActionDecl       `json:"actions,omitempty"`
	Subscriptions map[string]SubscriptionDecl `json:"subscriptions,omitempty"`

	Pos token.Pos `json:"-"`
}

// ActionDecl declares one action.
//
// Exactly one shape applies: Exec (async), Effect (scripted effect) or
// neither (plain, dispatching Data).
type ActionDecl struct {
	Exec       *ir.Request   `json:"exec,omitempty"`
	Reducer    *Op           `json:"reducer,omitempty"`
	Lifecycle  LifecycleDecl `json:"lifecycle,omitempty"`
	Effect     []Step        `json:"effect,omitempty"`
	Data       any           `json:"data,omitempty"`
	NoDispatch bool          `json:"noDispatch,omitempty"`

	Pos token.Pos `json:"-"`
}

// LifecycleDecl declares per-status reducers.
type LifecycleDecl struct {
	Start   *Op `json:"start,omitempty"`
	Success *Op `json:"success,omitempty"`
	Error   *Op `json:"error,omitempty"`
}

func (l LifecycleDecl) empty() bool {
	return l.Start == nil && l.Success == nil && l.Error == nil
}

// SubscriptionDecl is either a single reducer or, for a key without a
// status, per-status reducers.
type SubscriptionDecl struct {
	Reducer   *Op           `json:"reducer,omitempty"`
	Lifecycle LifecycleDecl `json:"lifecycle,omitempty"`

	Pos token.Pos `json:"-"`
}

// Op kinds.
const (
	OpMerge     = "merge"
	OpSet       = "set"
	OpAppend    = "append"
	OpReplace   = "replace"
	OpIncrement = "increment"
	OpDelete    = "delete"
)

// Ops lists every reducer op.
var Ops = []string{OpMerge, OpSet, OpAppend, OpReplace, OpIncrement, OpDelete}

// Op is a declarative reducer.
//
// The op's input is Value when given, else the payload value at From (a
// dotted path into {data, arguments, message}), else the payload data.
type Op struct {
	Op       string `json:"op"`
	Field    string `json:"field,omitempty"`
	From     string `json:"from,omitempty"`
	Value    any    `json:"value,omitempty"`
	HasValue bool   `json:"-"`

	Pos token.Pos `json:"-"`
}

// Step is one effect step. Exactly one of Put, Intent or Select is set.
//
// Put and Intent carry Data, or the value at From, a dotted path into
// {arguments, last, store}. last is the previous step's result and store is
// the model's initial state.
type Step struct {
	Put    string `json:"put,omitempty"`
	Intent string `json:"intent,omitempty"`
	Select string `json:"select,omitempty"`
	Data   any    `json:"data,omitempty"`
	From   string `json:"from,omitempty"`

	Pos token.Pos `json:"-"`
}
