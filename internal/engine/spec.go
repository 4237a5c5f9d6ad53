package engine

import (
	"context"

	"github.com/roach88/seed/internal/effect"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

// ModelSpec declares one model. It is resolved once, at registration.
type ModelSpec struct {
	// Name is the model's unique key. Required.
	Name string

	// State is the initial state slice. Nil starts from an empty object.
	State ir.State

	// Reducers are keyed by action name and registered under "name/action".
	Reducers map[string]ir.Reducer

	// Actions are keyed by action name.
	Actions map[string]ActionConfig

	// Subscriptions are keyed by "model.action[.status]" and install a
	// reducer for this model under another model's action type.
	Subscriptions map[string]Subscription
}

// Subscription reacts to another model's action type.
//
// With a three-part key only Reducer is used. With a two-part key Reducer
// handles the plain type and Lifecycle installs one reducer per status.
type Subscription struct {
	Reducer   ir.Reducer
	Lifecycle Lifecycle
}

// Lifecycle holds per-status reducers of an action.
type Lifecycle struct {
	Start   ir.Reducer
	Success ir.Reducer
	Error   ir.Reducer
}

func (l Lifecycle) empty() bool {
	return l.Start == nil && l.Success == nil && l.Error == nil
}

// ActionConfig declares one action.
//
// The shape is decided by which fields are set:
//   - Exec set (or supplied by a resource): exec processor
//   - Effect set: effect processor
//   - otherwise: plain processor (Callback, or static Data)
//
// Exec and Effect together, or Effect with Callback, is malformed.
type ActionConfig struct {
	// Exec is an ExecFunc, an ir.Request (or *ir.Request), an ir.Awaiter such
	// as *future.Future, or any other value used directly as the result.
	Exec any

	// Effect is a generator body run by the effect runner.
	Effect effect.Body

	// Callback is the plain processor's function.
	Callback Callback

	// Reducer handles the action's own type: the success type for exec
	// actions, the plain type otherwise.
	Reducer ir.Reducer

	// Lifecycle installs one reducer per status.
	Lifecycle Lifecycle

	// Data is the payload of a callback-less plain action.
	Data any

	// NoDispatch suppresses every dispatch of every call.
	NoDispatch bool
}

// Resource maps action names to exec values (request descriptors or
// ExecFuncs). It fills in Exec for actions that lack one.
type Resource map[string]any

// ExecCall is passed to an ExecFunc.
type ExecCall struct {
	Model     string
	Action    string
	Arguments []any
	// State is a snapshot of the owning model's current state.
	State ir.State
}

// ExecFunc is a function exec. Its error (or a returned error value) becomes
// an error-status dispatch.
type ExecFunc func(ctx context.Context, call ExecCall) (any, error)

// Callback is a plain action function.
//
// Returning (nil, nil) without using Put or Select marks the call as applied
// directly. A non-nil value (or a future resolving to one) is merged into the
// model's state with an immediate update.
type Callback func(call *Call) (any, error)

// Requester is the request layer used for request-descriptor execs.
type Requester interface {
	Request(ctx context.Context, req ir.Request) (any, error)
}

// DispatchFunc delivers an action to a store.
type DispatchFunc func(ir.Action) error

// Thunk is a prepared action call waiting for a dispatch function.
type Thunk func(dispatch DispatchFunc) *future.Future

// Creator is a processor: it turns call arguments into a Thunk.
//
// A trailing literal false argument is popped and suppresses every dispatch
// of that call. The convention overlaps with legitimate boolean arguments: a
// call whose last real argument is false is indistinguishable from a
// suppressed one.
type Creator func(args ...any) Thunk

// ActionFunc is an action creator bound to a dispatch function.
type ActionFunc func(args ...any) *future.Future
