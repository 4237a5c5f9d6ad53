package effect

import (
	"context"
	"fmt"

	"github.com/roach88/seed/internal/ir"
)

// Kind tags an effect request.
type Kind int

const (
	// KindPut dispatches an action.
	KindPut Kind = iota + 1
	// KindSelect reads from the owning model's state.
	KindSelect
	// KindCall runs a blocking function.
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindSelect:
		return "select"
	case KindCall:
		return "call"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Effect is one request yielded by a body.
type Effect struct {
	Kind Kind

	// Action is the action-like value for KindPut. The host normalises it
	// (bare types are prefixed with the owning model).
	Action any

	// Path is the dotted state path for KindSelect. Empty selects the whole slice.
	Path string

	// Fn is the function run by KindCall.
	Fn func(ctx context.Context) (any, error)
}

// Put requests a dispatch.
func Put(action any) Effect {
	return Effect{Kind: KindPut, Action: action}
}

// Select requests the value at path in the owning model's state.
func Select(path string) Effect {
	return Effect{Kind: KindSelect, Path: path}
}

// Call requests that fn be run; the body resumes with its result.
func Call(fn func(ctx context.Context) (any, error)) Effect {
	return Effect{Kind: KindCall, Fn: fn}
}

// Step is what a generator produces on each resumption: either an effect to
// perform, or completion with a final value or error.
type Step struct {
	Effect *Effect
	Done   bool
	Value  any
	Err    error
}

// Yielded returns a step requesting e.
func Yielded(e Effect) Step {
	return Step{Effect: &e}
}

// Return returns a completed step.
func Return(value any, err error) Step {
	return Step{Done: true, Value: value, Err: err}
}

// Generator is a resumable effect body.
//
// The first call to Next receives (nil, nil). Each later call receives the
// result of the effect requested by the previous step. Once a step reports
// Done, further calls return ErrGeneratorDone.
type Generator interface {
	Next(resume any, err error) Step
}

// Stopper is implemented by generators that hold resources (goroutines) and
// must be released when abandoned before completion.
type Stopper interface {
	Stop()
}

// Body creates a fresh generator for one invocation of an effect action.
// args are the call arguments; store is the owning model's initial state.
type Body func(args []any, store ir.State) Generator
