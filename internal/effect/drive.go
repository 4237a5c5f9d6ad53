package effect

import (
	"context"
	"fmt"
)

// Host performs effects on behalf of a model.
type Host interface {
	// Put normalises and dispatches an action-like value for model.
	Put(ctx context.Context, model string, action any) (any, error)
	// Select reads path from model's current state.
	Select(ctx context.Context, model string, path string) (any, error)
}

// Drive runs gen to completion, performing every yielded effect through host.
//
// A step with neither an effect nor Done resumes the generator with its own
// Value. When ctx is cancelled the generator is abandoned (and stopped if it
// implements Stopper) and ctx.Err() is returned.
func Drive(ctx context.Context, host Host, model string, gen Generator) (any, error) {
	var (
		resume any
		rerr   error
	)
	for {
		if err := ctx.Err(); err != nil {
			if s, ok := gen.(Stopper); ok {
				s.Stop()
			}
			return nil, err
		}
		step := gen.Next(resume, rerr)
		if step.Done {
			return step.Value, step.Err
		}
		if step.Effect == nil {
			resume, rerr = step.Value, nil
			continue
		}
		resume, rerr = perform(ctx, host, model, *step.Effect)
	}
}

func perform(ctx context.Context, host Host, model string, e Effect) (any, error) {
	switch e.Kind {
	case KindPut:
		return host.Put(ctx, model, e.Action)
	case KindSelect:
		return host.Select(ctx, model, e.Path)
	case KindCall:
		if e.Fn == nil {
			return nil, fmt.Errorf("effect: call with nil function")
		}
		return e.Fn(ctx)
	default:
		return nil, fmt.Errorf("effect: unknown kind %v", e.Kind)
	}
}
