package compiler

import (
	"fmt"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
)

// Build turns a declaration into a model spec ready for registration.
// Run Validate first: Build reports only the first problem it meets.
func Build(decl *ModelDecl) (engine.ModelSpec, error) {
	spec := engine.ModelSpec{
		Name:  decl.Name,
		State: ir.CloneState(decl.State),
	}

	if len(decl.Reducers) > 0 {
		spec.Reducers = make(map[string]ir.Reducer, len(decl.Reducers))
		for name, op := range decl.Reducers {
			r, err := BuildReducer(op)
			if err != nil {
				return engine.ModelSpec{}, &CompileError{Field: "reducers." + name, Message: err.Error(), Pos: op.Pos}
			}
			spec.Reducers[name] = r
		}
	}

	if len(decl.Actions) > 0 {
		spec.Actions = make(map[string]engine.ActionConfig, len(decl.Actions))
		for name, action := range decl.Actions {
			cfg, err := buildAction(action)
			if err != nil {
				return engine.ModelSpec{}, &CompileError{Field: "actions." + name, Message: err.Error(), Pos: action.Pos}
			}
			spec.Actions[name] = cfg
		}
	}

	if len(decl.Subscriptions) > 0 {
		spec.Subscriptions = make(map[string]engine.Subscription, len(decl.Subscriptions))
		for key, sub := range decl.Subscriptions {
			var out engine.Subscription
			var err error
			if sub.Reducer != nil {
				out.Reducer, err = BuildReducer(*sub.Reducer)
			} else {
				out.Lifecycle, err = buildLifecycle(sub.Lifecycle)
			}
			if err != nil {
				return engine.ModelSpec{}, &CompileError{Field: fmt.Sprintf("subscriptions[%q]", key), Message: err.Error(), Pos: sub.Pos}
			}
			spec.Subscriptions[key] = out
		}
	}
	return spec, nil
}

func buildAction(action ActionDecl) (engine.ActionConfig, error) {
	cfg := engine.ActionConfig{
		Data:       ir.Clone(action.Data),
		NoDispatch: action.NoDispatch,
	}
	if action.Exec != nil {
		cfg.Exec = *action.Exec
	}
	if action.Effect != nil {
		body, err := BuildEffect(action.Effect)
		if err != nil {
			return cfg, fmt.Errorf("effect: %w", err)
		}
		cfg.Effect = body
	}
	if action.Reducer != nil {
		r, err := BuildReducer(*action.Reducer)
		if err != nil {
			return cfg, fmt.Errorf("reducer: %w", err)
		}
		cfg.Reducer = r
	}
	lc, err := buildLifecycle(action.Lifecycle)
	if err != nil {
		return cfg, fmt.Errorf("lifecycle: %w", err)
	}
	cfg.Lifecycle = lc
	return cfg, nil
}

func buildLifecycle(lc LifecycleDecl) (engine.Lifecycle, error) {
	var out engine.Lifecycle
	for _, pair := range []struct {
		op  *Op
		dst *ir.Reducer
	}{
		{lc.Start, &out.Start},
		{lc.Success, &out.Success},
		{lc.Error, &out.Error},
	} {
		if pair.op == nil {
			continue
		}
		r, err := BuildReducer(*pair.op)
		if err != nil {
			return out, err
		}
		*pair.dst = r
	}
	return out, nil
}
