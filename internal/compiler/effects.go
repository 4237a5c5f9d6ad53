package compiler

import (
	"fmt"

	"github.com/roach88/seed/internal/effect"
	"github.com/roach88/seed/internal/ir"
)

// BuildEffect turns effect steps into a generator body.
//
// Steps run in order. Each step's result becomes "last" for the next; the
// body returns the final step's result.
func BuildEffect(steps []Step) (effect.Body, error) {
	for i, step := range steps {
		if err := checkStep(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	steps = append([]Step(nil), steps...)

	return effect.Coroutine(func(yield effect.Yield, args []any, store ir.State) (any, error) {
		var last any
		for _, step := range steps {
			var (
				e   effect.Effect
				err error
			)
			switch {
			case step.Put != "":
				e = effect.Put(map[string]any{"type": step.Put, "payload": stepData(step, args, last, store)})
			case step.Intent != "":
				e = effect.Put(map[string]any{"intent": step.Intent, "payload": stepData(step, args, last, store)})
			default:
				e = effect.Select(step.Select)
			}
			if last, err = yield(e); err != nil {
				return nil, err
			}
		}
		return last, nil
	}), nil
}

func checkStep(step Step) error {
	set := 0
	for _, s := range []string{step.Put, step.Intent, step.Select} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of put, intent or select is required")
	}
	if step.Select != "" && (step.Data != nil || step.From != "") {
		return fmt.Errorf("select takes no data")
	}
	return nil
}

func stepData(step Step, args []any, last any, store ir.State) any {
	if step.From != "" {
		scope := map[string]any{"arguments": args, "last": last, "store": map[string]any(store)}
		v, _ := ir.LookupPath(scope, step.From)
		return ir.Clone(v)
	}
	return ir.Clone(step.Data)
}
