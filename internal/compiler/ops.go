package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/seed/internal/ir"
)

// BuildReducer turns a declarative op into a reducer.
//
//	merge      shallow-merges the input object into the state, or into Field
//	set        writes the input at Field
//	append     appends the input to the list at Field
//	replace    replaces the whole state with the input object
//	increment  adds the input (default 1) to the number at Field
//	delete     removes Field
//
// An op that cannot apply to a payload (merging a non-object, appending
// to a non-list) leaves the state unchanged.
func BuildReducer(op Op) (ir.Reducer, error) {
	field := op.Field
	input := func(p ir.Payload) any {
		if op.HasValue {
			return ir.Clone(op.Value)
		}
		if op.From != "" {
			v, _ := ir.LookupPath(p.View(), op.From)
			return ir.Clone(v)
		}
		return ir.Clone(p.Data)
	}

	switch op.Op {
	case OpMerge:
		return func(draft ir.State, p ir.Payload) ir.State {
			target := draft
			if field != "" {
				existing, _ := ir.LookupPath(draft, field)
				obj, ok := existing.(map[string]any)
				if !ok {
					obj = map[string]any{}
					if err := ir.SetPath(draft, field, obj); err != nil {
						return nil
					}
				}
				target = obj
			}
			ir.Merge(target, input(p))
			return nil
		}, nil

	case OpSet:
		if field == "" {
			return nil, fmt.Errorf("op %q requires a field", op.Op)
		}
		return func(draft ir.State, p ir.Payload) ir.State {
			_ = ir.SetPath(draft, field, input(p))
			return nil
		}, nil

	case OpAppend:
		if field == "" {
			return nil, fmt.Errorf("op %q requires a field", op.Op)
		}
		return func(draft ir.State, p ir.Payload) ir.State {
			existing, found := ir.LookupPath(draft, field)
			list, ok := existing.([]any)
			if found && existing != nil && !ok {
				return nil
			}
			_ = ir.SetPath(draft, field, append(list, input(p)))
			return nil
		}, nil

	case OpReplace:
		return func(draft ir.State, p ir.Payload) ir.State {
			obj, ok := input(p).(map[string]any)
			if !ok {
				return nil
			}
			return obj
		}, nil

	case OpIncrement:
		if field == "" {
			return nil, fmt.Errorf("op %q requires a field", op.Op)
		}
		return func(draft ir.State, p ir.Payload) ir.State {
			by := any(int64(1))
			if op.HasValue || op.From != "" || p.Data != nil {
				by = input(p)
			}
			current, _ := ir.LookupPath(draft, field)
			if current == nil {
				current = int64(0)
			}
			sum, ok := addNumbers(current, by)
			if !ok {
				return nil
			}
			_ = ir.SetPath(draft, field, sum)
			return nil
		}, nil

	case OpDelete:
		if field == "" {
			return nil, fmt.Errorf("op %q requires a field", op.Op)
		}
		return func(draft ir.State, _ ir.Payload) ir.State {
			segs := ir.SplitPath(field)
			parent := any(draft)
			if len(segs) > 1 {
				parent, _ = ir.Lookup(draft, segs[:len(segs)-1])
			}
			if obj, ok := parent.(map[string]any); ok {
				delete(obj, segs[len(segs)-1])
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unknown op %q", op.Op)
}

// addNumbers adds two numeric values. Integer sums stay int64 unless they
// overflow or either side is fractional.
func addNumbers(a, b any) (any, bool) {
	ai, aInt := asInt64(a)
	bi, bInt := asInt64(b)
	if aInt && bInt {
		sum := ai + bi
		if (sum > ai) == (bi > 0) {
			return sum, true
		}
	}
	af, aok := asFloat64(a)
	bf, bok := asFloat64(b)
	if !aok || !bok {
		return nil, false
	}
	return af + bf, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
