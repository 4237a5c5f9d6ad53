package ir

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// State is one model's slice of the application state.
// Nested values are plain trees of map[string]any, []any and scalars.
type State = map[string]any

// Reducer computes a model's next state for one action.
//
// The reducer receives a private deep copy of the current state (a draft)
// which it may mutate in place. Returning nil keeps the mutated draft;
// returning a non-nil State replaces the slice entirely.
type Reducer func(draft State, payload Payload) State

// Clone returns a deep copy of a value tree.
// Maps and slices are copied recursively; scalars and unknown types are
// shared, which is safe because reducers never mutate them in place.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// CloneState returns a deep copy of a state slice. A nil state clones to an
// empty, non-nil map so reducers can always write into their draft.
func CloneState(s State) State {
	if s == nil {
		return State{}
	}
	return Clone(s).(map[string]any)
}

// SplitPath splits a dotted path. An empty path yields no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup walks a value tree along the given segments.
// Map segments are keys; slice segments are decimal indexes.
// Returns (nil, false) as soon as a segment cannot be followed.
func Lookup(v any, segments []string) (any, bool) {
	cur := v
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// LookupPath is Lookup over a dotted path.
func LookupPath(v any, path string) (any, bool) {
	return Lookup(v, SplitPath(path))
}

// SetPath writes value at a dotted path inside state, creating intermediate
// maps as needed. It fails if an intermediate segment is not a map.
func SetPath(s State, path string, value any) error {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("set path: empty path")
	}
	cur := s
	for i, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok || next == nil {
			child := map[string]any{}
			cur[seg] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("set path %q: segment %q is %T, not an object", path, strings.Join(segs[:i+1], "."), next)
		}
		cur = child
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// Merge shallow-merges patch into s and reports whether patch was an object.
// Non-object patches leave s untouched.
func Merge(s State, patch any) bool {
	m, ok := AsObject(patch)
	if !ok {
		return false
	}
	for k, v := range m {
		s[k] = v
	}
	return true
}

// AsObject returns v as a map[string]any if it is one (or a State).
func AsObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Equal reports whether two value trees are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
