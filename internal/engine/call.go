package engine

import (
	"strings"
	"sync"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

// Call is handed to a plain action's Callback.
//
// Put and the callback's return value share one dispatch per call: whichever
// comes first is delivered and the rest are dropped.
type Call struct {
	Model     string
	Action    string
	Arguments []any

	store      *Store
	model      *Model
	dispatch   DispatchFunc
	invocation string
	suppressed bool

	mu      sync.Mutex
	touched bool
	emitted bool
}

// Put normalises an action-like value for the owning model and dispatches
// it. The future resolves with the action's payload data.
func (c *Call) Put(action any) *future.Future {
	c.mark()
	a := normalizeAction(c.model, action)
	if a.Invocation == "" {
		a.Invocation = c.invocation
	}
	if a.Payload.Store == nil {
		a.Payload.Store = c.model.initial
	}
	if err := c.emit(a); err != nil {
		return future.Rejected(err)
	}
	return future.Resolved(a.Payload.Data)
}

// Select resolves with a copy of the value at path in the owning model's
// current state. An empty path selects the whole slice.
func (c *Call) Select(path string) *future.Future {
	c.mark()
	v, _ := c.store.selectPath(c.model.name, path)
	return future.Resolved(v)
}

// State returns a copy of the owning model's current state.
func (c *Call) State() ir.State {
	s, _ := c.store.State(c.model.name)
	return s
}

// Suppressed reports whether dispatch is suppressed for this call.
func (c *Call) Suppressed() bool {
	return c.suppressed
}

func (c *Call) mark() {
	c.mu.Lock()
	c.touched = true
	c.mu.Unlock()
}

func (c *Call) used() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// emit dispatches at most once per call and never when suppressed.
func (c *Call) emit(a ir.Action) error {
	c.mu.Lock()
	if c.suppressed || c.emitted {
		c.mu.Unlock()
		return nil
	}
	c.emitted = true
	c.mu.Unlock()
	return c.dispatch(a)
}

func (c *Call) immediate(patch any) ir.Action {
	return ir.Action{
		Type:       c.model.immediate,
		Invocation: c.invocation,
		Payload:    ir.Payload{Data: patch, Arguments: c.Arguments, Store: c.model.initial},
	}
}

// normalizeAction turns an action-like value into an action of model m.
//
//   - ir.Action (or *ir.Action) with a bare type ("loaded") gets the model
//     prefix; a canonical type ("other/loaded") is kept
//   - an intent without a dot ("refresh") becomes "model.refresh"
//   - a string is treated as an action type
//   - a map with a "type" or "intent" key is read as an action object, its
//     "payload" or "data" key becoming the payload data
//   - anything else is an immediate update of m carrying the value
func normalizeAction(m *Model, v any) ir.Action {
	switch a := v.(type) {
	case ir.Action:
		return normalizeTyped(m, a)
	case *ir.Action:
		if a == nil {
			return ir.Action{Type: m.immediate}
		}
		return normalizeTyped(m, *a)
	case string:
		return normalizeTyped(m, ir.Action{Type: a})
	case map[string]any:
		typ, hasType := a["type"].(string)
		intent, hasIntent := a["intent"].(string)
		if !hasType && !hasIntent {
			break
		}
		data, ok := a["payload"]
		if !ok {
			data = a["data"]
		}
		return normalizeTyped(m, ir.Action{Type: typ, Intent: intent, Payload: ir.Payload{Data: data}})
	}
	return ir.Action{Type: m.immediate, Payload: ir.Payload{Data: v}}
}

func normalizeTyped(m *Model, a ir.Action) ir.Action {
	switch {
	case a.Type != "":
		if _, action := actiontype.Decode(a.Type); action == "" {
			a.Type = actiontype.Encode(m.name, a.Type)
		}
		a.Intent = ""
	case a.Intent != "":
		if !strings.Contains(a.Intent, ".") {
			a.Intent = actiontype.ToAction(m.name, a.Intent)
		}
	default:
		a.Type = m.immediate
	}
	return a
}

func (s *Store) selectPath(model, path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[model]
	if !ok {
		return nil, false
	}
	v, ok := ir.LookupPath(m.state, path)
	if !ok {
		return nil, false
	}
	return ir.Clone(v), true
}
