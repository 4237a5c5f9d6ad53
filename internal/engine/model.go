package engine

import (
	"slices"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/ir"
)

// ImmediateAction is the action name of a model's immediate update type.
const ImmediateAction = "@@UPDATE_STATE"

// Model is a registered model: its slice of state, its reducer table and its
// processors. State and revision are guarded by the owning Store.
type Model struct {
	name      string
	initial   ir.State
	immediate string

	reducers map[string]ir.Reducer
	creators map[string]Creator
	effects  []string
	kinds    map[string]string

	state    ir.State
	revision int64
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// ImmediateType returns the model's immediate update action type.
func (m *Model) ImmediateType() string { return m.immediate }

// InitialState returns a copy of the state the model was registered with.
func (m *Model) InitialState() ir.State { return ir.CloneState(m.initial) }

// ActionNames returns the declared action names, sorted.
func (m *Model) ActionNames() []string {
	names := make([]string, 0, len(m.creators))
	for name := range m.creators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Effects returns the names of effect actions, sorted.
func (m *Model) Effects() []string {
	return slices.Clone(m.effects)
}

// Kind returns the processor kind of an action: "exec", "effect" or "plain".
func (m *Model) Kind(action string) string {
	return m.kinds[action]
}

// ReducerTypes returns every action type this model reduces, sorted.
func (m *Model) ReducerTypes() []string {
	types := make([]string, 0, len(m.reducers))
	for t := range m.reducers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// HandlesType reports whether the model has a reducer for actionType.
func (m *Model) HandlesType(actionType string) bool {
	_, ok := m.reducers[actionType]
	return ok
}

// Creator returns the raw processor of an action.
func (m *Model) Creator(action string) (Creator, bool) {
	c, ok := m.creators[action]
	return c, ok
}

// Creators returns a copy of the model's processors.
func (m *Model) Creators() map[string]Creator {
	out := make(map[string]Creator, len(m.creators))
	for k, v := range m.creators {
		out[k] = v
	}
	return out
}

func newModel(spec ModelSpec) *Model {
	initial := ir.CloneState(spec.State)
	m := &Model{
		name:      spec.Name,
		initial:   initial,
		immediate: actiontype.Encode(spec.Name, ImmediateAction),
		reducers:  make(map[string]ir.Reducer),
		creators:  make(map[string]Creator),
		kinds:     make(map[string]string),
		state:     ir.CloneState(initial),
	}
	m.reducers[m.immediate] = immediateReducer
	return m
}

// immediateReducer shallow-merges an object patch into the draft.
// Nil data is a bookkeeping no-op; other non-object data is ignored.
func immediateReducer(draft ir.State, payload ir.Payload) ir.State {
	ir.Merge(draft, payload.Data)
	return draft
}

// setLifecycle installs per-status reducers under owner's action type.
// owner is this model for its own actions and another model for subscriptions.
func (m *Model) setLifecycle(owner, action string, l Lifecycle) {
	if l.Start != nil {
		m.reducers[actiontype.Encode(owner, action, actiontype.StatusStart)] = l.Start
	}
	if l.Success != nil {
		m.reducers[actiontype.Encode(owner, action, actiontype.StatusSuccess)] = l.Success
	}
	if l.Error != nil {
		m.reducers[actiontype.Encode(owner, action, actiontype.StatusError)] = l.Error
	}
}
