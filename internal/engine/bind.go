package engine

import (
	"github.com/roach88/seed/internal/binding"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

// BindActions binds processors to a dispatch function so that calling them
// issues their dispatches without further plumbing.
//
// dispatch must deliver effect intents before it returns; an intent still
// unsubmitted at that point rejects its call with ErrIntentDropped.
func BindActions(creators map[string]Creator, dispatch DispatchFunc) map[string]ActionFunc {
	out := make(map[string]ActionFunc, len(creators))
	for name, c := range creators {
		out[name] = bind(c, dispatch)
	}
	return out
}

func bind(c Creator, dispatch DispatchFunc) ActionFunc {
	return func(args ...any) *future.Future {
		return c(args...)(dispatch)
	}
}

// Section implements binding.Source. "state" yields a copy of the model's
// state; "actions" yields its processors (map[string]Creator).
func (s *Store) Section(model, section string) (any, bool) {
	switch section {
	case binding.SectionState:
		st, ok := s.State(model)
		return st, ok
	case binding.SectionActions:
		m, ok := s.GetModel(model)
		if !ok {
			return nil, false
		}
		return m.Creators(), true
	}
	return nil, false
}

// Global implements binding.Globals: "put" and "select" bound to a model.
//
//	put:    func(action any) *future.Future
//	select: func(path string) *future.Future
func (s *Store) Global(model, name string) (any, bool) {
	m, ok := s.GetModel(model)
	if !ok {
		return nil, false
	}
	switch name {
	case "put":
		return func(action any) *future.Future {
			a := normalizeAction(m, action)
			if a.Payload.Store == nil {
				a.Payload.Store = m.InitialState()
			}
			if err := s.Dispatch(a); err != nil {
				return future.Rejected(err)
			}
			return future.Resolved(a.Payload.Data)
		}, true
	case "select":
		return func(path string) *future.Future {
			v, _ := s.selectPath(model, path)
			return future.Resolved(v)
		}, true
	}
	return nil, false
}

// StateWrapper passes state sections through unchanged.
func StateWrapper(section any) map[string]any {
	st, _ := section.(ir.State)
	if st == nil {
		return map[string]any{}
	}
	return st
}

// ActionWrapper returns a wrapper binding action sections to dispatch.
// Each prop is an ActionFunc.
func ActionWrapper(dispatch DispatchFunc) binding.Wrapper {
	return func(section any) map[string]any {
		creators, _ := section.(map[string]Creator)
		out := make(map[string]any, len(creators))
		for name, fn := range BindActions(creators, dispatch) {
			out[name] = fn
		}
		return out
	}
}

// Resolver returns a binding resolver over this store.
func (s *Store) Resolver() *binding.Resolver {
	return binding.New(s, s.logger)
}

// Sections returns the state and dispatch-bound action sections.
func (s *Store) Sections() []binding.Section {
	return []binding.Section{
		{Name: binding.SectionState, Wrap: StateWrapper},
		{Name: binding.SectionActions, Wrap: ActionWrapper(s.Dispatch)},
	}
}

// Resolve resolves bindings in one pass over both sections.
func (s *Store) Resolve(bindings []any, flattern bool) map[string]any {
	return s.Resolver().Resolve(bindings, flattern, s.Sections())
}

// Props resolves bindings into separate state and action props.
func (s *Store) Props(bindings []any, flattern bool) (stateProps, actionProps map[string]any) {
	return s.Resolver().Props(bindings, flattern, StateWrapper, ActionWrapper(s.Dispatch))
}

// Selector returns a memoized resolver over both sections that recomputes
// only when a referenced model's revision changes.
func (s *Store) Selector(bindings []any, flattern bool) *binding.Selector {
	return s.Resolver().Selector(bindings, flattern, s.Sections()...)
}
