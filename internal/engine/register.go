package engine

import (
	"errors"
	"slices"

	"github.com/roach88/seed/internal/actiontype"
)

// Register adds a model to the store.
//
// The model's reducer table is seeded with its immediate update type, its
// Reducers, its Subscriptions and the reducers declared on its actions.
// Resource entries fill in Exec for actions that declare none. A processor
// is built for every well-formed action.
//
// Problems are logged and returned as *RegistrationError values (joined when
// there are several). A missing or duplicate name skips the whole model; a
// malformed action or subscription key skips only that entry, and the model
// is still registered.
func (s *Store) Register(spec ModelSpec, resource Resource) error {
	if spec.Name == "" {
		return s.regErr(&RegistrationError{
			Code:    ErrCodeMissingName,
			Message: "model spec has no name",
		})
	}

	s.mu.RLock()
	_, taken := s.models[spec.Name]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if taken {
		return s.regErr(&RegistrationError{
			Code:    ErrCodeDuplicateModel,
			Model:   spec.Name,
			Message: "model already registered; keeping the first registration",
		})
	}

	m := newModel(spec)
	var errs []error

	for _, name := range sortedKeys(spec.Reducers) {
		if r := spec.Reducers[name]; r != nil {
			m.reducers[actiontype.Encode(m.name, name)] = r
		}
	}

	for _, key := range sortedKeys(spec.Subscriptions) {
		if err := s.subscribe(m, key, spec.Subscriptions[key]); err != nil {
			errs = append(errs, err)
		}
	}

	for _, name := range sortedKeys(spec.Actions) {
		cfg := spec.Actions[name]
		if cfg.Exec == nil && resource != nil {
			cfg.Exec = resource[name]
		}
		if err := s.buildAction(m, name, cfg); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	if _, raced := s.models[m.name]; raced {
		s.mu.Unlock()
		return s.regErr(&RegistrationError{
			Code:    ErrCodeDuplicateModel,
			Model:   spec.Name,
			Message: "model already registered; keeping the first registration",
		})
	}
	s.models[m.name] = m
	s.order = append(s.order, m.name)
	s.mu.Unlock()

	for _, name := range m.effects {
		s.runner.Register(m.name, name, spec.Actions[name].Effect)
	}

	s.logger.Debug("model registered",
		"model", m.name,
		"actions", len(m.creators),
		"reducers", len(m.reducers),
		"effects", len(m.effects),
	)
	return errors.Join(errs...)
}

// MustRegister registers a model and panics on any registration error.
// Use only in tests or with specs known to be valid.
func (s *Store) MustRegister(spec ModelSpec, resource Resource) {
	if err := s.Register(spec, resource); err != nil {
		panic(err)
	}
}

func (s *Store) subscribe(m *Model, key string, sub Subscription) error {
	owner, action, status, err := actiontype.ParseKey(key)
	if err != nil {
		return s.regErr(&RegistrationError{
			Code:    ErrCodeInvalidSubscription,
			Model:   m.name,
			Action:  key,
			Message: err.Error(),
		})
	}
	if sub.Reducer == nil && sub.Lifecycle.empty() {
		return s.regErr(&RegistrationError{
			Code:    ErrCodeInvalidSubscription,
			Model:   m.name,
			Action:  key,
			Message: "subscription has no reducer",
		})
	}
	if sub.Reducer != nil {
		m.reducers[actiontype.Encode(owner, action, status)] = sub.Reducer
	}
	if status == "" {
		m.setLifecycle(owner, action, sub.Lifecycle)
	}
	return nil
}

func (s *Store) buildAction(m *Model, name string, cfg ActionConfig) error {
	malformed := func(msg string) error {
		return s.regErr(&RegistrationError{
			Code:    ErrCodeMalformedAction,
			Model:   m.name,
			Action:  name,
			Message: msg,
		})
	}
	switch {
	case name == "":
		return malformed("action has no name")
	case name == ImmediateAction:
		return malformed("action name is reserved")
	case cfg.Exec != nil && cfg.Effect != nil:
		return malformed("action declares both exec and effect")
	case cfg.Effect != nil && cfg.Callback != nil:
		return malformed("action declares both effect and callback")
	}

	async := cfg.Exec != nil
	if cfg.Reducer != nil {
		if async {
			m.reducers[actiontype.Encode(m.name, name, actiontype.StatusSuccess)] = cfg.Reducer
		} else {
			m.reducers[actiontype.Encode(m.name, name)] = cfg.Reducer
		}
	}
	m.setLifecycle(m.name, name, cfg.Lifecycle)

	switch {
	case async:
		m.creators[name] = s.execProcessor(m, name, cfg)
		m.kinds[name] = "exec"
	case cfg.Effect != nil:
		m.creators[name] = s.effectProcessor(m, name, cfg)
		m.kinds[name] = "effect"
		m.effects = append(m.effects, name)
	default:
		m.creators[name] = s.plainProcessor(m, name, cfg)
		m.kinds[name] = "plain"
	}
	return nil
}

func (s *Store) regErr(err *RegistrationError) error {
	s.logger.Error("model registration problem",
		"model", err.Model,
		"action", err.Action,
		"code", string(err.Code),
		"error", err.Message,
	)
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
