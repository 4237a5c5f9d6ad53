package engine

import (
	"context"
	"fmt"
)

// effectHost performs effects for the runner against the store.
type effectHost struct {
	s *Store
}

func (h effectHost) Put(_ context.Context, model string, action any) (any, error) {
	m, ok := h.s.GetModel(model)
	if !ok {
		return nil, fmt.Errorf("put: model %q: %w", model, ErrUnknownModel)
	}
	a := normalizeAction(m, action)
	if a.Payload.Store == nil {
		a.Payload.Store = m.InitialState()
	}
	if err := h.s.Dispatch(a); err != nil {
		return nil, err
	}
	return a.Payload.Data, nil
}

func (h effectHost) Select(_ context.Context, model, path string) (any, error) {
	v, _ := h.s.selectPath(model, path)
	return v, nil
}

// suppressedHost serves selects but turns puts into no-ops.
type suppressedHost struct {
	s *Store
}

func (h suppressedHost) Put(_ context.Context, model string, action any) (any, error) {
	m, ok := h.s.GetModel(model)
	if !ok {
		return nil, nil
	}
	return normalizeAction(m, action).Payload.Data, nil
}

func (h suppressedHost) Select(ctx context.Context, model, path string) (any, error) {
	return effectHost(h).Select(ctx, model, path)
}
