package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/effect"
	"github.com/roach88/seed/internal/ir"
)

func TestRegister_MissingName(t *testing.T) {
	s, _, logs := newTestStore(t)
	err := s.Register(ModelSpec{State: ir.State{"a": 1}}, nil)

	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMissingName))
	assert.Empty(t, s.Models())
	assert.Contains(t, logs.String(), "MISSING_NAME")
}

func TestRegister_DuplicateKeepsFirst(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Register(ModelSpec{Name: "m", State: ir.State{"v": "first"}}, nil))

	err := s.Register(ModelSpec{Name: "m", State: ir.State{"v": "second"}}, nil)
	require.Error(t, err)
	assert.True(t, IsDuplicateModel(err))

	st, _ := s.State("m")
	assert.Equal(t, "first", st["v"])
	assert.Equal(t, []string{"m"}, s.Models())
}

func TestRegister_MalformedActionSkipped(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.Register(ModelSpec{
		Name: "m",
		Actions: map[string]ActionConfig{
			"both":     {Exec: 1, Effect: effect.Script()},
			"callback": {Effect: effect.Script(), Callback: func(*Call) (any, error) { return nil, nil }},
			"reserved": {},
			"ok":       {Data: 1},
		},
	}, nil)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMalformedAction))
	assert.True(t, IsRegistrationError(err))

	m, ok := s.GetModel("m")
	require.True(t, ok, "the model is still registered")
	assert.Equal(t, []string{"ok", "reserved"}, m.ActionNames())
}

func TestRegister_ReservedActionName(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.Register(ModelSpec{
		Name:    "m",
		Actions: map[string]ActionConfig{ImmediateAction: {Data: 1}},
	}, nil)
	assert.True(t, HasCode(err, ErrCodeMalformedAction))
}

func TestRegister_ActionKinds(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.MustRegister(ModelSpec{
		Name: "m",
		Actions: map[string]ActionConfig{
			"fetch":  {Exec: ir.Request{URL: "/x"}},
			"watch":  {Effect: effect.Script()},
			"toggle": {Callback: func(*Call) (any, error) { return nil, nil }},
			"open":   {Data: 1},
		},
	}, nil)

	m, _ := s.GetModel("m")
	assert.Equal(t, "exec", m.Kind("fetch"))
	assert.Equal(t, "effect", m.Kind("watch"))
	assert.Equal(t, "plain", m.Kind("toggle"))
	assert.Equal(t, "plain", m.Kind("open"))
	assert.Equal(t, "", m.Kind("missing"))
	assert.Equal(t, "m/@@UPDATE_STATE", m.ImmediateType())
	assert.True(t, s.runner.Has("m.watch"))
}

func TestRegister_ReducerPlacement(t *testing.T) {
	s, _, _ := newTestStore(t)
	r := setField("v")
	s.MustRegister(ModelSpec{
		Name:     "m",
		Reducers: map[string]ir.Reducer{"reset": r},
		Actions: map[string]ActionConfig{
			"load": {Exec: 1, Reducer: r, Lifecycle: Lifecycle{Start: r, Error: r}},
			"set":  {Reducer: r},
		},
	}, nil)

	m, _ := s.GetModel("m")
	assert.Equal(t, []string{
		"m/@@UPDATE_STATE",
		"m/load/error",
		"m/load/start",
		"m/load/success",
		"m/reset",
		"m/set",
	}, m.ReducerTypes())
	assert.False(t, m.HandlesType("m/load"))
}

func TestRegister_SubscriptionToOtherModel(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.MustRegister(ModelSpec{
		Name:    "a",
		State:   ir.State{"name": "a"},
		Actions: map[string]ActionConfig{"load": {Exec: "payload"}},
	}, nil)
	s.MustRegister(ModelSpec{
		Name:  "b",
		State: ir.State{"copied": nil},
		Subscriptions: map[string]Subscription{
			"a.load.success": {Reducer: setField("copied")},
		},
	}, nil)

	_, err := await(t, mustCall(t, s, "a.load"))
	require.NoError(t, err)

	b, _ := s.State("b")
	assert.Equal(t, "payload", b["copied"])
	a, _ := s.State("a")
	assert.Equal(t, ir.State{"name": "a"}, a)
	assert.Equal(t, int64(0), s.Revision("a"))
	assert.Equal(t, int64(1), s.Revision("b"))
}

func TestRegister_SubscriptionLifecycle(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.MustRegister(ModelSpec{Name: "a", Actions: map[string]ActionConfig{"load": {Exec: 1}}}, nil)
	s.MustRegister(ModelSpec{
		Name: "spinner",
		Subscriptions: map[string]Subscription{
			"a.load": {Lifecycle: Lifecycle{
				Start: func(d ir.State, _ ir.Payload) ir.State {
					d["busy"] = true
					return nil
				},
				Success: func(d ir.State, _ ir.Payload) ir.State {
					d["busy"] = false
					return nil
				},
			}},
		},
	}, nil)

	m, _ := s.GetModel("spinner")
	assert.True(t, m.HandlesType("a/load/start"))
	assert.True(t, m.HandlesType("a/load/success"))
	assert.False(t, m.HandlesType("a/load/error"))

	_, err := await(t, mustCall(t, s, "a.load"))
	require.NoError(t, err)
	st, _ := s.State("spinner")
	assert.Equal(t, false, st["busy"])
	assert.Equal(t, int64(2), s.Revision("spinner"))
}

func TestRegister_InvalidSubscription(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.Register(ModelSpec{
		Name: "b",
		Subscriptions: map[string]Subscription{
			"nodot":          {Reducer: setField("x")},
			"a.load.pending": {Reducer: setField("x")},
			"a.load":         {},
			"a.save.error":   {Reducer: setField("failed")},
		},
	}, nil)

	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSubscription))

	m, ok := s.GetModel("b")
	require.True(t, ok)
	assert.Equal(t, []string{"a/save/error", "b/@@UPDATE_STATE"}, m.ReducerTypes())
}

func TestRegister_InitialStateIsCopied(t *testing.T) {
	s, _, _ := newTestStore(t)
	initial := ir.State{"items": []any{"a"}}
	s.MustRegister(ModelSpec{Name: "m", State: initial}, nil)

	initial["items"] = []any{"changed"}

	m, _ := s.GetModel("m")
	assert.Equal(t, ir.State{"items": []any{"a"}}, m.InitialState())
}

func TestRegister_MustRegisterPanics(t *testing.T) {
	s, _, _ := newTestStore(t)
	assert.Panics(t, func() { s.MustRegister(ModelSpec{}, nil) })
}
