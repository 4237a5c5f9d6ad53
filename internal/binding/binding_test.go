package binding

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/ir"
)

type fakeSource struct {
	state     map[string]ir.State
	actions   map[string]map[string]any
	revisions map[string]int64
	globals   map[string]any
}

func (f *fakeSource) Section(model, section string) (any, bool) {
	switch section {
	case SectionState:
		s, ok := f.state[model]
		return s, ok
	case SectionActions:
		a, ok := f.actions[model]
		return a, ok
	}
	return nil, false
}

func (f *fakeSource) Revision(model string) int64 { return f.revisions[model] }

func (f *fakeSource) Global(model, name string) (any, bool) {
	v, ok := f.globals[name]
	if !ok {
		return nil, false
	}
	return model + ":" + v.(string), true
}

func (f *fakeSource) Suggest(name string) string {
	if name == "usr" {
		return "user"
	}
	return ""
}

func stateWrap(section any) map[string]any {
	s, _ := section.(ir.State)
	return ir.CloneState(s)
}

func actionWrap(section any) map[string]any {
	out := map[string]any{}
	acts, _ := section.(map[string]any)
	for name := range acts {
		out[name] = "bound:" + name
	}
	return out
}

func both() []Section {
	return []Section{
		{Name: SectionState, Wrap: stateWrap},
		{Name: SectionActions, Wrap: actionWrap},
	}
}

func newSource() *fakeSource {
	return &fakeSource{
		state: map[string]ir.State{
			"user": {"name": "x", "profile": map[string]any{"age": 3}},
			"cart": {"items": []any{"a"}},
		},
		actions: map[string]map[string]any{
			"user": {"load": "load-fn"},
			"cart": {"add": "add-fn"},
		},
		revisions: map[string]int64{"user": 1, "cart": 1},
		globals:   map[string]any{"put": "put"},
	}
}

func TestResolve_WholeModelNested(t *testing.T) {
	r := New(newSource(), nil)
	props := r.Resolve([]any{"user"}, false, both())

	assert.Equal(t, map[string]any{
		"user": map[string]any{
			"name":    "x",
			"profile": map[string]any{"age": 3},
			"load":    "bound:load",
		},
	}, props)
}

func TestResolve_WholeModelFlattened(t *testing.T) {
	r := New(newSource(), nil)
	props := r.Resolve([]any{"user"}, true, both())

	assert.Equal(t, map[string]any{
		"name":    "x",
		"profile": map[string]any{"age": 3},
		"load":    "bound:load",
	}, props)
}

func TestResolve_SectionAndPath(t *testing.T) {
	r := New(newSource(), nil)

	props := r.Resolve([]any{"user.state"}, false, both())
	assert.Equal(t, map[string]any{"user": map[string]any{"name": "x", "profile": map[string]any{"age": 3}}}, props)

	props = r.Resolve([]any{"user.actions"}, false, both())
	assert.Equal(t, map[string]any{"user": map[string]any{"load": "bound:load"}}, props)

	props = r.Resolve([]any{"user.state.profile.age"}, false, both())
	assert.Equal(t, map[string]any{"user": 3}, props)

	props = r.Resolve([]any{"user.state.profile"}, true, both())
	assert.Equal(t, map[string]any{"age": 3}, props)
}

func TestResolve_SignMapSkipsRepeatedModel(t *testing.T) {
	r := New(newSource(), nil)
	sign := SignMap{}

	props := r.ResolveWith([]any{"user.state.name", "user"}, false, both(), sign)
	assert.Equal(t, map[string]any{"user": "x"}, props)
	assert.True(t, sign["user"])
}

func TestResolve_Mapping(t *testing.T) {
	r := New(newSource(), nil)
	props := r.Resolve([]any{map[string]any{
		"userName": "user.state.name",
		"count":    map[string]any{"test": 1},
		"limit":    10,
		"missing":  "user.state.nope",
		"items":    "cart.state.items",
		"nothing":  nil,
	}}, true, both())

	assert.Equal(t, map[string]any{
		"userName": "x",
		"count":    map[string]any{"test": 1},
		"limit":    10,
		"items":    []any{"a"},
	}, props)
}

func TestResolve_MappingKeyMarkedOnce(t *testing.T) {
	r := New(newSource(), nil)
	props := r.Resolve([]any{
		map[string]any{"who": "user.state.name"},
		map[string]any{"who": "cart.state.items"},
	}, false, both())

	assert.Equal(t, map[string]any{"who": "x"}, props)
}

func TestResolve_UndefinedNotSigned(t *testing.T) {
	r := New(newSource(), nil)
	sign := SignMap{}
	props := r.ResolveWith([]any{
		map[string]any{"who": "user.state.nope"},
		map[string]any{"who": "user.state.name"},
	}, false, both(), sign)

	assert.Equal(t, map[string]any{"who": "x"}, props)
}

func TestResolve_Globals(t *testing.T) {
	r := New(newSource(), nil)

	props := r.Resolve([]any{"user.put"}, false, both())
	assert.Equal(t, map[string]any{"put": "user:put"}, props)

	props = r.Resolve([]any{map[string]any{"save": "cart.put"}}, false, both())
	assert.Equal(t, map[string]any{"save": "cart:put"}, props)

	props = r.Resolve([]any{"user.unknown"}, false, both())
	assert.Empty(t, props)
}

func TestResolve_UnknownModelLogsSuggestion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := New(newSource(), logger)

	props := r.Resolve([]any{"usr"}, false, both())
	assert.Equal(t, map[string]any{"usr": map[string]any{}}, props)
	assert.Contains(t, buf.String(), "did_you_mean=user")
}

func TestResolve_WrapperPanicReturnsPartialProps(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := New(newSource(), logger)

	sections := []Section{{Name: SectionState, Wrap: func(section any) map[string]any {
		s := section.(ir.State)
		if _, ok := s["items"]; ok {
			panic("cannot wrap cart")
		}
		return s
	}}}

	props := r.Resolve([]any{"user.state.name", "cart"}, false, sections)
	assert.Equal(t, map[string]any{"user": "x"}, props)
	assert.Contains(t, buf.String(), "binding resolution failed")
}

func TestResolve_UnsupportedDescriptor(t *testing.T) {
	r := New(newSource(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	props := r.Resolve([]any{42, nil, "user.state.name"}, false, both())
	assert.Equal(t, map[string]any{"user": "x"}, props)
}

func TestProps_TwoPasses(t *testing.T) {
	r := New(newSource(), nil)
	stateProps, actionProps := r.Props([]any{"user"}, false, stateWrap, actionWrap)

	assert.Equal(t, map[string]any{"user": map[string]any{"name": "x", "profile": map[string]any{"age": 3}}}, stateProps)
	assert.Equal(t, map[string]any{"user": map[string]any{"load": "bound:load"}}, actionProps)
}

func TestModels(t *testing.T) {
	models := Models([]any{
		"user.state.name",
		map[string]any{"b": "cart.actions", "a": "user", "c": 3},
		"order",
	})
	assert.Equal(t, []string{"user", "cart", "order"}, models)
}

func TestSelector_MemoizesOnRevision(t *testing.T) {
	src := newSource()
	calls := 0
	counting := func(section any) map[string]any {
		calls++
		return stateWrap(section)
	}
	sel := New(src, nil).Selector([]any{"user.state.name"}, false, Section{Name: SectionState, Wrap: counting})

	props, recomputed := sel.Select()
	require.True(t, recomputed)
	assert.Equal(t, map[string]any{"user": "x"}, props)

	_, recomputed = sel.Select()
	assert.False(t, recomputed)
	assert.Equal(t, 1, calls)

	// unrelated model changes do not invalidate
	src.revisions["cart"]++
	_, recomputed = sel.Select()
	assert.False(t, recomputed)

	src.state["user"]["name"] = "y"
	src.revisions["user"]++
	props, recomputed = sel.Select()
	assert.True(t, recomputed)
	assert.Equal(t, map[string]any{"user": "y"}, props)
	assert.Equal(t, 2, calls)

	sel.Invalidate()
	_, recomputed = sel.Select()
	assert.True(t, recomputed)
}

func TestSelector_ReturnsCopies(t *testing.T) {
	sel := New(newSource(), nil).Selector([]any{"user.state.name"}, false, Section{Name: SectionState, Wrap: stateWrap})
	props, _ := sel.Select()
	props["user"] = "mutated"

	again, _ := sel.Select()
	assert.Equal(t, "x", again["user"])
}
