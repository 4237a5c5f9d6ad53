package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/ir"
)

const todosSpec = "testdata/models/todos.cue"

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_FetchTodos(t *testing.T) {
	result, err := Run(loadScenario(t, "fetch_todos"))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)

	names := make([]string, len(result.Trace))
	for i, e := range result.Trace {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"todos/fetch/start", "todos/fetch/success", "todos/add"}, names)
	assert.Equal(t, "inv-1", result.Trace[0].Invocation)
	assert.Equal(t, "inv-2", result.Trace[2].Invocation)

	assert.Equal(t, ir.State{"added": int64(1)}, result.State["stats"])
	assert.Equal(t, int64(1), result.Revisions["stats"])
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "/api/todos", result.Requests[0].URL)
}

func TestRun_NestedIntentsSettleBetweenSteps(t *testing.T) {
	result, err := Run(loadScenario(t, "reload"))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, "todos.refresh", result.Trace[2].Intent)
	assert.Empty(t, result.Trace[2].Invocation)
	assert.Equal(t, "todos/clear", result.Trace[3].Type)
}

func TestRun_ExpectedError(t *testing.T) {
	result, err := Run(loadScenario(t, "fetch_error"))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.True(t, last.Error)
	assert.Equal(t, "service unavailable", last.Message)
}

func TestRun_ExpectationFailuresAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "every step misses its expectation",
		Specs:       []string{todosSpec},
		Responses:   []Response{{URL: "/api/todos", Data: map[string]any{"items": []any{}}}},
		Steps: []Step{
			{Call: "todos.fetch", Expect: &Expect{Data: map[string]any{"items": []any{"z"}}}},
			{Call: "todos.fetch", Expect: &Expect{Error: "boom"}},
			{Call: "todos.missing"},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "todos/fetch/success", Count: 2}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `steps[0] todos.fetch: expected result {"items":["z"]}, got {"items":[]}`)
	assert.Contains(t, result.Errors[1], `expected error containing "boom", got success`)
	assert.Contains(t, result.Errors[2], "steps[2] todos.missing: unexpected error")
}

func TestRun_SetupAndDispatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "dispatch",
		Description: "raw dispatches reach reducers",
		Specs:       []string{todosSpec},
		Setup: []Step{
			{Call: "todos.add", Args: []any{"seed"}},
		},
		Steps: []Step{
			{Dispatch: &DispatchStep{Type: "todos/clear"}},
			{Dispatch: &DispatchStep{Intent: "todos.missing"}, Expect: &Expect{Error: "todos.missing"}},
		},
		Assertions: []Assertion{
			{Type: AssertState, Model: "todos", Path: "items", Equals: []any{}},
			{Type: AssertState, Model: "stats", Path: "added", Equals: 1},
			{Type: AssertReplay},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Trace, 2)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "setup",
		Description: "setup must succeed",
		Specs:       []string{todosSpec},
		Setup:       []Step{{Call: "todos.fetch"}},
		Steps:       []Step{{Call: "todos.add"}},
		Assertions:  []Assertion{{Type: AssertReplay}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] todos.fetch")
	assert.Contains(t, err.Error(), "no canned response for GET /api/todos")
}

func TestRun_InvalidSpecs(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "specs do not load",
		Specs:       []string{"testdata/models/nope.cue"},
		Steps:       []Step{{Call: "a.b"}},
		Assertions:  []Assertion{{Type: AssertReplay}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "failed to load specs")
}

func TestRun_InvocationPrefix(t *testing.T) {
	scenario := &Scenario{
		Name:             "prefix",
		Description:      "custom invocation prefix",
		Specs:            []string{todosSpec},
		InvocationPrefix: "call",
		Timeout:          time.Second,
		Steps:            []Step{{Call: "todos.add", Args: []any{"a"}}},
		Assertions:       []Assertion{{Type: AssertTraceContains, Action: "todos/add"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.Equal(t, "call-1", result.Trace[0].Invocation)
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadScenario(t, "reload"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "reload"))
	require.NoError(t, err)
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}
