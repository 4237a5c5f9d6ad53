package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// effects builds a program whose effects only contain intent steps.
// Keys are "model.action", values the intents each effect puts.
func effects(edges map[string][]string) *Program {
	models := map[string]*ModelDecl{}
	var order []*ModelDecl
	for _, key := range sortedNames(edges) {
		model, action, _ := strings.Cut(key, ".")
		m, ok := models[model]
		if !ok {
			m = &ModelDecl{Name: model, Actions: map[string]ActionDecl{}}
			models[model] = m
			order = append(order, m)
		}
		steps := []Step{}
		for _, intent := range edges[key] {
			steps = append(steps, Step{Intent: intent})
		}
		m.Actions[action] = ActionDecl{Effect: steps}
	}
	return &Program{Models: order}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&Program{}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	p := effects(map[string][]string{
		"cart.checkout":  {"stock.reserve", "payment.charge"},
		"stock.reserve":  {},
		"payment.charge": {},
	})
	assert.Empty(t, AnalyzeCycles(p))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	p := effects(map[string][]string{
		"feed.poll": {"poll"},
	})

	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"feed.poll", "feed.poll"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Self-triggering effect")
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	p := effects(map[string][]string{
		"a.ping": {"b.pong"},
		"b.pong": {"a.ping"},
	})

	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.ping", "b.pong", "a.ping"}, warnings[0].Path)
	assert.Equal(t, "Potential effect cycle detected: a.ping → b.pong → a.ping", warnings[0].Message)
}

func TestAnalyzeCycles_ThreeNodeCycleWithTail(t *testing.T) {
	p := effects(map[string][]string{
		"a.x":   {"b.y"},
		"b.y":   {"c.z"},
		"c.z":   {"a.x", "d.end"},
		"d.end": {},
	})

	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.x", "b.y", "c.z", "a.x"}, warnings[0].Path)
}

func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	p := effects(map[string][]string{
		"a.one": {"a.two"},
		"a.two": {"a.one"},
		"z.one": {"z.one"},
	})

	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 2)
	assert.Equal(t, "a.one", warnings[0].Path[0])
	assert.Equal(t, "z.one", warnings[1].Path[0])
}

func TestAnalyzeCycles_IgnoresNonEffects(t *testing.T) {
	p := &Program{Models: []*ModelDecl{{
		Name: "m",
		Actions: map[string]ActionDecl{
			"run":  {Effect: []Step{{Intent: "load"}, {Put: "run"}}},
			"load": {},
		},
	}}}
	assert.Empty(t, AnalyzeCycles(p))
}

func TestIntentGraph_Components(t *testing.T) {
	dag := intentGraph{"a": {"b"}, "b": {"c"}, "c": nil}
	groups := dag.components()
	assert.Len(t, groups, 3)
	for _, g := range groups {
		assert.Len(t, g, 1)
	}

	loop := intentGraph{"a": {"b"}, "b": {"a"}}
	groups = loop.components()
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0])
}

func TestIntentGraph_SelfLoop(t *testing.T) {
	g := intentGraph{"a": {"a"}, "b": {"c"}}
	assert.True(t, g.selfLoop("a"))
	assert.False(t, g.selfLoop("b"))
}

func TestIntentGraph_CycleEmpty(t *testing.T) {
	assert.Empty(t, intentGraph{}.cycle(nil))
}
