package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/seed/internal/actiontype"
)

// CycleWarning is a loop of effects that trigger each other via intents.
//
// Cycles are warnings, not errors: a polling effect that re-arms itself is a
// legitimate loop as long as something stops it.
type CycleWarning struct {
	Path    []string `json:"path"` // ["a.poll", "b.sync", "a.poll"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning"
}

// AnalyzeCycles reports every group of effects that can re-trigger itself
// through intent steps. Intents naming actions that are not effects add no
// edges, since nothing is driven for them.
func AnalyzeCycles(p *Program) []CycleWarning {
	g := newIntentGraph(p)
	warnings := []CycleWarning{}
	for _, group := range g.components() {
		if len(group) == 1 && !g.selfLoop(group[0]) {
			continue
		}
		warnings = append(warnings, g.warning(group))
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// intentGraph has an edge from each effect to the effects its intent
// steps start. Nodes are dotted intent names.
type intentGraph map[string][]string

func newIntentGraph(p *Program) intentGraph {
	g := intentGraph{}
	if p == nil {
		return g
	}
	for _, m := range p.Models {
		for name, a := range m.Actions {
			if a.Effect != nil {
				g[actiontype.ToAction(m.Name, name)] = nil
			}
		}
	}
	for _, m := range p.Models {
		for _, name := range sortedNames(m.Actions) {
			from := actiontype.ToAction(m.Name, name)
			if _, ok := g[from]; !ok {
				continue
			}
			for _, step := range m.Actions[name].Effect {
				to := step.Intent
				if to == "" {
					continue
				}
				if !strings.Contains(to, ".") {
					to = actiontype.ToAction(m.Name, to)
				}
				if _, ok := g[to]; ok {
					g[from] = append(g[from], to)
				}
			}
		}
	}
	return g
}

func (g intentGraph) selfLoop(node string) bool {
	return slices.Contains(g[node], node)
}

// components returns the strongly connected components (Tarjan), visiting
// nodes in name order so the output is stable.
func (g intentGraph) components() [][]string {
	var (
		next    int
		index   = map[string]int{}
		low     = map[string]int{}
		onStack = map[string]bool{}
		stack   []string
		groups  [][]string
	)

	var visit func(v string)
	visit = func(v string) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}

		var group []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			group = append(group, w)
			if w == v {
				break
			}
		}
		groups = append(groups, group)
	}

	for _, node := range sortedNames(g) {
		if _, seen := index[node]; !seen {
			visit(node)
		}
	}
	return groups
}

func (g intentGraph) warning(group []string) CycleWarning {
	if len(group) == 1 {
		node := group[0]
		return CycleWarning{
			Path:    []string{node, node},
			Message: fmt.Sprintf("Self-triggering effect detected: %s → %s", node, node),
			Level:   "warning",
		}
	}
	path := g.cycle(group)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential effect cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// cycle walks the group's edges from its smallest member, always taking the
// first unvisited neighbour inside the group, until it gets back to the start.
func (g intentGraph) cycle(group []string) []string {
	if len(group) == 0 {
		return []string{}
	}
	inGroup := map[string]bool{}
	for _, n := range group {
		inGroup[n] = true
	}
	start := slices.Min(group)
	path := []string{start}
	visited := map[string]bool{start: true}

	for current := start; ; {
		next := ""
		for _, w := range g[current] {
			if inGroup[w] && (w == start || !visited[w]) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
