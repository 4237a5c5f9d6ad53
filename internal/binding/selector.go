package binding

import (
	"maps"
	"sync"
)

// Props runs the two resolution passes a consumer needs: one over state
// sections, one over action sections. Each pass gets its own sign map.
func (r *Resolver) Props(bindings []any, flattern bool, state, actions Wrapper) (stateProps, actionProps map[string]any) {
	stateProps = r.Resolve(bindings, flattern, []Section{{Name: SectionState, Wrap: state}})
	actionProps = r.Resolve(bindings, flattern, []Section{{Name: SectionActions, Wrap: actions}})
	return stateProps, actionProps
}

// Selector memoizes one pass over a fixed binding list.
//
// The cached props are reused until the revision of any referenced model
// changes. Thread-safety: Select is safe for concurrent use.
type Selector struct {
	r        *Resolver
	bindings []any
	flattern bool
	sections []Section
	models   []string

	mu     sync.Mutex
	valid  bool
	revs   map[string]int64
	cached map[string]any
}

// Selector returns a memoized resolver for bindings.
func (r *Resolver) Selector(bindings []any, flattern bool, sections ...Section) *Selector {
	return &Selector{
		r:        r,
		bindings: bindings,
		flattern: flattern,
		sections: sections,
		models:   Models(bindings),
	}
}

// Select returns the current props and whether they were recomputed.
// The returned map is a copy; callers may modify it.
func (s *Selector) Select() (props map[string]any, recomputed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs := make(map[string]int64, len(s.models))
	for _, m := range s.models {
		revs[m] = s.r.src.Revision(m)
	}
	if s.valid && maps.Equal(revs, s.revs) {
		return maps.Clone(s.cached), false
	}

	s.cached = s.r.Resolve(s.bindings, s.flattern, s.sections)
	s.revs = revs
	s.valid = true
	return maps.Clone(s.cached), true
}

// Invalidate forces the next Select to recompute.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}
