// Package binding resolves consumer binding descriptors into props.
//
// A binding is either a dotted string ("user", "user.state", "user.state.name",
// "user.actions") or a mapping from prop name to a dotted string or a literal.
// The first segment of a dotted string names a model; the second names a
// section of that model ("state", "actions"), and the rest is a path into the
// wrapped section.
//
// Each resolution pass uses a fresh sign map. A string binding whose model is
// already signed is skipped; a mapping key that is already signed is skipped.
package binding

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/seed/internal/ir"
)

// Section names.
const (
	SectionState   = "state"
	SectionActions = "actions"
)

// Source is the read surface of a model registry.
type Source interface {
	// Section returns one section of a model ("state", "actions").
	Section(model, section string) (any, bool)
	// Revision returns the model's state revision. Unknown models report 0.
	Revision(model string) int64
}

// Globals is implemented by sources that expose model-bound helper functions
// (e.g. "put", "select") to bindings like "user.put".
type Globals interface {
	Global(model, name string) (any, bool)
}

// Suggester is implemented by sources that can suggest a model name.
type Suggester interface {
	Suggest(name string) string
}

// Wrapper turns a raw section value into the props it contributes.
// It receives nil when the model or section does not exist.
type Wrapper func(section any) map[string]any

// Section pairs a section name with the wrapper applied to it.
type Section struct {
	Name string
	Wrap Wrapper
}

// SignMap records which models and prop names a pass has already produced.
type SignMap map[string]bool

// Resolver resolves bindings against a Source.
type Resolver struct {
	src    Source
	logger *slog.Logger
}

// New creates a resolver. A nil logger uses slog.Default().
func New(src Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{src: src, logger: logger}
}

// Resolve runs one pass with a fresh sign map.
func (r *Resolver) Resolve(bindings []any, flattern bool, sections []Section) map[string]any {
	return r.ResolveWith(bindings, flattern, sections, SignMap{})
}

// ResolveWith runs one pass against the caller's sign map.
//
// Failures are logged and the props produced so far are returned.
func (r *Resolver) ResolveWith(bindings []any, flattern bool, sections []Section, sign SignMap) (props map[string]any) {
	props = map[string]any{}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("binding resolution failed", "bindings", fmt.Sprint(bindings), "panic", rec)
		}
	}()

	for _, b := range bindings {
		switch desc := b.(type) {
		case string:
			model, _, _ := strings.Cut(desc, ".")
			if sign[model] {
				continue
			}
			resolved, ok := r.resolvePath(desc, flattern, sections, "")
			if !ok {
				continue
			}
			for k, v := range resolved {
				props[k] = v
			}
			sign[model] = true
		case map[string]any:
			for _, key := range ir.SortedKeys(desc) {
				if sign[key] {
					continue
				}
				value, ok := r.resolveEntry(key, desc[key], sections)
				if !ok {
					continue
				}
				props[key] = value
				sign[key] = true
			}
		case nil:
		default:
			r.logger.Warn("unsupported binding descriptor", "type", fmt.Sprintf("%T", b))
		}
	}
	return props
}

func (r *Resolver) resolveEntry(key string, value any, sections []Section) (any, bool) {
	path, ok := value.(string)
	if !ok {
		return value, value != nil
	}
	resolved, ok := r.resolvePath(path, false, sections, key)
	if !ok {
		return nil, false
	}
	v, ok := resolved[key]
	return v, ok && v != nil
}

// resolvePath resolves one dotted string. The result is either the model's
// value nested under attrKey (default: the model name) or, when flattern is
// set, the value itself.
func (r *Resolver) resolvePath(path string, flattern bool, sections []Section, attrKey string) (map[string]any, bool) {
	segs := ir.SplitPath(path)
	if len(segs) == 0 || segs[0] == "" {
		r.logger.Warn("empty binding path")
		return nil, false
	}
	model := segs[0]
	explicit := attrKey != ""
	if !explicit {
		attrKey = model
	}
	r.checkModel(model)

	var value any
	if len(segs) == 1 {
		merged := map[string]any{}
		for _, s := range sections {
			raw, _ := r.src.Section(model, s.Name)
			for k, v := range s.Wrap(raw) {
				merged[k] = v
			}
		}
		value = merged
	} else {
		sec, ok := findSection(sections, segs[1])
		if !ok {
			// not a section this pass wraps; maybe a model-bound helper
			fn, ok := r.global(model, segs[1])
			if !ok {
				return nil, false
			}
			if explicit {
				return map[string]any{attrKey: fn}, true
			}
			return map[string]any{segs[1]: fn}, true
		}
		raw, _ := r.src.Section(model, sec.Name)
		v, found := ir.Lookup(sec.Wrap(raw), segs[2:])
		if !found {
			return nil, false
		}
		value = v
	}

	if flattern {
		obj, ok := value.(map[string]any)
		if !ok {
			return map[string]any{attrKey: value}, true
		}
		return obj, true
	}
	return map[string]any{attrKey: value}, true
}

func (r *Resolver) global(model, name string) (any, bool) {
	g, ok := r.src.(Globals)
	if !ok {
		return nil, false
	}
	return g.Global(model, name)
}

func (r *Resolver) checkModel(model string) {
	if _, ok := r.src.Section(model, SectionState); ok {
		return
	}
	attrs := []any{"model", model}
	if s, ok := r.src.(Suggester); ok {
		if hint := s.Suggest(model); hint != "" {
			attrs = append(attrs, "did_you_mean", hint)
		}
	}
	r.logger.Warn("binding references unknown model", attrs...)
}

func findSection(sections []Section, name string) (Section, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Models returns the distinct model names a binding list references, in
// first-seen order.
func Models(bindings []any) []string {
	var out []string
	seen := map[string]bool{}
	add := func(path string) {
		model, _, _ := strings.Cut(path, ".")
		if model != "" && !seen[model] {
			seen[model] = true
			out = append(out, model)
		}
	}
	for _, b := range bindings {
		switch desc := b.(type) {
		case string:
			add(desc)
		case map[string]any:
			for _, key := range ir.SortedKeys(desc) {
				if s, ok := desc[key].(string); ok {
					add(s)
				}
			}
		}
	}
	return out
}
