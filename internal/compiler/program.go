package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
)

// Program is every model and resource declared by a set of model files.
type Program struct {
	// Models are in declaration order.
	Models []*ModelDecl `json:"models"`

	// Resources map model name to action name to request descriptor.
	Resources map[string]map[string]*ir.Request `json:"resources,omitempty"`
}

// Model returns the declaration with the given name.
func (p *Program) Model(name string) (*ModelDecl, bool) {
	for _, m := range p.Models {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// CompileProgram reads the top-level "model" and "resource" structs.
//
//	model: counter: { ... }
//	resource: users: load: { url: "/api/users" }
//
// All compile errors are collected; models that fail are left out.
func CompileProgram(v cue.Value) (*Program, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	p := &Program{Resources: map[string]map[string]*ir.Request{}}
	var errs []error

	if mv := v.LookupPath(cue.ParsePath("model")); mv.Exists() {
		iter, err := mv.Fields()
		if err != nil {
			return nil, []error{formatCUEError(err)}
		}
		for iter.Next() {
			decl, err := CompileModel(iter.Value())
			if err != nil {
				errs = append(errs, err)
				continue
			}
			p.Models = append(p.Models, decl)
		}
	}

	if rv := v.LookupPath(cue.ParsePath("resource")); rv.Exists() {
		models, err := rv.Fields()
		if err != nil {
			return nil, append(errs, formatCUEError(err))
		}
		for models.Next() {
			model := label(models)
			actions, err := models.Value().Fields()
			if err != nil {
				errs = append(errs, formatCUEError(err))
				continue
			}
			for actions.Next() {
				action := label(actions)
				req, err := parseRequest(actions.Value(), fmt.Sprintf("resource.%s.%s", model, action))
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if p.Resources[model] == nil {
					p.Resources[model] = map[string]*ir.Request{}
				}
				p.Resources[model][action] = req
			}
		}
	}
	return p, errs
}

func (p *Program) merge(other *Program) {
	p.Models = append(p.Models, other.Models...)
	for model, actions := range other.Resources {
		if p.Resources[model] == nil {
			p.Resources[model] = map[string]*ir.Request{}
		}
		for action, req := range actions {
			p.Resources[model][action] = req
		}
	}
}

// Specs builds a model spec for every model, in declaration order.
func (p *Program) Specs() ([]engine.ModelSpec, error) {
	specs := make([]engine.ModelSpec, 0, len(p.Models))
	for _, decl := range p.Models {
		spec, err := Build(decl)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", decl.Name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Resource returns the engine resource for a model, or nil.
func (p *Program) Resource(model string) engine.Resource {
	reqs := p.Resources[model]
	if len(reqs) == 0 {
		return nil
	}
	res := make(engine.Resource, len(reqs))
	for action, req := range reqs {
		res[action] = *req
	}
	return res
}

// Register builds every model and registers it with its resource.
// Registration continues past failures; all errors are joined.
func (p *Program) Register(es *engine.Store) error {
	specs, err := p.Specs()
	if err != nil {
		return err
	}
	var errs []error
	for _, spec := range specs {
		if err := es.Register(spec, p.Resource(spec.Name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
