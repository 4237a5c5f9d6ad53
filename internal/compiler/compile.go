package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/seed/internal/ir"
)

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	modelFields  = []string{"state", "reducers", "actions", "subscriptions"}
	actionFields = []string{"exec", "reducer", "lifecycle", "effect", "data", "noDispatch"}
	opFields     = []string{"op", "field", "from", "value"}
	stepFields   = []string{"put", "intent", "select", "data", "from"}
	execFields   = []string{"url", "method", "data", "headers"}
	statusFields = []string{"start", "success", "error"}
)

// CompileModel parses one model struct into a declaration.
//
// The value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: counter: { state: count: 0 }`)
//	decl, err := CompileModel(v.LookupPath(cue.ParsePath("model.counter")))
//
// The model name is taken from the value's last path selector. Compilation
// checks shape only; Validate checks semantics.
func CompileModel(v cue.Value) (*ModelDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "model", Message: "model must be a struct", Pos: v.Pos()}
	}

	decl := &ModelDecl{Pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		decl.Name = selectorName(sels[len(sels)-1])
	}
	if err := checkFields(v, "model", modelFields); err != nil {
		return nil, err
	}

	if sv := v.LookupPath(cue.ParsePath("state")); sv.Exists() {
		raw, err := decodeValue(sv, "state")
		if err != nil {
			return nil, err
		}
		state, ok := raw.(map[string]any)
		if !ok {
			return nil, &CompileError{Field: "state", Message: "state must be a struct", Pos: sv.Pos()}
		}
		decl.State = state
	}

	var err error
	if decl.Reducers, err = parseReducers(v); err != nil {
		return nil, err
	}
	if decl.Actions, err = parseActions(v); err != nil {
		return nil, err
	}
	if decl.Subscriptions, err = parseSubscriptions(v); err != nil {
		return nil, err
	}
	return decl, nil
}

func parseReducers(v cue.Value) (map[string]Op, error) {
	rv := v.LookupPath(cue.ParsePath("reducers"))
	if !rv.Exists() {
		return nil, nil
	}
	iter, err := rv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]Op)
	for iter.Next() {
		name := label(iter)
		op, err := parseOp(iter.Value(), "reducers."+name)
		if err != nil {
			return nil, err
		}
		out[name] = *op
	}
	return out, nil
}

func parseActions(v cue.Value) (map[string]ActionDecl, error) {
	av := v.LookupPath(cue.ParsePath("actions"))
	if !av.Exists() {
		return nil, nil
	}
	iter, err := av.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]ActionDecl)
	for iter.Next() {
		name := label(iter)
		action, err := parseAction(iter.Value(), "actions."+name)
		if err != nil {
			return nil, err
		}
		out[name] = *action
	}
	return out, nil
}

func parseAction(v cue.Value, field string) (*ActionDecl, error) {
	if err := requireStruct(v, field); err != nil {
		return nil, err
	}
	if err := checkFields(v, field, actionFields); err != nil {
		return nil, err
	}

	action := &ActionDecl{Pos: v.Pos()}

	if ev := v.LookupPath(cue.ParsePath("exec")); ev.Exists() {
		req, err := parseRequest(ev, field+".exec")
		if err != nil {
			return nil, err
		}
		action.Exec = req
	}
	if rv := v.LookupPath(cue.ParsePath("reducer")); rv.Exists() {
		op, err := parseOp(rv, field+".reducer")
		if err != nil {
			return nil, err
		}
		action.Reducer = op
	}
	if lv := v.LookupPath(cue.ParsePath("lifecycle")); lv.Exists() {
		lc, err := parseLifecycle(lv, field+".lifecycle")
		if err != nil {
			return nil, err
		}
		action.Lifecycle = lc
	}
	if ev := v.LookupPath(cue.ParsePath("effect")); ev.Exists() {
		steps, err := parseSteps(ev, field+".effect")
		if err != nil {
			return nil, err
		}
		action.Effect = steps
	}
	if dv := v.LookupPath(cue.ParsePath("data")); dv.Exists() {
		data, err := decodeValue(dv, field+".data")
		if err != nil {
			return nil, err
		}
		action.Data = data
	}
	if nv := v.LookupPath(cue.ParsePath("noDispatch")); nv.Exists() {
		b, err := nv.Bool()
		if err != nil {
			return nil, &CompileError{Field: field + ".noDispatch", Message: "noDispatch must be a bool", Pos: nv.Pos()}
		}
		action.NoDispatch = b
	}
	return action, nil
}

// parseRequest reads a request descriptor. A bare string is shorthand for
// a GET of that URL.
func parseRequest(v cue.Value, field string) (*ir.Request, error) {
	if v.IncompleteKind() == cue.StringKind {
		url, _ := v.String()
		return &ir.Request{URL: url}, nil
	}
	if err := requireStruct(v, field); err != nil {
		return nil, err
	}
	if err := checkFields(v, field, execFields); err != nil {
		return nil, err
	}

	req := &ir.Request{}
	var err error
	if req.URL, err = optionalString(v, "url", field); err != nil {
		return nil, err
	}
	if req.Method, err = optionalString(v, "method", field); err != nil {
		return nil, err
	}
	if dv := v.LookupPath(cue.ParsePath("data")); dv.Exists() {
		raw, err := decodeValue(dv, field+".data")
		if err != nil {
			return nil, err
		}
		data, ok := raw.(map[string]any)
		if !ok {
			return nil, &CompileError{Field: field + ".data", Message: "data must be a struct", Pos: dv.Pos()}
		}
		req.Data = data
	}
	if hv := v.LookupPath(cue.ParsePath("headers")); hv.Exists() {
		headers := map[string]string{}
		if err := hv.Decode(&headers); err != nil {
			return nil, &CompileError{Field: field + ".headers", Message: "headers must map names to strings", Pos: hv.Pos()}
		}
		req.Headers = headers
	}
	return req, nil
}

func parseLifecycle(v cue.Value, field string) (LifecycleDecl, error) {
	var lc LifecycleDecl
	if err := requireStruct(v, field); err != nil {
		return lc, err
	}
	if err := checkFields(v, field, statusFields); err != nil {
		return lc, err
	}
	for _, status := range statusFields {
		sv := v.LookupPath(cue.MakePath(cue.Str(status)))
		if !sv.Exists() {
			continue
		}
		op, err := parseOp(sv, field+"."+status)
		if err != nil {
			return lc, err
		}
		switch status {
		case "start":
			lc.Start = op
		case "success":
			lc.Success = op
		case "error":
			lc.Error = op
		}
	}
	return lc, nil
}

func parseSubscriptions(v cue.Value) (map[string]SubscriptionDecl, error) {
	sv := v.LookupPath(cue.ParsePath("subscriptions"))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]SubscriptionDecl)
	for iter.Next() {
		key := label(iter)
		field := fmt.Sprintf("subscriptions[%q]", key)
		value := iter.Value()
		if err := requireStruct(value, field); err != nil {
			return nil, err
		}

		sub := SubscriptionDecl{Pos: value.Pos()}
		if value.LookupPath(cue.ParsePath("op")).Exists() {
			op, err := parseOp(value, field)
			if err != nil {
				return nil, err
			}
			sub.Reducer = op
		} else {
			lc, err := parseLifecycle(value, field)
			if err != nil {
				return nil, err
			}
			sub.Lifecycle = lc
		}
		out[key] = sub
	}
	return out, nil
}

func parseOp(v cue.Value, field string) (*Op, error) {
	if err := requireStruct(v, field); err != nil {
		return nil, err
	}
	if err := checkFields(v, field, opFields); err != nil {
		return nil, err
	}

	op := &Op{Pos: v.Pos()}
	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	var err error
	if op.Op, err = opVal.String(); err != nil {
		return nil, &CompileError{Field: field + ".op", Message: "op must be a string", Pos: opVal.Pos()}
	}
	if op.Field, err = optionalString(v, "field", field); err != nil {
		return nil, err
	}
	if op.From, err = optionalString(v, "from", field); err != nil {
		return nil, err
	}
	if vv := v.LookupPath(cue.ParsePath("value")); vv.Exists() {
		if op.Value, err = decodeValue(vv, field+".value"); err != nil {
			return nil, err
		}
		op.HasValue = true
	}
	return op, nil
}

func parseSteps(v cue.Value, field string) ([]Step, error) {
	if v.IncompleteKind() != cue.ListKind {
		return nil, &CompileError{Field: field, Message: "effect must be a list of steps", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var steps []Step
	for i := 0; iter.Next(); i++ {
		sf := fmt.Sprintf("%s[%d]", field, i)
		sv := iter.Value()
		if err := requireStruct(sv, sf); err != nil {
			return nil, err
		}
		if err := checkFields(sv, sf, stepFields); err != nil {
			return nil, err
		}

		step := Step{Pos: sv.Pos()}
		if step.Put, err = optionalString(sv, "put", sf); err != nil {
			return nil, err
		}
		if step.Intent, err = optionalString(sv, "intent", sf); err != nil {
			return nil, err
		}
		if step.Select, err = optionalString(sv, "select", sf); err != nil {
			return nil, err
		}
		if step.From, err = optionalString(sv, "from", sf); err != nil {
			return nil, err
		}
		if dv := sv.LookupPath(cue.ParsePath("data")); dv.Exists() {
			if step.Data, err = decodeValue(dv, sf+".data"); err != nil {
				return nil, err
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// decodeValue converts a concrete CUE value to a plain value tree with
// int64 integers, the same shape actions have after a journal round trip.
func decodeValue(v cue.Value, field string) (any, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	out, err := ir.DecodeJSON(data)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return out, nil
}

func optionalString(v cue.Value, name, field string) (string, error) {
	sv := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + name, Message: name + " must be a string", Pos: sv.Pos()}
	}
	return s, nil
}

func requireStruct(v cue.Value, field string) error {
	if v.IncompleteKind() != cue.StructKind {
		return &CompileError{Field: field, Message: fmt.Sprintf("expected struct, got %s", v.IncompleteKind()), Pos: v.Pos()}
	}
	return nil
}

// checkFields rejects fields outside allowed, which are almost always typos.
func checkFields(v cue.Value, field string, allowed []string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := label(iter)
		if contains(allowed, name) {
			continue
		}
		sorted := append([]string(nil), allowed...)
		sort.Strings(sorted)
		return &CompileError{
			Field:   field + "." + name,
			Message: fmt.Sprintf("unknown field %q (allowed: %s)", name, strings.Join(sorted, ", ")),
			Pos:     iter.Value().Pos(),
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func label(iter *cue.Iterator) string {
	return selectorName(iter.Selector())
}

func selectorName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
