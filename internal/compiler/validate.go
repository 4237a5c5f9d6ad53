package compiler

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedType = "E100" // unsupported value for validation

	// Model errors (E101-E109)
	ErrInvalidModelName    = "E101" // model name missing or malformed
	ErrUnknownOp           = "E102" // reducer op not recognised
	ErrOpMissingField      = "E103" // op needs a field
	ErrConflictingShape    = "E104" // action mixes exec and effect
	ErrInvalidStep         = "E105" // effect step malformed
	ErrInvalidSubscription = "E106" // subscription key malformed
	ErrMissingURL          = "E107" // request descriptor without url
	ErrInvalidMethod       = "E108" // unsupported HTTP method
	ErrEmptySubscription   = "E109" // subscription without reducer

	// Program errors (E110-E119)
	ErrUnknownResourceModel  = "E110" // resource names an undeclared model
	ErrUnknownResourceAction = "E111" // resource names an undeclared action
	ErrDuplicateModel        = "E112" // model declared twice
	ErrInvalidActionName     = "E113" // action or reducer name malformed
	ErrUnknownSubscribedType = "E114" // subscription names an undeclared action
)

// ValidationError is a semantic problem in a declaration.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a *ModelDecl or *Program.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch d := v.(type) {
	case *ModelDecl:
		return validateModel(d)
	case ModelDecl:
		return validateModel(&d)
	case *Program:
		return validateProgram(d)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type for validation: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// namePattern matches model and action names: they must not contain the
// "/" or "." separators used by action types and intents.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateModel(m *ModelDecl) []ValidationError {
	var errs []ValidationError

	if !namePattern.MatchString(m.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid model name %q", m.Name),
			Code:    ErrInvalidModelName,
			Line:    m.Pos.Line(),
		})
	}

	for _, name := range sortedNames(m.Reducers) {
		field := "reducers." + name
		errs = append(errs, validateName(name, field, m.Reducers[name].Pos.Line())...)
		errs = append(errs, validateOp(m.Reducers[name], field)...)
	}

	for _, name := range sortedNames(m.Actions) {
		action := m.Actions[name]
		field := "actions." + name
		errs = append(errs, validateName(name, field, action.Pos.Line())...)
		errs = append(errs, validateAction(action, field)...)
	}

	for _, key := range sortedNames(m.Subscriptions) {
		errs = append(errs, validateSubscription(key, m.Subscriptions[key])...)
	}

	return errs
}

func validateName(name, field string, line int) []ValidationError {
	if namePattern.MatchString(name) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("invalid name %q", name),
		Code:    ErrInvalidActionName,
		Line:    line,
	}}
}

func validateAction(a ActionDecl, field string) []ValidationError {
	var errs []ValidationError
	line := a.Pos.Line()

	if a.Exec != nil && a.Effect != nil {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "an action is either exec or effect, not both",
			Code:    ErrConflictingShape,
			Line:    line,
		})
	}
	if a.Effect != nil && a.Data != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".data",
			Message: "effect actions take their data from call arguments",
			Code:    ErrConflictingShape,
			Line:    line,
		})
	}
	if a.Effect != nil && len(a.Effect) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".effect",
			Message: "effect has no steps",
			Code:    ErrInvalidStep,
			Line:    line,
		})
	}

	if a.Exec != nil {
		errs = append(errs, validateRequest(*a.Exec, field+".exec", line)...)
	}
	for i, step := range a.Effect {
		if err := checkStep(step); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.effect[%d]", field, i),
				Message: err.Error(),
				Code:    ErrInvalidStep,
				Line:    step.Pos.Line(),
			})
		}
	}
	if a.Reducer != nil {
		errs = append(errs, validateOp(*a.Reducer, field+".reducer")...)
	}
	errs = append(errs, validateLifecycle(a.Lifecycle, field+".lifecycle")...)
	return errs
}

func validateLifecycle(lc LifecycleDecl, field string) []ValidationError {
	var errs []ValidationError
	if lc.Start != nil {
		errs = append(errs, validateOp(*lc.Start, field+".start")...)
	}
	if lc.Success != nil {
		errs = append(errs, validateOp(*lc.Success, field+".success")...)
	}
	if lc.Error != nil {
		errs = append(errs, validateOp(*lc.Error, field+".error")...)
	}
	return errs
}

func validateOp(op Op, field string) []ValidationError {
	line := op.Pos.Line()
	if !contains(Ops, op.Op) {
		return []ValidationError{{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown op %q, expected one of %s", op.Op, strings.Join(Ops, ", ")),
			Code:    ErrUnknownOp,
			Line:    line,
		}}
	}
	switch op.Op {
	case OpSet, OpAppend, OpIncrement, OpDelete:
		if op.Field == "" {
			return []ValidationError{{
				Field:   field + ".field",
				Message: fmt.Sprintf("op %q requires a field", op.Op),
				Code:    ErrOpMissingField,
				Line:    line,
			}}
		}
	}
	return nil
}

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func validateRequest(req ir.Request, field string, line int) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(req.URL) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".url",
			Message: "request descriptor requires a url",
			Code:    ErrMissingURL,
			Line:    line,
		})
	}
	if req.Method != "" && !methods[strings.ToUpper(req.Method)] {
		errs = append(errs, ValidationError{
			Field:   field + ".method",
			Message: fmt.Sprintf("unsupported method %q", req.Method),
			Code:    ErrInvalidMethod,
			Line:    line,
		})
	}
	return errs
}

func validateSubscription(key string, sub SubscriptionDecl) []ValidationError {
	field := fmt.Sprintf("subscriptions[%q]", key)
	line := sub.Pos.Line()

	_, _, status, err := actiontype.ParseKey(key)
	if err != nil {
		return []ValidationError{{
			Field:   field,
			Message: err.Error(),
			Code:    ErrInvalidSubscription,
			Line:    line,
		}}
	}

	if sub.Reducer == nil && sub.Lifecycle.empty() {
		return []ValidationError{{
			Field:   field,
			Message: "subscription needs an op or start/success/error reducers",
			Code:    ErrEmptySubscription,
			Line:    line,
		}}
	}
	if status != "" && sub.Reducer == nil {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("key already names status %q; give a single op", status),
			Code:    ErrEmptySubscription,
			Line:    line,
		}}
	}

	if sub.Reducer != nil {
		return validateOp(*sub.Reducer, field)
	}
	return validateLifecycle(sub.Lifecycle, field)
}

func validateProgram(p *Program) []ValidationError {
	var errs []ValidationError
	seen := map[string]bool{}

	for _, m := range p.Models {
		if seen[m.Name] {
			errs = append(errs, ValidationError{
				Field:   "model." + m.Name,
				Message: "model declared more than once",
				Code:    ErrDuplicateModel,
				Line:    m.Pos.Line(),
			})
			continue
		}
		seen[m.Name] = true
		for _, e := range validateModel(m) {
			e.Field = "model." + m.Name + "." + e.Field
			errs = append(errs, e)
		}
	}

	for _, model := range sortedNames(p.Resources) {
		decl, ok := p.Model(model)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   "resource." + model,
				Message: fmt.Sprintf("resource for undeclared model %q", model),
				Code:    ErrUnknownResourceModel,
			})
			continue
		}
		for _, action := range sortedNames(p.Resources[model]) {
			field := "resource." + model + "." + action
			a, ok := decl.Actions[action]
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("model %q declares no action %q", model, action),
					Code:    ErrUnknownResourceAction,
				})
				continue
			}
			if a.Effect != nil {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "effect actions cannot take a resource",
					Code:    ErrConflictingShape,
					Line:    a.Pos.Line(),
				})
			}
			errs = append(errs, validateRequest(*p.Resources[model][action], field, 0)...)
		}
	}

	// Subscriptions to models inside the program must name a declared
	// action. Keys naming models outside it are left alone.
	for _, m := range p.Models {
		for _, key := range sortedNames(m.Subscriptions) {
			owner, action, _, err := actiontype.ParseKey(key)
			if err != nil {
				continue
			}
			target, ok := p.Model(owner)
			if !ok {
				continue
			}
			if _, declared := target.Actions[action]; declared {
				continue
			}
			if _, reducer := target.Reducers[action]; reducer {
				continue
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("model.%s.subscriptions[%q]", m.Name, key),
				Message: fmt.Sprintf("model %q declares no action %q", owner, action),
				Code:    ErrUnknownSubscribedType,
				Line:    m.Subscriptions[key].Pos.Line(),
			})
		}
	}

	return errs
}

func sortedNames[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
