package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/seed/internal/ir"
)

// Scenario is a conformance test: models, canned responses, a sequence of
// calls and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE model files or directories, relative to the scenario
	// file when loaded with LoadScenario.
	Specs []string `yaml:"specs"`

	// Responses answer request descriptors by url and method.
	Responses []Response `yaml:"responses,omitempty"`

	// Setup steps run first and must succeed; their expect clauses are
	// ignored.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps run in order after setup.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// InvocationPrefix prefixes generated invocation ids. Default "inv".
	InvocationPrefix string `yaml:"invocation_prefix,omitempty"`

	// Timeout bounds each step. Default 5s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Response is a canned answer for the stub request layer.
type Response struct {
	URL string `yaml:"url"`

	// Method defaults to GET.
	Method string `yaml:"method,omitempty"`

	// Data is the decoded response body.
	Data any `yaml:"data,omitempty"`

	// Error, when set, fails the request with this message.
	Error string `yaml:"error,omitempty"`
}

// Step is one call or one raw dispatch.
type Step struct {
	// Call is a dotted action name, e.g. "users.load".
	Call string `yaml:"call,omitempty"`

	// Args are the call arguments. A trailing false suppresses dispatch.
	Args []any `yaml:"args,omitempty"`

	// Dispatch sends an action directly, bypassing processors.
	Dispatch *DispatchStep `yaml:"dispatch,omitempty"`

	// Expect checks the call's result. Nil expects any successful result.
	Expect *Expect `yaml:"expect,omitempty"`
}

// DispatchStep is a raw action.
type DispatchStep struct {
	Type   string `yaml:"type,omitempty"`
	Intent string `yaml:"intent,omitempty"`
	Data   any    `yaml:"data,omitempty"`
}

// Expect describes a call's expected outcome.
type Expect struct {
	// Data is the expected resolved value.
	Data any `yaml:"data,omitempty"`

	// Error, when set, expects a rejection whose message contains it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Model names the model (state, revision).
	Model string `yaml:"model,omitempty"`

	// Path is a dotted path into the model's state (state). Empty means the
	// whole slice.
	Path string `yaml:"path,omitempty"`

	// Equals is the expected value (state).
	Equals any `yaml:"equals,omitempty"`

	// Action is an action type or intent name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Data is a subset of the expected payload data (trace_contains).
	Data any `yaml:"data,omitempty"`

	// Actions is the expected delivery order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of deliveries (trace_count).
	Count int `yaml:"count,omitempty"`

	// Min is the smallest acceptable revision (revision).
	Min int64 `yaml:"min,omitempty"`
}

// Assertion type constants.
const (
	AssertState         = "state"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRevision      = "revision"
	AssertReplay        = "replay"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// relative spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := checkSpecPaths(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field checking. Spec paths
// are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}

	for i, r := range s.Responses {
		if r.URL == "" {
			return fmt.Errorf("responses[%d]: url is required", i)
		}
	}
	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func checkSpecPaths(s *Scenario) error {
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Call != "" && step.Dispatch != nil:
		return fmt.Errorf("call and dispatch are exclusive")
	case step.Call == "" && step.Dispatch == nil:
		return fmt.Errorf("call or dispatch is required")
	case step.Dispatch != nil:
		if (step.Dispatch.Type == "") == (step.Dispatch.Intent == "") {
			return fmt.Errorf("dispatch needs exactly one of type or intent")
		}
		if step.Expect != nil && step.Expect.Data != nil {
			return fmt.Errorf("dispatch steps can only expect an error")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for state", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRevision:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for revision", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// normalize converts a YAML-decoded value to the engine's value model:
// plain maps and slices with int64 integers.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported value %v: %w", v, err)
	}
	return ir.DecodeJSON(data)
}

func normalizeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := normalize(arg)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
