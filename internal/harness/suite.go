package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int                `json:"total_scenarios"`
	Passed         int                `json:"passed"`
	Failed         int                `json:"failed"`
	Failures       []ScenarioFailure  `json:"failures,omitempty"`
	Results        map[string]*Result `json:"-"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Name         string   `json:"name,omitempty"`
	Errors       []string `json:"errors"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// FindScenarios returns the scenario files (*.yaml, *.yml) directly in dir,
// sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RunPaths loads and runs each scenario file. A scenario that cannot be
// loaded or run counts as failed; the rest still run.
func RunPaths(paths []string, opts ...Option) *SuiteResult {
	result := &SuiteResult{Results: make(map[string]*Result, len(paths))}

	for _, path := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		run, err := Run(scenario, opts...)
		if err != nil {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		result.Results[path] = run

		if !run.Pass {
			result.fail(path, scenario.Name, run.Errors...)
			continue
		}
		result.Passed++
	}
	return result
}

// RunDir runs every scenario in dir.
func RunDir(dir string, opts ...Option) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	return RunPaths(paths, opts...), nil
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: path,
		Name:         name,
		Errors:       errs,
	})
}
