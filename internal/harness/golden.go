package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/seed/internal/ir"
)

// TraceSnapshot is what a golden file records for a scenario run.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Trace        []TraceEvent        `json:"trace"`
	State        map[string]ir.State `json:"state,omitempty"`
}

// Canonical serializes the snapshot with ir.MarshalCanonical.
func (s TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s)
}

// Snapshot returns the golden-file view of a result.
func (r *Result) Snapshot() TraceSnapshot {
	return TraceSnapshot{ScenarioName: r.Scenario, Trace: r.Trace, State: r.State}
}

// RunWithGolden executes a scenario and compares its trace and final state
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A mismatch fails t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := result.Snapshot()
	snapshot.ScenarioName = scenarioName
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
