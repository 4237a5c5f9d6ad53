package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeScenario writes a scenario over the shop models into dir.
func writeScenario(t *testing.T, dir, name, equals string) string {
	t.Helper()
	models, err := filepath.Abs("testdata/models")
	require.NoError(t, err)

	src := fmt.Sprintf(`name: %s
description: adds one item
specs: [%q]
steps:
  - call: cart.add
    args: ["apple"]
assertions:
  - type: state
    model: cart
    path: items
    equals: %s
`, name, models, equals)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestTestCommandPasses(t *testing.T) {
	out, err := executeTest(t, "text", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cart")
	assert.Contains(t, out, "✓ checkout_fails")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := executeTest(t, "text", "testdata/scenarios", "--filter", "checkout*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ checkout_fails")
	assert.NotContains(t, out, "✓ cart\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := executeTest(t, "json", "testdata/scenarios/cart.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "cart", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_items", `["pear"]`)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_items")
	assert.Contains(t, out, "Assertion failed: state")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommandLoadFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one_item", `["apple"]`)
	golden := filepath.Join(dir, "golden", "one_item.golden")

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ one_item (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"one_item"`)
	assert.Contains(t, string(data), `"type":"cart/add"`)

	out, err = executeTest(t, "json", dir)
	require.NoError(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"one_item","trace":[]}`), 0644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := executeTest(t, "text", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "cart.golden"), goldenFilePath(filepath.Join("scenarios", "cart.yaml")))
}
