package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "fetch_error.yaml"),
		filepath.Join("testdata", "scenarios", "fetch_todos.yaml"),
		filepath.Join("testdata", "scenarios", "reload.yaml"),
	}, paths)

	_, err = FindScenarios("testdata/nope")
	assert.Error(t, err)
}

func TestRunDir_AllPass(t *testing.T) {
	result, err := RunDir("testdata/scenarios")
	require.NoError(t, err)
	assert.True(t, result.OK(), result.Failures)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Passed)
	assert.Len(t, result.Results, 3)
}

func TestRunPaths_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	failing := filepath.Join(dir, "failing.yaml")
	spec, err := filepath.Abs(todosSpec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(failing, []byte(`
name: failing
description: wrong count
specs: [`+spec+`]
steps: [{call: todos.add, args: [a]}]
assertions: [{type: trace_count, action: todos/add, count: 2}]
`), 0o644))

	result := RunPaths([]string{
		"testdata/scenarios/reload.yaml",
		failing,
		"testdata/broken/typo.yaml",
	})
	assert.False(t, result.OK())
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "failing", result.Failures[0].Name)
	assert.Contains(t, result.Failures[0].Errors[0], "2 occurrences of todos/add")
	assert.Contains(t, result.Failures[1].Errors[0], "failed to load scenario")
}

func TestRunDir_Empty(t *testing.T) {
	_, err := RunDir(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files")
}
