package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "" when there is no golden file
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario|dir>...",
		Short: "Run scenario files",
		Long: `Run YAML scenarios against their models with canned responses.

A scenario passes when every step expectation and assertion holds. When
golden/<scenario>.golden exists next to the scenario file, the trace and
final state must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  seed test ./scenarios
  seed test ./scenarios --filter "cart*"
  seed test ./scenarios/checkout.yaml --update
  seed test ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, args []string, cmd *cobra.Command) error {
	paths, err := findScenarioFiles(args, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(paths)), Total: len(paths)}
	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.Default()
	}
	suite := harness.RunPaths(paths, harness.WithLogger(logger))

	failures := make(map[string]harness.ScenarioFailure, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.ScenarioPath] = f
	}

	for _, path := range paths {
		scenResult := ScenarioResult{Path: path, Name: scenarioName(path), Pass: true}
		if f, failed := failures[path]; failed {
			scenResult.Pass = false
			scenResult.Errors = f.Errors
			if f.Name != "" {
				scenResult.Name = f.Name
			}
		}
		if run, ok := suite.Results[path]; ok {
			scenResult.Name = run.Scenario
			checkGolden(&scenResult, run, opts.Update)
		}

		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputTestJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles expands directories and applies the filter to the base
// names of the files found.
func findScenarioFiles(args []string, filter string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("scenario path not found: %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := harness.FindScenarios(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	if filter == "" {
		return files, nil
	}
	var matched []string
	for _, path := range files {
		ok, err := filepath.Match(filter, scenarioName(path))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// checkGolden compares a run against its golden file, or rewrites the file
// when update is set.
func checkGolden(sr *ScenarioResult, run *harness.Result, update bool) {
	data, err := run.Snapshot().Canonical()
	if err != nil {
		sr.fail(fmt.Sprintf("failed to marshal trace: %v", err))
		return
	}

	path := goldenFilePath(sr.Path)
	if update {
		if err := writeGolden(path, data); err != nil {
			sr.fail(fmt.Sprintf("failed to update golden file: %v", err))
			return
		}
		sr.Golden = "updated"
		return
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		sr.fail(fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		sr.fail("trace does not match golden file (run with --update to regenerate)")
		return
	}
	sr.Golden = "match"
}

func (sr *ScenarioResult) fail(msg string) {
	sr.Pass = false
	sr.Errors = append(sr.Errors, msg)
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName(scenarioFile)+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(w io.Writer, result TestResult) error {
	return writeReport(w, result.Failed == 0, result, nil)
}

// outputTestText outputs the test result as text.
func outputTestText(w io.Writer, result TestResult) {
	for _, s := range result.Scenarios {
		switch {
		case !s.Pass:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
		case s.Golden == "updated":
			fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		default:
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
