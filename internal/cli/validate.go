package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Models   []ModelSummary             `json:"models,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// ModelSummary describes one declared model.
type ModelSummary struct {
	Name          string   `json:"name"`
	Actions       []string `json:"actions,omitempty"`
	Subscriptions []string `json:"subscriptions,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models>...",
		Short: "Check model files without running them",
		Long: `Compile CUE model files and check them for semantic errors.

Each argument is a .cue file or a directory of them. Effects that can
trigger each other in a loop through intents are reported as warnings.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	loadResult, loadErrors := LoadSpecs(paths...)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Compiled %d CUE file(s) from %s", loadResult.FileCount, strings.Join(paths, ", "))

	result := ValidateProgram(loadResult.Program, loadErrors)
	for _, m := range result.Models {
		formatter.VerboseLog("Model %s: %d action(s), %d subscription(s)", m.Name, len(m.Actions), len(m.Subscriptions))
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateProgram runs semantic validation and cycle analysis over a loaded
// program. Compile errors from loading are reported first.
func ValidateProgram(p *compiler.Program, loadErrors []error) ValidationResult {
	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			loadErr = convertCompileError(err)
		}
		errs = append(errs, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    lineOf(loadErr.Pos),
		})
	}
	errs = append(errs, compiler.Validate(p)...)

	if len(p.Models) == 0 && len(errs) == 0 {
		errs = append(errs, compiler.ValidationError{
			Field:   "models",
			Message: "no models found",
			Code:    ErrCodeGeneric,
		})
	}

	result := ValidationResult{Valid: len(errs) == 0, Errors: errs}
	for _, m := range p.Models {
		result.Models = append(result.Models, ModelSummary{
			Name:          m.Name,
			Actions:       sortedKeys(m.Actions),
			Subscriptions: sortedKeys(m.Subscriptions),
		})
	}
	if result.Valid {
		result.Warnings = compiler.AnalyzeCycles(p)
	}
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All models valid (%d model(s))\n", len(result.Models))
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		first := &CLIError{Code: errs[0].Code, Message: errs[0].Message}
		if err := writeReport(formatter.Writer, false, result, first); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
