package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <models>...",
		Short: "Compile models to canonical JSON",
		Long: `Compile and validate CUE model files, then print the declarations as
canonical JSON. The output is byte-stable: the same models always produce
the same bytes.

Example:
  seed compile models/ -o models.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write JSON to a file instead of stdout")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	loaded, errs := LoadSpecs(paths...)
	if loaded == nil {
		loadErr := convertCompileError(errs[0])
		if le, ok := errs[0].(*LoadError); ok {
			loadErr = le
		}
		return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
	}
	if result := ValidateProgram(loaded.Program, errs); !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	data, err := ir.MarshalCanonical(loaded.Program)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, fmt.Sprintf("marshal program: %v", err), nil)
	}

	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}
	if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
		return outputValidateError(formatter, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", opts.Output, err), nil)
	}
	formatter.VerboseLog("Wrote %d bytes to %s", len(data)+1, opts.Output)

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"output": opts.Output, "models": len(loaded.Program.Models)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d model(s) to %s\n", len(loaded.Program.Models), opts.Output)
	return nil
}
