package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Session SessionOptions
	Args    string
	State   bool
}

// CallResult is the JSON payload of a successful call.
type CallResult struct {
	Action string   `json:"action"`
	Result any      `json:"result"`
	State  ir.State `json:"state,omitempty"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <model.action>",
		Short: "Call one action and print its result",
		Long: `Compile the models, call one action and wait for it to finish.

--args is a JSON array of positional arguments; any other JSON value is
passed as the single argument. With --db the call is journaled and state
from earlier calls against the same journal is restored first.

Example:
  seed call cart.add -m models/ --args '["apple"]' --db journal.db --state`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAction(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Session.Models, "models", "m", []string{"."}, "model files or directories")
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "action arguments as JSON")
	cmd.Flags().BoolVar(&opts.State, "state", false, "print the model state after the call")
	addSessionFlags(cmd, &opts.Session)

	return cmd
}

// addSessionFlags registers the flags shared by commands that run an engine.
func addSessionFlags(cmd *cobra.Command, opts *SessionOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for relative request URLs")
	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "header sent with every request (Key: Value)")
}

func callAction(opts *CallOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	args, err := ParseArgs(opts.Args)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --args", err)
	}

	opts.Session.Timeout = opts.Timeout
	session, err := OpenSession(cmd.Context(), opts.Session, slog.Default())
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			slog.Warn("session close failed", "error", cerr)
		}
	}()
	if session.Resumed > 0 {
		formatter.VerboseLog("Restored %d action(s) from %s", session.Resumed, opts.Session.Database)
	}

	result, err := session.Call(name, args...)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownModel) || errors.Is(err, engine.ErrUnknownAction) {
			_ = formatter.Error(ErrCodeUnknownAction, err.Error(), nil)
			return WrapExitError(ExitCommandError, "call failed", err)
		}
		_ = formatter.Error(ErrCodeCallFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "call failed", err)
	}

	out := CallResult{Action: name, Result: result}
	if opts.State {
		model, _, _ := actiontype.FromAction(name)
		out.State, _ = session.Engine.State(model)
	}

	if opts.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s → %s\n", name, formatValue(out.Result))
	if out.State != nil {
		fmt.Fprintf(formatter.Writer, "  state: %s\n", formatValue(out.State))
	}
	return nil
}

// ParseArgs decodes --args. A JSON array spreads into positional arguments;
// any other value is a single argument.
func ParseArgs(raw string) ([]any, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := ir.DecodeJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("args must be JSON: %w", err)
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

// formatValue renders a value as canonical JSON for text output.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
