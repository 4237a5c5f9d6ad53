package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Invocation string
	Type       string
	After      int64
	Limit      int
	Incomplete bool
}

// TraceEntry is one journaled action in the timeline.
type TraceEntry struct {
	Seq        int64  `json:"seq"`
	Type       string `json:"type,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Invocation string `json:"invocation,omitempty"`
	Arguments  []any  `json:"arguments,omitempty"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      bool   `json:"error,omitempty"`
	Hash       string `json:"hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Invocation string       `json:"invocation,omitempty"`
	Timeline   []TraceEntry `json:"timeline"`
	Incomplete []string     `json:"incomplete,omitempty"`
	Stats      TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int   `json:"total_events"`
	Intents     int   `json:"intents"`
	Errors      int   `json:"errors"`
	Invocations int   `json:"invocations"`
	LastSeq     int64 `json:"last_seq"`
	IsComplete  bool  `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled actions",
		Long: `Print actions from a journal in seq order.

Filters combine: --invocation keeps one call's lifecycle, --type keeps
actions whose type starts with a prefix ("cart/" for one model), --after
skips everything up to a seq. --incomplete lists calls that started but
never reached success or error.

Examples:
  seed trace --db ./seed.db
  seed trace --db ./seed.db --invocation 01890a5d-ac96-774b-bcce-b302099a8057
  seed trace --db ./seed.db --type cart/ --after 120 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Invocation, "invocation", "", "only actions of one call")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only actions whose type has this prefix")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only actions with a greater seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of actions (0 for all)")
	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "also list calls that never finished")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ReadActions(ctx, store.Filter{
		AfterSeq:   opts.After,
		Invocation: opts.Invocation,
		TypePrefix: opts.Type,
		Limit:      opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result, err := buildTrace(ctx, st, opts, entries)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Invocation != "" && len(entries) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No actions found for invocation: %s\n", opts.Invocation)
		return nil
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// openJournal opens an existing journal for reading.
func openJournal(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.OpenExisting(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions, entries []store.Entry) (TraceResult, error) {
	result := TraceResult{
		Invocation: opts.Invocation,
		Timeline:   make([]TraceEntry, 0, len(entries)),
	}

	invocations := map[string]bool{}
	for _, e := range entries {
		a := e.Action
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:        a.Seq,
			Type:       a.Type,
			Intent:     a.Intent,
			Invocation: a.Invocation,
			Arguments:  a.Payload.Arguments,
			Data:       a.Payload.Data,
			Message:    a.Payload.Message,
			Error:      a.Error,
			Hash:       e.Hash,
		})
		if a.IsIntent() {
			result.Stats.Intents++
		}
		if a.Error {
			result.Stats.Errors++
		}
		if a.Invocation != "" {
			invocations[a.Invocation] = true
		}
		result.Stats.LastSeq = max(result.Stats.LastSeq, a.Seq)
	}
	result.Stats.TotalEvents = len(entries)
	result.Stats.Invocations = len(invocations)

	incomplete, err := st.FindIncompleteInvocations(ctx)
	if err != nil {
		return result, err
	}
	result.Stats.IsComplete = true
	for _, inv := range incomplete {
		if opts.Invocation == "" || inv.Invocation == opts.Invocation {
			result.Stats.IsComplete = false
			if opts.Incomplete {
				result.Incomplete = append(result.Incomplete, inv.Invocation)
			}
		}
	}
	return result, nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(w io.Writer, result TraceResult) error {
	return writeReport(w, true, result, nil)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if result.Invocation != "" {
		fmt.Fprintf(w, "Trace for invocation: %s\n", result.Invocation)
	} else {
		fmt.Fprintln(w, "Trace")
	}
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.IsComplete))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no actions)")
	}
	for _, entry := range result.Timeline {
		formatTraceEntry(w, entry, verbose)
	}
	fmt.Fprintln(w)

	if len(result.Incomplete) > 0 {
		fmt.Fprintln(w, "=== Incomplete ===")
		for _, inv := range result.Incomplete {
			fmt.Fprintf(w, "  %s\n", truncateID(inv))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Intents:      %d\n", result.Stats.Intents)
	fmt.Fprintf(w, "  Errors:       %d\n", result.Stats.Errors)
	fmt.Fprintf(w, "  Invocations:  %d\n", result.Stats.Invocations)

	return nil
}

// formatTraceEntry formats a single timeline entry for text output.
func formatTraceEntry(w io.Writer, entry TraceEntry, verbose bool) {
	name := entry.Type
	if name == "" {
		name = "intent " + entry.Intent
	}
	line := fmt.Sprintf("  [%d] %s", entry.Seq, name)
	if entry.Error {
		line += fmt.Sprintf(" error=%q", entry.Message)
	}
	fmt.Fprintln(w, line)

	if !verbose {
		return
	}
	if len(entry.Arguments) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", formatValue(entry.Arguments))
	}
	if entry.Data != nil {
		fmt.Fprintf(w, "       Data: %s\n", formatValue(entry.Data))
	}
	if entry.Invocation != "" {
		fmt.Fprintf(w, "       Invocation: %s\n", truncateID(entry.Invocation))
	}
	fmt.Fprintf(w, "       Hash: %s\n", truncateID(entry.Hash))
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// completeStatus returns a human-readable completion status.
func completeStatus(isComplete bool) string {
	if isComplete {
		return "Complete"
	}
	return "Incomplete (calls still pending)"
}
