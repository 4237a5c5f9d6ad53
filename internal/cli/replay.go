package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/compiler"
	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	Checkpoint bool
}

// ReplayModelResult is one model's state after replay.
type ReplayModelResult struct {
	Model    string `json:"model"`
	Revision int64  `json:"revision"`
	Hash     string `json:"hash"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Actions       int                 `json:"actions"`
	Applied       int                 `json:"applied"`
	LastSeq       int64               `json:"last_seq"`
	VerifiedAt    int64               `json:"verified_at,omitempty"` // seq of the checkpoint compared against
	Models        []ReplayModelResult `json:"models"`
	Mismatches    []store.Mismatch    `json:"mismatches,omitempty"`
	Deterministic bool                `json:"deterministic"`
}

// OK reports whether replay matched the checkpoint and was deterministic.
func (r ReplayResult) OK() bool {
	return r.Deterministic && len(r.Mismatches) == 0
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <models>...",
		Short: "Rebuild state from a journal and verify it",
		Long: `Replay a journal into fresh engines and verify the result.

The journal is replayed twice; both runs must end in identical state.
When the journal holds a checkpoint, the state at the checkpoint's seq is
compared against it by content hash.

Exit codes:
  0 - Replay is deterministic and matches the checkpoint
  1 - State differs between runs or from the checkpoint
  2 - Command error (database not found, invalid models, etc.)

Examples:
  seed replay models/ --db ./seed.db
  seed replay models/ --db ./seed.db --checkpoint --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	cmd.Flags().BoolVar(&opts.Checkpoint, "checkpoint", false, "write a checkpoint after a successful replay")

	return cmd
}

func runReplay(opts *ReplayOptions, paths []string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	loaded, errs := LoadSpecs(paths...)
	if loaded == nil || len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load models", errs[0])
	}
	if verrs := compiler.Validate(loaded.Program); len(verrs) > 0 {
		return WrapExitError(ExitCommandError, "invalid models", verrs[0])
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, final, err := ReplayJournal(ctx, st, loaded.Program)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	defer final.Close()

	if opts.Checkpoint && result.OK() {
		if err := store.NewRecorder(ctx, st, slog.Default()).Checkpoint(final); err != nil {
			return WrapExitError(ExitCommandError, "failed to write checkpoint", err)
		}
	}

	if opts.Format == "json" {
		err = outputReplayJSON(cmd.OutOrStdout(), result)
	} else {
		err = outputReplayText(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return err
	}

	if !result.OK() {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// ReplayJournal replays every journaled action into two fresh engines and
// checks them against each other and against the latest checkpoint. It
// returns the first engine with the full journal applied; the caller closes
// it.
func ReplayJournal(ctx context.Context, st *store.Store, p *compiler.Program) (ReplayResult, *engine.Store, error) {
	var result ReplayResult

	entries, err := st.Actions(ctx, store.Filter{})
	if err != nil {
		return result, nil, err
	}
	result.Actions = len(entries)
	for _, a := range entries {
		result.LastSeq = max(result.LastSeq, a.Seq)
	}

	snaps, err := st.ReadLatestSnapshots(ctx)
	if err != nil {
		return result, nil, err
	}
	for _, snap := range snaps {
		result.VerifiedAt = max(result.VerifiedAt, snap.Seq)
	}

	first, err := replayInto(p, entries, result.VerifiedAt)
	if err != nil {
		return result, nil, err
	}
	if len(snaps) > 0 {
		if result.Mismatches, err = st.Verify(ctx, first.engine); err != nil {
			first.engine.Close()
			return result, nil, err
		}
	}
	// The rest of the journal goes in after the checkpoint comparison.
	applied, err := first.engine.Replay(after(entries, result.VerifiedAt))
	if err != nil {
		first.engine.Close()
		return result, nil, err
	}
	result.Applied = first.applied + applied

	second, err := replayInto(p, entries, 0)
	if err != nil {
		first.engine.Close()
		return result, nil, err
	}
	defer second.engine.Close()

	result.Deterministic = true
	for _, name := range first.engine.Models() {
		state, _ := first.engine.State(name)
		hash, err := ir.StateHash(name, state)
		if err != nil {
			first.engine.Close()
			return result, nil, err
		}
		other, _ := second.engine.State(name)
		if otherHash, err := ir.StateHash(name, other); err != nil || otherHash != hash {
			result.Deterministic = false
		}
		result.Models = append(result.Models, ReplayModelResult{
			Model:    name,
			Revision: first.engine.Revision(name),
			Hash:     hash,
		})
	}
	return result, first.engine, nil
}

type replayed struct {
	engine  *engine.Store
	applied int
}

// replayInto registers the program in a fresh engine and replays entries up
// to and including seq upTo; 0 replays everything.
func replayInto(p *compiler.Program, entries []ir.Action, upTo int64) (replayed, error) {
	es := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := p.Register(es); err != nil {
		es.Close()
		return replayed{}, err
	}
	if upTo > 0 {
		entries = until(entries, upTo)
	}
	applied, err := es.Replay(entries)
	if err != nil {
		es.Close()
		return replayed{}, err
	}
	return replayed{engine: es, applied: applied}, nil
}

func until(entries []ir.Action, seq int64) []ir.Action {
	for i, a := range entries {
		if a.Seq > seq {
			return entries[:i]
		}
	}
	return entries
}

func after(entries []ir.Action, seq int64) []ir.Action {
	if seq == 0 {
		return nil
	}
	return entries[len(until(entries, seq)):]
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(w io.Writer, result ReplayResult) error {
	return writeReport(w, result.OK(), result, nil)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult) error {
	fmt.Fprintf(w, "Replayed %d action(s) (%d applied, last seq %d)\n", result.Actions, result.Applied, result.LastSeq)
	fmt.Fprintln(w)

	for _, m := range result.Models {
		fmt.Fprintf(w, "  %-20s revision %-6d %s\n", m.Model, m.Revision, truncateID(m.Hash))
	}
	fmt.Fprintln(w)

	if result.VerifiedAt > 0 {
		if len(result.Mismatches) == 0 {
			fmt.Fprintf(w, "✓ Matches checkpoint at seq %d\n", result.VerifiedAt)
		} else {
			fmt.Fprintf(w, "✗ Differs from checkpoint at seq %d\n", result.VerifiedAt)
			for _, m := range result.Mismatches {
				fmt.Fprintf(w, "  %s: want %s, got %s\n", m.Model, truncateID(m.Want), truncateID(m.Got))
			}
		}
	} else {
		fmt.Fprintln(w, "- No checkpoint to verify against")
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay is deterministic")
	} else {
		fmt.Fprintln(w, "✗ Replay is NOT deterministic")
	}
	return nil
}
