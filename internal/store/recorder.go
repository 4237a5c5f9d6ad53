package store

import (
	"context"
	"log/slog"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/pipeline"
)

// Recorder journals every action that reaches the end of the pipeline.
//
// Install it first so it sees actions after every later interceptor has run:
// it forwards via next and journals only when delivery succeeded, so actions
// stopped or rejected further down are not journaled. Journal failures are
// logged; they never fail the dispatch.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	ctx    context.Context
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(ctx context.Context, s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger, ctx: ctx}
}

// Interceptor returns the pipeline interceptor.
func (r *Recorder) Interceptor() pipeline.Interceptor {
	return func(a ir.Action, next pipeline.Next, raw pipeline.Next) error {
		if err := next(a); err != nil {
			return err
		}
		if err := r.store.WriteAction(r.ctx, a); err != nil {
			r.logger.Warn("action not journaled", "type", a.Type, "intent", a.Intent, "seq", a.Seq, "error", err)
		}
		return nil
	}
}

// Checkpoint stores a snapshot of every model in es.
func (r *Recorder) Checkpoint(es *engine.Store) error {
	snaps, seq := es.Snapshot()
	out := make([]Snapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = Snapshot{Model: snap.Model, Revision: snap.Revision, Seq: seq, State: snap.State}
	}
	if err := r.store.WriteSnapshots(r.ctx, out); err != nil {
		return err
	}
	r.logger.Debug("checkpoint written", "models", len(out), "seq", seq)
	return nil
}
