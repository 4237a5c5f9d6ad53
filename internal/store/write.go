package store

import (
	"context"
	"fmt"

	"github.com/roach88/seed/internal/ir"
)

// WriteAction appends a delivered action to the journal.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - rewriting a seq is
// silently ignored. Actions without a seq are rejected.
//
// The payload is serialized to canonical JSON per RFC 8785 for deterministic
// replay, and the row carries the action's content hash.
func (s *Store) WriteAction(ctx context.Context, a ir.Action) error {
	if a.Seq <= 0 {
		return fmt.Errorf("write action %s: missing seq", describe(a))
	}

	payloadJSON, err := marshalPayload(a.Payload)
	if err != nil {
		return fmt.Errorf("write action %s: %w", describe(a), err)
	}

	hash, err := ir.ActionHash(a)
	if err != nil {
		return fmt.Errorf("write action %s: %w", describe(a), err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions
		(seq, invocation, type, intent, error, payload, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		a.Seq,
		a.Invocation,
		a.Type,
		a.Intent,
		a.Error,
		payloadJSON,
		hash,
	)
	if err != nil {
		return fmt.Errorf("write action %s: %w", describe(a), err)
	}

	return nil
}

// Snapshot is one model's state at a revision.
type Snapshot struct {
	Model    string
	Revision int64
	Seq      int64
	State    ir.State
	Hash     string
}

// WriteSnapshots stores model states atomically.
// A (model, revision) pair that is already stored is left untouched, so
// writing the same checkpoint twice is a no-op.
func (s *Store) WriteSnapshots(ctx context.Context, snaps []Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshots: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, snap := range snaps {
		blob, err := encodeState(snap.State)
		if err != nil {
			return fmt.Errorf("write snapshot %s@%d: %w", snap.Model, snap.Revision, err)
		}
		hash := snap.Hash
		if hash == "" {
			hash, err = ir.StateHash(snap.Model, snap.State)
			if err != nil {
				return fmt.Errorf("write snapshot %s@%d: %w", snap.Model, snap.Revision, err)
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshots (model, revision, seq, state, hash)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(model, revision) DO NOTHING
		`,
			snap.Model,
			snap.Revision,
			snap.Seq,
			blob,
			hash,
		)
		if err != nil {
			return fmt.Errorf("write snapshot %s@%d: %w", snap.Model, snap.Revision, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshots: commit: %w", err)
	}
	return nil
}

func describe(a ir.Action) string {
	if a.IsIntent() {
		return fmt.Sprintf("intent %s (seq=%d)", a.Intent, a.Seq)
	}
	return fmt.Sprintf("%s (seq=%d)", a.Type, a.Seq)
}
