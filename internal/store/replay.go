package store

import (
	"context"
	"fmt"

	"github.com/roach88/seed/internal/actiontype"
)

// InvocationState is the journaled lifecycle of one action call.
type InvocationState struct {
	Invocation     string
	Entries        []Entry
	LastSeq        int64
	Started        bool              // a start-status action was journaled
	IsComplete     bool              // not an async call, or it reached success or error
	TerminalStatus actiontype.Status // "", "success" or "error"
}

// GetInvocationState retrieves every journaled action of one call and
// analyses whether its lifecycle completed.
func (s *Store) GetInvocationState(ctx context.Context, invocation string) (InvocationState, error) {
	state := InvocationState{Invocation: invocation}

	entries, err := s.ReadActions(ctx, Filter{Invocation: invocation})
	if err != nil {
		return state, fmt.Errorf("get invocation state: %w", err)
	}
	state.Entries = entries

	for _, e := range entries {
		if e.Action.Seq > state.LastSeq {
			state.LastSeq = e.Action.Seq
		}
		switch st := actiontype.StatusOf(e.Action.Type); st {
		case actiontype.StatusStart:
			state.Started = true
		case actiontype.StatusSuccess, actiontype.StatusError:
			state.TerminalStatus = st
		}
	}
	state.IsComplete = len(entries) > 0 && (!state.Started || state.TerminalStatus != "")
	return state, nil
}

// FindIncompleteInvocations returns every async call whose start was
// journaled without a matching success or error, e.g. because the process
// exited while the exec was in flight.
func (s *Store) FindIncompleteInvocations(ctx context.Context) ([]InvocationState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.invocation
		FROM actions a
		WHERE a.invocation <> ''
		  AND a.type LIKE '%/start'
		  AND NOT EXISTS (
			SELECT 1 FROM actions b
			WHERE b.invocation = a.invocation
			  AND (b.type LIKE '%/success' OR b.type LIKE '%/error')
		  )
		ORDER BY a.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find incomplete invocations: %w", err)
	}

	var invocations []string
	for rows.Next() {
		var inv string
		if err := rows.Scan(&inv); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}

	states := make([]InvocationState, 0, len(invocations))
	for _, inv := range invocations {
		st, err := s.GetInvocationState(ctx, inv)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// ListInvocations returns every invocation id in the journal, ordered by the
// seq of its first action.
func (s *Store) ListInvocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT invocation
		FROM actions
		WHERE invocation <> ''
		GROUP BY invocation
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var inv string
		if err := rows.Scan(&inv); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// GetLastSeq returns the highest journaled seq, or 0 for an empty journal.
// A resumed engine clock starts after it.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM actions`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// GetLastSeqForInvocation returns the highest seq of one call, or 0.
func (s *Store) GetLastSeqForInvocation(ctx context.Context, invocation string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM actions WHERE invocation = ?`, invocation,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq for invocation: %w", err)
	}
	return seq, nil
}
