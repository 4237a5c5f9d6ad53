package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/seed/internal/ir"
)

// Entry is one journaled action with its stored content hash.
type Entry struct {
	Action ir.Action
	Hash   string
}

// Filter narrows ReadActions. Zero fields match everything.
type Filter struct {
	// AfterSeq returns only entries with seq > AfterSeq.
	AfterSeq int64

	// Invocation returns only entries of one call.
	Invocation string

	// TypePrefix returns only typed actions whose type starts with the
	// prefix (e.g. "user/" for every action of model user).
	TypePrefix string

	// Limit caps the number of entries; 0 means no limit.
	Limit int
}

// ReadActions returns journaled actions ordered by seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadActions(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}
	if f.Invocation != "" {
		where = append(where, "invocation = ?")
		args = append(args, f.Invocation)
	}
	if f.TypePrefix != "" {
		where = append(where, "substr(type, 1, ?) = ?")
		args = append(args, len(f.TypePrefix), f.TypePrefix)
	}

	query := `SELECT seq, invocation, type, intent, error, payload, hash FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return entries, nil
}

// Actions returns the journaled actions without hashes, ready for
// engine.Store.Replay.
func (s *Store) Actions(ctx context.Context, f Filter) ([]ir.Action, error) {
	entries, err := s.ReadActions(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out, nil
}

// ReadAction retrieves a single action by seq.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadAction(ctx context.Context, seq int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, invocation, type, intent, error, payload, hash
		FROM actions
		WHERE seq = ?
	`, seq)
	return scanEntry(row)
}

// ReadLatestSnapshots returns the newest snapshot of every model, ordered by
// model name.
func (s *Store) ReadLatestSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.model, s.revision, s.seq, s.state, s.hash
		FROM snapshots s
		JOIN (
			SELECT model, MAX(revision) AS revision FROM snapshots GROUP BY model
		) latest ON latest.model = s.model AND latest.revision = s.revision
		ORDER BY s.model COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var (
			snap Snapshot
			blob []byte
		)
		if err := rows.Scan(&snap.Model, &snap.Revision, &snap.Seq, &blob, &snap.Hash); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.State, err = decodeState(blob)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s@%d: %w", snap.Model, snap.Revision, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		payload string
	)
	err := row.Scan(
		&e.Action.Seq,
		&e.Action.Invocation,
		&e.Action.Type,
		&e.Action.Intent,
		&e.Action.Error,
		&payload,
		&e.Hash,
	)
	if err == sql.ErrNoRows {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan action: %w", err)
	}
	e.Action.Payload, err = unmarshalPayload(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("action seq %d: %w", e.Action.Seq, err)
	}
	return e, nil
}
