package store

import (
	"context"
	"fmt"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
)

// Mismatch reports a model whose live state differs from its latest snapshot.
type Mismatch struct {
	Model    string `json:"model"`
	Revision int64  `json:"revision"`
	Want     string `json:"want"` // snapshot hash
	Got      string `json:"got"`  // live state hash; empty when the model is not registered
}

// Verify compares the latest snapshot of every model with es's current
// state by content hash. An empty result means every snapshot matches.
func (s *Store) Verify(ctx context.Context, es *engine.Store) ([]Mismatch, error) {
	snaps, err := s.ReadLatestSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	var out []Mismatch
	for _, snap := range snaps {
		m := Mismatch{Model: snap.Model, Revision: snap.Revision, Want: snap.Hash}
		if live, ok := es.State(snap.Model); ok {
			m.Got, err = ir.StateHash(snap.Model, live)
			if err != nil {
				return nil, fmt.Errorf("verify %s: %w", snap.Model, err)
			}
		}
		if m.Got != m.Want {
			out = append(out, m)
		}
	}
	return out, nil
}
