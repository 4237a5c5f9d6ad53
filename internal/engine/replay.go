package engine

import (
	"fmt"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/ir"
)

// Replay re-applies journaled actions to the store's reducers, bypassing the
// pipeline and every processor. Intents are skipped: the actions their
// effects put are journaled on their own.
//
// Entries must be in seq order. The clock is advanced past the last entry so
// that dispatches after replay continue the journal.
func (s *Store) Replay(entries []ir.Action) (applied int, err error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	var last int64
	for _, a := range entries {
		if a.Seq != 0 && a.Seq <= last {
			return applied, fmt.Errorf("replay: seq %d out of order after %d", a.Seq, last)
		}
		if a.Seq != 0 {
			last = a.Seq
		}
		if a.IsIntent() {
			continue
		}
		if a.Type == "" {
			return applied, fmt.Errorf("replay: entry seq %d has no type", a.Seq)
		}
		if a.Payload.Store == nil {
			model, _ := actiontype.Decode(a.Type)
			if m, ok := s.GetModel(model); ok {
				a.Payload.Store = m.InitialState()
			}
		}
		s.reduce(a)
		applied++
	}
	s.clock.Advance(last)
	s.logger.Info("replay complete", "entries", len(entries), "applied", applied, "seq", last)
	return applied, nil
}
