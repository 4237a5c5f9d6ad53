package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/pipeline"
)

func counterSpec() engine.ModelSpec {
	return engine.ModelSpec{
		Name:  "counter",
		State: ir.State{"n": 0},
		Reducers: map[string]ir.Reducer{"set": func(d ir.State, p ir.Payload) ir.State {
			d["n"] = p.Data
			return nil
		}},
		Actions: map[string]engine.ActionConfig{
			"load": {Exec: 10, Reducer: func(d ir.State, p ir.Payload) ir.State {
				d["n"] = p.Data
				return nil
			}},
		},
	}
}

func awaitCall(t *testing.T, es *engine.Store, name string, args ...any) {
	t.Helper()
	f, err := es.Call(name, args...)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = f.Await(ctx)
	require.NoError(t, err)
}

func TestRecorder_JournalsDeliveredActions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := NewRecorder(ctx, s, nil)

	blocked := errors.New("blocked")
	es := engine.New(engine.WithInterceptors(
		rec.Interceptor(),
		func(a ir.Action, next pipeline.Next, raw pipeline.Next) error {
			if a.Type == "counter/set" && a.Payload.Data == -1 {
				return blocked
			}
			return next(a)
		},
	))
	defer es.Close()
	es.MustRegister(counterSpec(), nil)

	awaitCall(t, es, "counter.load")
	require.NoError(t, es.Dispatch(ir.Action{Type: "counter/set", Payload: ir.Payload{Data: 3}}))
	require.ErrorIs(t, es.Dispatch(ir.Action{Type: "counter/set", Payload: ir.Payload{Data: -1}}), blocked)

	entries, err := s.ReadActions(ctx, Filter{})
	require.NoError(t, err)

	var types []string
	for _, e := range entries {
		types = append(types, e.Action.Type)
	}
	assert.Equal(t, []string{"counter/load/start", "counter/load/success", "counter/set"}, types)
	assert.Equal(t, entries[0].Action.Invocation, entries[1].Action.Invocation)
}

func TestRecorder_ReplayMatchesCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := NewRecorder(ctx, s, nil)

	live := engine.New(engine.WithInterceptors(rec.Interceptor()))
	defer live.Close()
	live.MustRegister(counterSpec(), nil)

	awaitCall(t, live, "counter.load")
	require.NoError(t, live.Dispatch(ir.Action{Type: "counter/set", Payload: ir.Payload{Data: 42}}))
	require.NoError(t, rec.Checkpoint(live))

	journal, err := s.Actions(ctx, Filter{})
	require.NoError(t, err)

	last, err := s.GetLastSeq(ctx)
	require.NoError(t, err)

	restored := engine.New()
	defer restored.Close()
	restored.MustRegister(counterSpec(), nil)

	applied, err := restored.Replay(journal)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Equal(t, last, restored.Clock().Current())

	mismatches, err := s.Verify(ctx, restored)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	// diverge and verify again
	require.NoError(t, restored.Dispatch(ir.Action{Type: "counter/set", Payload: ir.Payload{Data: 0}}))
	mismatches, err = s.Verify(ctx, restored)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "counter", mismatches[0].Model)
}

func TestRecorder_SkipsUnserialisable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := NewRecorder(ctx, s, nil)

	es := engine.New(engine.WithInterceptors(rec.Interceptor()))
	defer es.Close()

	err := es.Dispatch(ir.Action{Type: "x/y", Payload: ir.Payload{Data: make(chan int)}})
	require.NoError(t, err, "journal failures never fail the dispatch")

	entries, err := s.ReadActions(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
