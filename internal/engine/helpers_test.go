package engine

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/pipeline"
)

//go:generate mockgen -destination mock_requester_test.go -package engine -write_package_comment=false github.com/roach88/seed/internal/engine Requester

// trace records every action reaching it.
type trace struct {
	mu      sync.Mutex
	actions []ir.Action
}

func (tr *trace) interceptor() pipeline.Interceptor {
	return func(a ir.Action, next pipeline.Next, raw pipeline.Next) error {
		tr.mu.Lock()
		tr.actions = append(tr.actions, a)
		tr.mu.Unlock()
		return next(a)
	}
}

func (tr *trace) all() []ir.Action {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]ir.Action(nil), tr.actions...)
}

func (tr *trace) types() []string {
	var out []string
	for _, a := range tr.all() {
		if a.IsIntent() {
			out = append(out, "intent:"+a.Intent)
			continue
		}
		out = append(out, a.Type)
	}
	return out
}

// newTestStore returns a store with a tracing interceptor and a logger that
// writes into the returned buffer.
func newTestStore(t *testing.T, opts ...Option) (*Store, *trace, *bytes.Buffer) {
	t.Helper()
	tr := &trace{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	all := append([]Option{WithLogger(logger), WithInterceptors(tr.interceptor())}, opts...)
	s := New(all...)
	t.Cleanup(func() { _ = s.Close() })
	return s, tr, &logs
}

func await(t *testing.T, f *future.Future) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future never settled")
	return v, err
}

func mustCall(t *testing.T, s *Store, name string, args ...any) *future.Future {
	t.Helper()
	f, err := s.Call(name, args...)
	require.NoError(t, err)
	return f
}

func setField(field string) ir.Reducer {
	return func(draft ir.State, p ir.Payload) ir.State {
		draft[field] = p.Data
		return nil
	}
}
