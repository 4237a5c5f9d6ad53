package effect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/ir"
)

func awaitWithin(t *testing.T, f interface {
	Await(context.Context) (any, error)
}) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func intent(name, invocation string, args ...any) ir.Action {
	return ir.Action{Intent: name, Invocation: invocation, Payload: ir.Payload{Arguments: args}}
}

func TestRunner_SubmitResolvesWatch(t *testing.T) {
	host := newFakeHost()
	r := NewRunner(host, nil)
	defer r.Stop()

	r.Register("user", "load", Coroutine(func(yield Yield, args []any, store ir.State) (any, error) {
		if _, err := yield(Put("loaded")); err != nil {
			return nil, err
		}
		return args[0], nil
	}))
	assert.True(t, r.Has("user.load"))
	assert.False(t, r.Has("user.save"))

	w := r.Watch("user/load", "inv-1")
	require.NoError(t, r.Submit(intent("user.load", "inv-1", "ada")))

	v, err := awaitWithin(t, w)
	require.NoError(t, err)
	assert.Equal(t, "ada", v)
	assert.Equal(t, []any{"loaded"}, host.recorded())
	assert.Equal(t, 0, r.Pending("user/load"))
}

func TestRunner_BodyErrorRejectsWatch(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	boom := errors.New("boom")
	r.Register("user", "load", Func(func([]any, ir.State) (any, error) { return nil, boom }))

	w := r.Watch("user/load", "inv-1")
	require.NoError(t, r.Submit(intent("user.load", "inv-1")))

	_, err := awaitWithin(t, w)
	assert.ErrorIs(t, err, boom)
}

func TestRunner_UnknownIntent(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	err := r.Submit(intent("user.missing", ""))
	assert.ErrorIs(t, err, ErrUnknownEffect)

	err = r.Submit(intent("nodot", ""))
	assert.Error(t, err)
}

func TestRunner_SerialPerModel(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	var mu sync.Mutex
	var order []any
	release := make(chan struct{})

	r.Register("queue", "push", Coroutine(func(yield Yield, args []any, store ir.State) (any, error) {
		if args[0] == 1 {
			<-release
		}
		mu.Lock()
		order = append(order, args[0])
		mu.Unlock()
		return args[0], nil
	}))

	w1 := r.Watch("queue/push", "a")
	w2 := r.Watch("queue/push", "b")
	require.NoError(t, r.Submit(intent("queue.push", "a", 1)))
	require.NoError(t, r.Submit(intent("queue.push", "b", 2)))

	// the second job cannot overtake the blocked first one
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	close(release)
	v1, err := awaitWithin(t, w1)
	require.NoError(t, err)
	v2, err := awaitWithin(t, w2)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
	assert.Equal(t, []any{1, 2}, order)
}

func TestRunner_ModelsRunIndependently(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	block := make(chan struct{})
	defer close(block)
	r.Register("slow", "run", Func(func([]any, ir.State) (any, error) {
		<-block
		return nil, nil
	}))
	r.Register("fast", "run", Func(func([]any, ir.State) (any, error) { return "fast", nil }))

	r.Watch("slow/run", "s")
	w := r.Watch("fast/run", "f")
	require.NoError(t, r.Submit(intent("slow.run", "s")))
	require.NoError(t, r.Submit(intent("fast.run", "f")))

	v, err := awaitWithin(t, w)
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestRunner_InvocationMatching(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	r.Register("m", "echo", Func(func(args []any, _ ir.State) (any, error) { return args[0], nil }))

	first := r.Watch("m/echo", "first")
	second := r.Watch("m/echo", "second")

	// "first" never reaches the runner (e.g. an interceptor swallowed it)
	require.NoError(t, r.Submit(intent("m.echo", "second", "two")))

	v, err := awaitWithin(t, second)
	require.NoError(t, err)
	assert.Equal(t, "two", v)

	_, _, settled := first.Result()
	assert.False(t, settled)
	assert.Equal(t, 1, r.Pending("m/echo"))
}

func TestRunner_AnonymousWatchIsFIFO(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	r.Register("m", "echo", Func(func(args []any, _ ir.State) (any, error) { return args[0], nil }))

	w1 := r.Watch("m/echo", "")
	w2 := r.Watch("m/echo", "")
	require.NoError(t, r.Submit(intent("m.echo", "", 1)))
	require.NoError(t, r.Submit(intent("m.echo", "", 2)))

	v1, err := awaitWithin(t, w1)
	require.NoError(t, err)
	v2, err := awaitWithin(t, w2)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestRunner_StopRejectsPendingWatchers(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	w := r.Watch("m/never", "x")
	r.Stop()

	_, err := awaitWithin(t, w)
	assert.ErrorIs(t, err, ErrStopped)

	assert.ErrorIs(t, r.Submit(intent("m.never", "y")), ErrStopped)

	late := r.Watch("m/never", "z")
	_, err = awaitWithin(t, late)
	assert.ErrorIs(t, err, ErrStopped)

	// idempotent
	r.Stop()
}

func TestRunner_Drive(t *testing.T) {
	host := newFakeHost()
	host.state["user"] = ir.State{"name": "ada"}
	r := NewRunner(host, nil)
	defer r.Stop()

	v, err := r.Drive(context.Background(), "user", Script(Select("name"))(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "ada", v)
}

func TestRunner_Cancel(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	boom := errors.New("interceptor refused")
	w := r.Watch("m/echo", "inv-1")
	other := r.Watch("m/echo", "inv-2")

	assert.True(t, r.Cancel("m/echo", "inv-1", boom))
	assert.False(t, r.Cancel("m/echo", "inv-1", boom))

	_, err := awaitWithin(t, w)
	assert.ErrorIs(t, err, boom)

	_, _, settled := other.Result()
	assert.False(t, settled)
	assert.Equal(t, 1, r.Pending("m/echo"))
}

func TestRunner_ReleaseSkipsSubmitted(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	release := make(chan struct{})
	r.Register("m", "slow", Func(func([]any, ir.State) (any, error) {
		<-release
		return "done", nil
	}))

	dropped := errors.New("dropped")
	queued := r.Watch("m/slow", "inv-1")
	lost := r.Watch("m/slow", "inv-2")
	require.NoError(t, r.Submit(intent("m.slow", "inv-1")))

	assert.False(t, r.Release("m/slow", "inv-1", dropped))
	assert.True(t, r.Release("m/slow", "inv-2", dropped))
	assert.False(t, r.Release("m/slow", "inv-3", dropped))

	_, err := awaitWithin(t, lost)
	assert.ErrorIs(t, err, dropped)

	close(release)
	v, err := awaitWithin(t, queued)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Zero(t, r.Pending("m/slow"))
}

func TestRunner_Idle(t *testing.T) {
	r := NewRunner(newFakeHost(), nil)
	defer r.Stop()

	require.NoError(t, r.Idle(context.Background()))

	release := make(chan struct{})
	r.Register("user", "load", Func(func([]any, ir.State) (any, error) {
		<-release
		return nil, nil
	}))
	require.NoError(t, r.Submit(intent("user.load", "")))
	require.NoError(t, r.Submit(intent("user.load", "")))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Idle(short), context.DeadlineExceeded)

	close(release)
	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	assert.NoError(t, r.Idle(ctx))
}
