// Package future provides a single-assignment result cell.
//
// A Future is the Go rendition of a settled-once promise: processors return
// one per action call, the effect runner hands out one per watched action
// type, and start-status payloads carry one so interceptors can follow the
// call to completion.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrNilRejection is stored when Reject is called with a nil error.
var ErrNilRejection = errors.New("future rejected without an error")

// Future holds a value or an error that becomes available exactly once.
//
// Thread-safety: all methods are safe for concurrent use. The first call to
// Resolve, Reject or Settle wins; later calls report false and are ignored.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

// New returns a pending future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved(v any) *Future {
	f := New()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	f := New()
	f.Reject(err)
	return f
}

// Go runs fn in a new goroutine and settles the returned future with its result.
// A panic in fn rejects the future.
func Go(fn func() (any, error)) *Future {
	f := New()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(panicError(r))
			}
		}()
		f.Settle(fn())
	}()
	return f
}

// Resolve settles the future with v.
func (f *Future) Resolve(v any) bool {
	return f.Settle(v, nil)
}

// Reject settles the future with err.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	return f.Settle(nil, err)
}

// Settle stores (v, err) if the future is still pending.
func (f *Future) Settle(v any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled value without blocking. ok is false while pending.
func (f *Future) Result() (value any, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}

// Then calls fn with the result once the future settles.
// fn runs on its own goroutine, never on the caller's.
func (f *Future) Then(fn func(any, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

// Chain settles f with whatever src settles with.
func (f *Future) Chain(src *Future) {
	src.Then(func(v any, err error) { f.Settle(v, err) })
}
