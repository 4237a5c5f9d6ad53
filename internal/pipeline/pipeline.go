// Package pipeline implements the ordered interceptor chain every dispatched
// action passes through before it reaches the base dispatch.
//
// The chain is composed per dispatch call in continuation-passing style: each
// call builds fresh closures for its own walk down the interceptor list, so no
// position counter is shared between interleaved dispatches.
package pipeline

import (
	"slices"
	"sync"

	"github.com/roach88/seed/internal/ir"
)

// Next forwards an action to the remainder of the chain.
type Next func(ir.Action) error

// Interceptor observes or transforms an action.
//
// An interceptor advances the chain by calling next with the (possibly
// transformed) action. Not calling next stops the action: no later
// interceptor and not the base dispatch will see it. Returning an error aborts
// the dispatch; the error propagates to the caller of Dispatch unchanged.
//
// raw is the base dispatch itself, bypassing every interceptor. Follow-up
// actions an interceptor emits must go through raw: they skip the rest of the
// chain and are not stamped with a seq. Calling the owning store's Dispatch
// from an interceptor deadlocks.
//
// An effect intent must be forwarded before the interceptor returns. An
// intent that never reaches the base dispatch rejects its call.
type Interceptor func(action ir.Action, next Next, raw Next) error

// Pipeline is an ordered list of interceptors terminating at a base dispatch.
//
// Thread-safety: Use and Dispatch are safe for concurrent use. A dispatch
// walks the interceptors registered when it started.
type Pipeline struct {
	mu           sync.RWMutex
	base         Next
	interceptors []Interceptor
}

// New creates a pipeline that delivers actions to base.
func New(base Next, interceptors ...Interceptor) *Pipeline {
	return &Pipeline{
		base:         base,
		interceptors: slices.Clone(interceptors),
	}
}

// Use appends interceptors to the end of the chain.
func (p *Pipeline) Use(interceptors ...Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interceptors = append(p.interceptors, interceptors...)
}

// Len returns the number of registered interceptors.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.interceptors)
}

// Dispatch sends an action through every interceptor in registration order.
func (p *Pipeline) Dispatch(action ir.Action) error {
	p.mu.RLock()
	chain := slices.Clone(p.interceptors)
	p.mu.RUnlock()
	return Compose(chain, p.base)(action)
}

// Compose builds the continuation for one walk of chain ending at base.
func Compose(chain []Interceptor, base Next) Next {
	var step func(i int) Next
	step = func(i int) Next {
		if i >= len(chain) {
			return base
		}
		return func(action ir.Action) error {
			return chain[i](action, step(i+1), base)
		}
	}
	return step(0)
}
