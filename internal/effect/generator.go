package effect

import (
	"fmt"

	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

// GeneratorFunc adapts a step function to Generator.
type GeneratorFunc func(resume any, err error) Step

// Next implements Generator.
func (f GeneratorFunc) Next(resume any, err error) Step {
	return f(resume, err)
}

// Func wraps a function that needs no effects.
func Func(fn func(args []any, store ir.State) (any, error)) Body {
	return func(args []any, store ir.State) Generator {
		done := false
		return GeneratorFunc(func(any, error) Step {
			if done {
				return Return(nil, ErrGeneratorDone)
			}
			done = true
			return Return(fn(args, store))
		})
	}
}

// Script yields each effect in order and completes with the result of the
// last one. An effect failure completes the script with that error.
func Script(effects ...Effect) Body {
	return func(args []any, store ir.State) Generator {
		next := 0
		done := false
		var last any
		return GeneratorFunc(func(resume any, err error) Step {
			if done {
				return Return(nil, ErrGeneratorDone)
			}
			if next > 0 {
				if err != nil {
					done = true
					return Return(nil, err)
				}
				last = resume
			}
			if next >= len(effects) {
				done = true
				return Return(last, nil)
			}
			e := effects[next]
			next++
			return Yielded(e)
		})
	}
}

// Yield performs an effect from inside a coroutine body and returns its result.
type Yield func(Effect) (any, error)

// CoroutineFunc is straight-line body code run by Coroutine.
type CoroutineFunc func(yield Yield, args []any, store ir.State) (any, error)

// Coroutine turns straight-line code into a Generator.
//
// The function runs on its own goroutine and hands control back and forth with
// the driver over unbuffered channels, so exactly one side runs at a time.
// yield must only be called from the body's own goroutine.
func Coroutine(fn CoroutineFunc) Body {
	return func(args []any, store ir.State) Generator {
		return &coroutine{fn: fn, args: args, store: store}
	}
}

type resumeMsg struct {
	value any
	err   error
}

type stopSignal struct{}

type coroutine struct {
	fn    CoroutineFunc
	args  []any
	store ir.State

	started  bool
	finished bool
	steps    chan Step
	resumes  chan resumeMsg
	stop     chan struct{}
}

func (c *coroutine) Next(resume any, err error) Step {
	if c.finished {
		return Return(nil, ErrGeneratorDone)
	}
	if !c.started {
		c.started = true
		c.steps = make(chan Step)
		c.resumes = make(chan resumeMsg)
		c.stop = make(chan struct{})
		go c.run()
	} else {
		c.resumes <- resumeMsg{value: resume, err: err}
	}
	step := <-c.steps
	if step.Done {
		c.finished = true
	}
	return step
}

// Stop unwinds a coroutine parked in yield.
func (c *coroutine) Stop() {
	if !c.started || c.finished {
		return
	}
	c.finished = true
	close(c.stop)
}

func (c *coroutine) run() {
	value, err, stopped := c.call()
	if stopped {
		return
	}
	c.steps <- Return(value, err)
}

func (c *coroutine) call() (value any, err error, stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stopSignal); ok {
				stopped = true
				return
			}
			err = fmt.Errorf("effect body: %w", future.Recovered(r))
		}
	}()
	value, err = c.fn(c.yield, c.args, c.store)
	return value, err, false
}

func (c *coroutine) yield(e Effect) (any, error) {
	select {
	case c.steps <- Yielded(e):
	case <-c.stop:
		panic(stopSignal{})
	}
	select {
	case m := <-c.resumes:
		return m.value, m.err
	case <-c.stop:
		panic(stopSignal{})
	}
}
