package engine

import (
	"context"
	"fmt"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/effect"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

// popSuppress copies args and pops a trailing literal false.
func popSuppress(args []any) ([]any, bool) {
	if n := len(args); n > 0 {
		if b, ok := args[n-1].(bool); ok && !b {
			return append([]any(nil), args[:n-1]...), true
		}
	}
	return append([]any(nil), args...), false
}

// execProcessor builds the async processor.
//
// Dispatch order per call: start, then exactly one of success or error. The
// exec itself runs on its own goroutine after start has been delivered.
func (s *Store) execProcessor(m *Model, name string, cfg ActionConfig) Creator {
	startType := actiontype.Encode(m.name, name, actiontype.StatusStart)
	successType := actiontype.Encode(m.name, name, actiontype.StatusSuccess)
	errorType := actiontype.Encode(m.name, name, actiontype.StatusError)

	return func(raw ...any) Thunk {
		return func(dispatch DispatchFunc) *future.Future {
			args, suppress := popSuppress(raw)
			suppress = suppress || cfg.NoDispatch

			result := future.New()
			inv := s.ids.Generate()
			base := ir.Payload{Store: m.InitialState(), Arguments: args, Exec: cfg.Exec}

			if !suppress {
				start := base
				start.Promise = result
				if err := dispatch(ir.Action{Type: startType, Payload: start, Invocation: inv}); err != nil {
					result.Reject(err)
					return result
				}
			}

			go func() {
				value, err := s.runExec(m, name, cfg.Exec, args)
				if err == nil {
					if e, ok := value.(error); ok {
						value, err = nil, e
					}
				}
				if err != nil {
					if !suppress {
						failed := base
						failed.Message = err.Error()
						if derr := dispatch(ir.Action{Type: errorType, Error: true, Payload: failed, Invocation: inv}); derr != nil {
							s.logger.Warn("error dispatch failed", "type", errorType, "invocation", inv, "error", derr)
						}
					}
					result.Reject(err)
					return
				}
				if !suppress {
					done := base
					done.Data = value
					if derr := dispatch(ir.Action{Type: successType, Payload: done, Invocation: inv}); derr != nil {
						result.Reject(derr)
						return
					}
				}
				result.Resolve(value)
			}()
			return result
		}
	}
}

// runExec evaluates one exec value. Panics are returned as errors.
func (s *Store) runExec(m *Model, name string, exec any, args []any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("exec %s.%s: %w", m.name, name, future.Recovered(rec))
		}
	}()

	ctx := s.ctx
	switch x := exec.(type) {
	case ExecFunc:
		state, _ := s.State(m.name)
		return x(ctx, ExecCall{Model: m.name, Action: name, Arguments: args, State: state})
	case func(context.Context, ExecCall) (any, error):
		return s.runExec(m, name, ExecFunc(x), args)
	case ir.Request:
		return s.request(ctx, x.WithCall(args))
	case *ir.Request:
		return s.request(ctx, x.WithCall(args))
	case ir.Awaiter:
		return x.Await(ctx)
	default:
		return exec, nil
	}
}

func (s *Store) request(ctx context.Context, req ir.Request) (any, error) {
	if s.requester == nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL, ErrNoRequester)
	}
	return s.requester.Request(ctx, req)
}

// effectProcessor builds the effect processor.
//
// A normal call dispatches an intent and returns the runner's watch future
// for the action type. A suppressed call drives the body synchronously on the
// caller's goroutine with puts disabled and returns its result.
func (s *Store) effectProcessor(m *Model, name string, cfg ActionConfig) Creator {
	typ := actiontype.Encode(m.name, name)
	intentName := actiontype.ToAction(m.name, name)

	return func(raw ...any) Thunk {
		return func(dispatch DispatchFunc) *future.Future {
			args, suppress := popSuppress(raw)
			if suppress || cfg.NoDispatch {
				out := future.New()
				out.Settle(s.driveSuppressed(m, intentName, cfg.Effect, args))
				return out
			}

			inv := s.ids.Generate()
			w := s.runner.Watch(typ, inv)
			err := dispatch(ir.Action{
				Intent:     intentName,
				Invocation: inv,
				Payload:    ir.Payload{Arguments: args, Store: m.InitialState()},
			})
			if err != nil {
				s.runner.Cancel(typ, inv, err)
			} else {
				s.runner.Release(typ, inv, fmt.Errorf("effect %s: %w", intentName, ErrIntentDropped))
			}
			return w
		}
	}
}

// driveSuppressed runs an effect body to completion on the caller's
// goroutine. A panic in the body becomes the returned error.
func (s *Store) driveSuppressed(m *Model, intentName string, body effect.Body, args []any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("effect %s: %w", intentName, future.Recovered(rec))
		}
	}()
	gen := body(args, m.InitialState())
	if gen == nil {
		return nil, fmt.Errorf("effect %s: body returned no generator", intentName)
	}
	return effect.Drive(s.ctx, suppressedHost{s: s}, m.name, gen)
}

// plainProcessor builds the processor for callback and static-data actions.
func (s *Store) plainProcessor(m *Model, name string, cfg ActionConfig) Creator {
	typ := actiontype.Encode(m.name, name)

	return func(raw ...any) Thunk {
		return func(dispatch DispatchFunc) *future.Future {
			args, suppress := popSuppress(raw)
			suppress = suppress || cfg.NoDispatch
			inv := s.ids.Generate()

			if cfg.Callback == nil {
				if suppress {
					return future.Resolved(cfg.Data)
				}
				err := dispatch(ir.Action{
					Type:       typ,
					Invocation: inv,
					Payload:    ir.Payload{Data: cfg.Data, Arguments: args, Store: m.InitialState()},
				})
				if err != nil {
					return future.Rejected(err)
				}
				return future.Resolved(nil)
			}

			call := &Call{
				Model:      m.name,
				Action:     name,
				Arguments:  args,
				store:      s,
				model:      m,
				dispatch:   dispatch,
				invocation: inv,
				suppressed: suppress,
			}
			value, err := runCallback(cfg.Callback, call)
			if err != nil {
				return future.Rejected(err)
			}

			if value == nil {
				if call.used() || suppress {
					return future.Resolved(nil)
				}
				// applied directly: record the call for bookkeeping
				action := ir.Action{
					Type:       typ,
					Invocation: inv,
					Payload:    ir.Payload{Arguments: args, Store: m.InitialState()},
				}
				if !m.HandlesType(typ) {
					action.Type = m.immediate
				}
				if err := call.emit(action); err != nil {
					return future.Rejected(err)
				}
				return future.Resolved(nil)
			}

			if aw, ok := value.(ir.Awaiter); ok {
				out := future.New()
				go func() {
					v, err := aw.Await(s.ctx)
					if err == nil {
						if _, isErr := v.(error); !isErr && v != nil {
							if derr := call.emit(call.immediate(v)); derr != nil {
								s.logger.Warn("immediate update failed", "model", m.name, "action", name, "error", derr)
							}
						}
					}
					out.Settle(v, err)
				}()
				return out
			}

			if err := call.emit(call.immediate(value)); err != nil {
				return future.Rejected(err)
			}
			return future.Resolved(value)
		}
	}
}

func runCallback(cb Callback, call *Call) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback %s.%s: %w", call.Model, call.Action, future.Recovered(rec))
		}
	}()
	return cb(call)
}
