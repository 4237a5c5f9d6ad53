package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/seed/internal/compiler"
	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/pipeline"
	"github.com/roach88/seed/internal/store"
	"github.com/roach88/seed/internal/testutil"
)

// DefaultTimeout bounds one step when the scenario sets no timeout.
const DefaultTimeout = 5 * time.Second

// Option configures a harness run.
type Option func(*Harness)

// WithLogger sets the logger for the harness and the engine under test.
// Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Harness executes one scenario against a real engine store.
type Harness struct {
	scenario *Scenario
	program  *compiler.Program
	engine   *engine.Store
	journal  *store.Store
	recorder *store.Recorder
	stub     *StubRequester
	trace    *tracer
	logger   *slog.Logger
	timeout  time.Duration
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh engine journaling to a fresh in-memory
// database. Invocation ids are numbered, so the trace is reproducible.
//
// Execution flow:
//  1. Load, compile and validate the scenario's models
//  2. Register them in an engine backed by the stub request layer
//  3. Execute setup steps; any failure aborts the run
//  4. Execute steps, checking each expect clause
//  5. Checkpoint the final state and evaluate assertions
//
// An error is returned only when the scenario cannot run at all; failed
// expectations and assertions are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  scenario.Timeout,
		trace:    &tracer{},
	}
	if h.timeout <= 0 {
		h.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	result.Scenario = scenario.Name
	if err := h.executeSetup(); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeSteps(result)

	result.Trace = h.trace.events()
	result.State = h.engine.States()
	for _, name := range h.engine.Models() {
		result.Revisions[name] = h.engine.Revision(name)
	}
	result.Requests = h.stub.Requests()

	if err := h.recorder.Checkpoint(h.engine); err != nil {
		return nil, fmt.Errorf("failed to checkpoint: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Journal: h.journal,
		Program: h.program,
	}
	for _, errMsg := range EvaluateAssertions(result, h.scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) open(ctx context.Context) error {
	program, errs := compiler.LoadProgram(h.scenario.Specs...)
	if len(errs) > 0 {
		return fmt.Errorf("failed to load specs: %w", errors.Join(errs...))
	}
	if verrs := compiler.Validate(program); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, verr := range verrs {
			joined[i] = verr
		}
		return fmt.Errorf("invalid specs: %w", errors.Join(joined...))
	}
	h.program = program

	responses, err := normalizeResponses(h.scenario.Responses)
	if err != nil {
		return err
	}
	h.stub = NewStubRequester(responses)

	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	h.journal = st
	h.recorder = store.NewRecorder(ctx, st, h.logger)

	prefix := h.scenario.InvocationPrefix
	if prefix == "" {
		prefix = "inv"
	}
	h.engine = engine.New(
		engine.WithLogger(h.logger),
		engine.WithRequester(h.stub),
		engine.WithInvocationGenerator(testutil.NewSequenceGenerator(prefix)),
		engine.WithInterceptors(h.recorder.Interceptor(), h.trace.interceptor()),
	)
	if err := program.Register(h.engine); err != nil {
		h.close()
		return fmt.Errorf("failed to register models: %w", err)
	}
	return nil
}

func (h *Harness) close() {
	if h.engine != nil {
		_ = h.engine.Close()
	}
	if h.journal != nil {
		_ = h.journal.Close()
	}
}

// executeSetup runs setup steps. They must all succeed.
func (h *Harness) executeSetup() error {
	for i, step := range h.scenario.Setup {
		if _, err := h.execute(step); err != nil {
			return fmt.Errorf("setup[%d] %s: %w", i, describeStep(step), err)
		}
		h.logger.Info("setup step completed", "step", i, "action", describeStep(step))
	}
	return nil
}

// executeSteps runs steps in order, recording every failed expectation.
// A failed step does not stop the run.
func (h *Harness) executeSteps(result *Result) {
	for i, step := range h.scenario.Steps {
		value, err := h.execute(step)

		var timeout *stepTimeoutError
		if errors.As(err, &timeout) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, describeStep(step), err))
			continue
		}
		if msg := checkExpect(step, value, err); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, describeStep(step), msg))
		}
		h.logger.Info("step completed", "step", i, "action", describeStep(step), "error", err)
	}
}

type stepTimeoutError struct {
	timeout time.Duration
}

func (e *stepTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.timeout)
}

// execute performs one step and waits until the engine is quiet: the call
// has settled and every intent it caused has finished.
func (h *Harness) execute(step Step) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	value, err := h.perform(ctx, step)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return nil, &stepTimeoutError{timeout: h.timeout}
	}
	if serr := h.engine.Settle(ctx); serr != nil {
		return nil, &stepTimeoutError{timeout: h.timeout}
	}
	return value, err
}

func (h *Harness) perform(ctx context.Context, step Step) (any, error) {
	if step.Dispatch != nil {
		data, err := normalize(step.Dispatch.Data)
		if err != nil {
			return nil, err
		}
		return nil, h.engine.Dispatch(ir.Action{
			Type:    step.Dispatch.Type,
			Intent:  step.Dispatch.Intent,
			Payload: ir.Payload{Data: data},
		})
	}

	args, err := normalizeArgs(step.Args)
	if err != nil {
		return nil, err
	}
	f, err := h.engine.Call(step.Call, args...)
	if err != nil {
		return nil, err
	}
	return f.Await(ctx)
}

// checkExpect returns a failure message, or "" when the outcome matches.
func checkExpect(step Step, value any, err error) string {
	if step.Expect == nil || step.Expect.Error == "" {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
	}
	if step.Expect == nil {
		return ""
	}

	if step.Expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error containing %q, got success", step.Expect.Error)
		}
		if !strings.Contains(err.Error(), step.Expect.Error) {
			return fmt.Sprintf("expected error containing %q, got %q", step.Expect.Error, err.Error())
		}
		return ""
	}

	if step.Expect.Data == nil {
		return ""
	}
	want, werr := normalize(step.Expect.Data)
	got, gerr := normalize(value)
	if werr != nil || gerr != nil {
		return fmt.Sprintf("cannot compare result: %v", errors.Join(werr, gerr))
	}
	if !ir.Equal(want, got) {
		return fmt.Sprintf("expected result %s, got %s", formatValue(want), formatValue(got))
	}
	return ""
}

func describeStep(step Step) string {
	if step.Dispatch == nil {
		return step.Call
	}
	if step.Dispatch.Intent != "" {
		return "dispatch " + step.Dispatch.Intent
	}
	return "dispatch " + step.Dispatch.Type
}

func normalizeResponses(responses []Response) ([]Response, error) {
	out := make([]Response, len(responses))
	for i, r := range responses {
		data, err := normalize(r.Data)
		if err != nil {
			return nil, fmt.Errorf("responses[%d]: %w", i, err)
		}
		r.Data = data
		out[i] = r
	}
	return out, nil
}

// formatValue renders a value as canonical JSON for messages.
func formatValue(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// tracer records every action that completed delivery.
type tracer struct {
	mu       sync.Mutex
	recorded []TraceEvent
}

func (t *tracer) interceptor() pipeline.Interceptor {
	return func(a ir.Action, next pipeline.Next, _ pipeline.Next) error {
		if err := next(a); err != nil {
			return err
		}
		t.mu.Lock()
		t.recorded = append(t.recorded, traceEvent(a))
		t.mu.Unlock()
		return nil
	}
}

func (t *tracer) events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.recorded))
	copy(out, t.recorded)
	return out
}
