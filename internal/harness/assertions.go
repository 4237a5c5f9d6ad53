package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/seed/internal/compiler"
	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/store"
)

// AssertionError provides detailed context for assertion failures.
// It includes the expected outcome, the actual outcome and the full trace.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface with a multi-line report.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Name())
			if event.Data != nil {
				fmt.Fprintf(&buf, " %s", formatValue(event.Data))
			}
			if event.Error {
				fmt.Fprintf(&buf, " error=%q", event.Message)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext carries what the store-backed assertions need.
type AssertionContext struct {
	Ctx     context.Context
	Journal *store.Store
	Program *compiler.Program
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertState:
		return assertState(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertRevision:
		return assertRevision(result, a)
	case AssertReplay:
		if actx == nil || actx.Journal == nil || actx.Program == nil {
			return fmt.Errorf("replay assertion requires a journal and a program")
		}
		return assertReplay(actx)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertState compares the value at a path in a model's final state.
func assertState(result *Result, a Assertion) error {
	state, ok := result.State[a.Model]
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("model %s to be registered", a.Model),
			Actual:   "model not found",
		}
	}

	got, found := ir.LookupPath(map[string]any(state), a.Path)
	where := a.Model
	if a.Path != "" {
		where += "." + a.Path
	}
	want, err := normalize(a.Equals)
	if err != nil {
		return err
	}
	if !found {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %s", where, formatValue(want)),
			Actual:   fmt.Sprintf("%s is not set", where),
		}
	}
	got, err = normalize(got)
	if err != nil {
		return err
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %s", where, formatValue(want)),
			Actual:   fmt.Sprintf("%s = %s", where, formatValue(got)),
		}
	}
	return nil
}

// assertTraceContains checks that an action was delivered. When data is
// given, the event's data must contain it.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := normalize(a.Data)
	if err != nil {
		return err
	}
	for _, event := range trace {
		if event.Name() != a.Action {
			continue
		}
		if want == nil || containsValue(event.Data, want) {
			return nil
		}
	}

	expected := "action " + a.Action
	if want != nil {
		expected += " with data " + formatValue(want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the actions appear in the trace as a
// subsequence, in the given order.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Actions) && event.Name() == a.Actions[next] {
			next++
		}
	}
	if next == len(a.Actions) {
		return nil
	}

	actual := fmt.Sprintf("missing %s", a.Actions[next])
	if next > 0 {
		actual += fmt.Sprintf(" after %s", a.Actions[next-1])
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", a.Actions),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of deliveries of an action.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name() == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertRevision(result *Result, a Assertion) error {
	rev, ok := result.Revisions[a.Model]
	if !ok {
		return &AssertionError{
			Type:     AssertRevision,
			Expected: fmt.Sprintf("model %s to be registered", a.Model),
			Actual:   "model not found",
		}
	}
	if rev < a.Min {
		return &AssertionError{
			Type:     AssertRevision,
			Expected: fmt.Sprintf("%s revision >= %d", a.Model, a.Min),
			Actual:   fmt.Sprintf("revision %d", rev),
		}
	}
	return nil
}

// assertReplay rebuilds state from the journal in a fresh store and compares
// it with the checkpoint taken at the end of the run.
func assertReplay(actx *AssertionContext) error {
	fresh := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer fresh.Close()

	if err := actx.Program.Register(fresh); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	entries, err := actx.Journal.Actions(actx.Ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if _, err := fresh.Replay(entries); err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	mismatches, err := actx.Journal.Verify(actx.Ctx, fresh)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		return nil
	}
	models := make([]string, len(mismatches))
	for i, m := range mismatches {
		models[i] = m.Model
	}
	return &AssertionError{
		Type:     AssertReplay,
		Expected: fmt.Sprintf("replaying %d journaled actions reproduces the final state", len(entries)),
		Actual:   fmt.Sprintf("state differs for %s", strings.Join(models, ", ")),
	}
}

// containsValue reports whether want is a subset of got: objects match when
// every expected key matches, everything else must be equal.
func containsValue(got, want any) bool {
	wantObj, ok := want.(map[string]any)
	if !ok {
		g, err := normalize(got)
		return err == nil && ir.Equal(g, want)
	}
	gotObj, ok := got.(map[string]any)
	if !ok {
		return false
	}
	for k, w := range wantObj {
		g, ok := gotObj[k]
		if !ok || !containsValue(g, w) {
			return false
		}
	}
	return true
}
