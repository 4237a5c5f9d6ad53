package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/effect"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/pipeline"
)

// Store is the model registry and dispatch context.
//
// Thread-safety model:
//   - Dispatch: safe from any goroutine; dispatches are serialized
//   - Register, GetModel, GetActions, State: safe from any goroutine
//   - Reducers and interceptors must not call back into Dispatch
type Store struct {
	logger    *slog.Logger
	requester Requester
	ids       InvocationGenerator
	clock     *Clock
	initial   []pipeline.Interceptor

	pipe   *pipeline.Pipeline
	runner *effect.Runner

	ctx    context.Context
	cancel context.CancelFunc

	// dispatchMu serializes pipeline walks.
	dispatchMu sync.Mutex

	// mu guards the fields below.
	mu        sync.RWMutex
	models    map[string]*Model
	order     []string
	revision  int64
	applied   int64
	listeners map[int]func(ir.Action)
	nextID    int
	closed    bool
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		clock:     NewClock(),
		ctx:       ctx,
		cancel:    cancel,
		models:    make(map[string]*Model),
		listeners: make(map[int]func(ir.Action)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pipe = pipeline.New(s.apply, s.initial...)
	s.runner = effect.NewRunner(effectHost{s: s}, s.logger)
	return s
}

// Close stops the effect runner and cancels in-flight exec calls.
// Dispatch fails with ErrClosed afterwards. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.runner.Stop()
	s.logger.Debug("store closed")
	return nil
}

// Settle blocks until every dispatched intent, including intents dispatched
// by running effects, has finished.
func (s *Store) Settle(ctx context.Context) error {
	return s.runner.Idle(ctx)
}

// Use appends interceptors to the dispatch pipeline.
func (s *Store) Use(interceptors ...pipeline.Interceptor) {
	s.pipe.Use(interceptors...)
}

// Clock returns the store's logical clock.
func (s *Store) Clock() *Clock {
	return s.clock
}

// Dispatch stamps an action with the next seq and sends it through the
// pipeline. Intents go to the effect runner; typed actions are reduced.
func (s *Store) Dispatch(action ir.Action) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	action.Seq = s.clock.Next()
	return s.pipe.Dispatch(action)
}

// apply is the base dispatch at the end of the pipeline.
func (s *Store) apply(action ir.Action) error {
	if action.IsIntent() {
		if err := s.runner.Submit(action); err != nil {
			s.logger.Warn("effect intent rejected", "intent", action.Intent, "error", err)
			return err
		}
		s.notify(action)
		return nil
	}
	if action.Type == "" {
		return fmt.Errorf("dispatch: action has neither type nor intent")
	}

	s.reduce(action)
	s.notify(action)
	return nil
}

// reduce runs every model's reducer for the action type, in registration
// order, and bumps revisions of changed slices.
func (s *Store) reduce(action ir.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, name := range s.order {
		m := s.models[name]
		r, ok := m.reducers[action.Type]
		if !ok {
			continue
		}
		next, err := s.runReducer(m, r, action)
		if err != nil {
			s.logger.Error("reducer failed",
				"model", m.name,
				"type", action.Type,
				"seq", action.Seq,
				"error", err,
			)
			continue
		}
		if ir.Equal(next, m.state) {
			continue
		}
		m.state = next
		m.revision++
		changed = true
	}
	if changed {
		s.revision++
	}
	if action.Seq > s.applied {
		s.applied = action.Seq
	}
}

func (s *Store) runReducer(m *Model, r ir.Reducer, action ir.Action) (next ir.State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = future.Recovered(rec)
		}
	}()
	draft := ir.CloneState(m.state)
	next = r(draft, detach(action.Payload))
	if next == nil {
		next = draft
	}
	return next, nil
}

// detach copies the payload values a reducer could keep, so state never
// shares maps or slices with the caller or with another model.
func detach(p ir.Payload) ir.Payload {
	p.Data = ir.Clone(p.Data)
	if p.Store != nil {
		p.Store = ir.CloneState(p.Store)
	}
	if p.Arguments != nil {
		p.Arguments = ir.Clone(p.Arguments).([]any)
	}
	return p
}

// Subscribe registers a listener called after every delivered action.
// Listeners run inside the dispatch and must not dispatch.
func (s *Store) Subscribe(fn func(ir.Action)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(action ir.Action) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(ir.Action), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(action)
	}
}

// GetModel returns a registered model.
func (s *Store) GetModel(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// Models returns the registered model names in registration order.
func (s *Store) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// GetActions returns a model's action creators bound to this store's dispatch.
func (s *Store) GetActions(name string) (map[string]ActionFunc, error) {
	m, ok := s.GetModel(name)
	if !ok {
		return nil, s.unknownModel(name)
	}
	return BindActions(m.creators, s.Dispatch), nil
}

// Action returns one bound action creator by dotted name ("model.action").
func (s *Store) Action(name string) (ActionFunc, error) {
	model, action, ok := actiontype.FromAction(name)
	if !ok {
		return nil, fmt.Errorf("action %q: want model.action", name)
	}
	m, ok := s.GetModel(model)
	if !ok {
		return nil, s.unknownModel(model)
	}
	c, ok := m.creators[action]
	if !ok {
		return nil, fmt.Errorf("action %q: %w", name, ErrUnknownAction)
	}
	return bind(c, s.Dispatch), nil
}

// Call invokes a bound action by dotted name.
func (s *Store) Call(name string, args ...any) (*future.Future, error) {
	fn, err := s.Action(name)
	if err != nil {
		return nil, err
	}
	return fn(args...), nil
}

// State returns a copy of a model's current state.
func (s *Store) State(name string) (ir.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	if !ok {
		return nil, false
	}
	return ir.CloneState(m.state), true
}

// States returns a copy of every model's state keyed by model name.
func (s *Store) States() map[string]ir.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ir.State, len(s.models))
	for name, m := range s.models {
		out[name] = ir.CloneState(m.state)
	}
	return out
}

// Revision returns a model's revision. Unknown models report 0.
func (s *Store) Revision(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.models[name]; ok {
		return m.revision
	}
	return 0
}

// GlobalRevision returns the number of dispatches that changed any slice.
func (s *Store) GlobalRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// ModelSnapshot is one model's state at a revision.
type ModelSnapshot struct {
	Model    string
	Revision int64
	State    ir.State
}

// Snapshot returns every model's state and revision in registration order,
// together with the seq of the last reduced action.
func (s *Store) Snapshot() ([]ModelSnapshot, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ModelSnapshot, 0, len(s.order))
	for _, name := range s.order {
		m := s.models[name]
		out = append(out, ModelSnapshot{Model: name, Revision: m.revision, State: ir.CloneState(m.state)})
	}
	return out, s.applied
}

// Suggest returns the registered model name closest to name, or "" when
// nothing is close enough.
func (s *Store) Suggest(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return suggest(name, s.order)
}

func suggest(name string, candidates []string) string {
	best := ""
	bestDist := -1
	limit := max(2, len(name)/3)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if d > limit {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (s *Store) unknownModel(name string) error {
	if hint := s.Suggest(name); hint != "" {
		return fmt.Errorf("model %q: %w (did you mean %q?)", name, ErrUnknownModel, hint)
	}
	return fmt.Errorf("model %q: %w", name, ErrUnknownModel)
}

// IsUnknownModel reports whether err wraps ErrUnknownModel.
func IsUnknownModel(err error) bool {
	return errors.Is(err, ErrUnknownModel)
}
