package effect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/seed/internal/actiontype"
	"github.com/roach88/seed/internal/future"
	"github.com/roach88/seed/internal/ir"
)

type job struct {
	model      string
	action     string
	invocation string
	args       []any
	store      ir.State
	body       Body
}

type watch struct {
	invocation string
	f          *future.Future
	submitted  bool
}

// Runner drives effect intents submitted by the dispatch pipeline.
//
// Thread-safety: all methods are safe for concurrent use. Submit never blocks,
// so it may be called from inside a dispatch.
type Runner struct {
	host   Host
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	bodies  map[string]Body
	watches map[string][]watch
	queues  map[string]*jobQueue
	closed  bool

	inflight int
	idle     chan struct{} // closed when inflight drops to zero
}

// NewRunner creates a runner that performs effects through host.
func NewRunner(host Host, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		host:    host,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		bodies:  make(map[string]Body),
		watches: make(map[string][]watch),
		queues:  make(map[string]*jobQueue),
	}
}

// Register installs the body run for intent "model.action".
func (r *Runner) Register(model, action string, body Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[actiontype.ToAction(model, action)] = body
}

// Has reports whether intent names a registered body.
func (r *Runner) Has(intent string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bodies[intent]
	return ok
}

// Watch returns a future settled when the next effect run for actionType
// completes.
//
// Watchers for one type are matched to completions by invocation id; a
// completion whose invocation nobody watches settles the oldest watcher that
// has no invocation id. Watch must be called before the intent is
// dispatched, otherwise a fast effect can complete unobserved.
func (r *Runner) Watch(actionType, invocation string) *future.Future {
	f := future.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		f.Reject(ErrStopped)
		return f
	}
	r.watches[actionType] = append(r.watches[actionType], watch{invocation: invocation, f: f})
	return f
}

// Submit queues an intent action for its model's worker.
func (r *Runner) Submit(intent ir.Action) error {
	model, action, ok := actiontype.FromAction(intent.Intent)
	if !ok {
		return fmt.Errorf("submit intent %q: want model.action", intent.Intent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrStopped
	}
	body, ok := r.bodies[intent.Intent]
	if !ok {
		return fmt.Errorf("submit intent %q: %w", intent.Intent, ErrUnknownEffect)
	}

	q, ok := r.queues[model]
	if !ok {
		q = newJobQueue()
		r.queues[model] = q
		r.wg.Add(1)
		go r.work(model, q)
	}
	if intent.Invocation != "" {
		ws := r.watches[actiontype.Encode(model, action)]
		for i := range ws {
			if ws[i].invocation == intent.Invocation {
				ws[i].submitted = true
				break
			}
		}
	}
	if r.inflight == 0 {
		r.idle = make(chan struct{})
	}
	r.inflight++
	q.Enqueue(job{
		model:      model,
		action:     action,
		invocation: intent.Invocation,
		args:       intent.Payload.Arguments,
		store:      intent.Payload.Store,
		body:       body,
	})
	return nil
}

// Idle blocks until no submitted intent is queued or running, including
// intents submitted by running bodies.
func (r *Runner) Idle(ctx context.Context) error {
	r.mu.Lock()
	if r.inflight == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel settles and removes the watcher registered for (actionType,
// invocation) with err. It reports whether such a watcher existed.
func (r *Runner) Cancel(actionType, invocation string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws := r.watches[actionType]
	for i, w := range ws {
		if w.invocation != invocation {
			continue
		}
		w.f.Reject(err)
		ws = append(ws[:i], ws[i+1:]...)
		if len(ws) == 0 {
			delete(r.watches, actionType)
		} else {
			r.watches[actionType] = ws
		}
		return true
	}
	return false
}

// Release rejects and removes the watcher for (actionType, invocation) with
// err unless its intent was submitted. It reports whether a watcher was
// released.
func (r *Runner) Release(actionType, invocation string, err error) bool {
	r.mu.Lock()
	submitted := false
	for _, w := range r.watches[actionType] {
		if w.invocation == invocation {
			submitted = w.submitted
			break
		}
	}
	r.mu.Unlock()
	if submitted {
		return false
	}
	return r.Cancel(actionType, invocation, err)
}

// Drive runs gen for model synchronously through the runner's host.
func (r *Runner) Drive(ctx context.Context, model string, gen Generator) (any, error) {
	return Drive(ctx, r.host, model, gen)
}

// Pending returns the number of unsettled watchers for actionType.
func (r *Runner) Pending(actionType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches[actionType])
}

// Stop closes every worker queue, cancels running bodies, waits for the
// workers to exit and rejects watchers that were never settled.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, q := range r.queues {
		q.Close()
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for typ, ws := range r.watches {
		for _, w := range ws {
			w.f.Reject(ErrStopped)
		}
		delete(r.watches, typ)
	}
}

func (r *Runner) work(model string, q *jobQueue) {
	defer r.wg.Done()
	for {
		if j, ok := q.TryDequeue(); ok {
			r.run(j)
			continue
		}
		if _, open := <-q.Wait(); !open {
			for {
				j, ok := q.TryDequeue()
				if !ok {
					r.logger.Debug("effect worker stopped", "model", model)
					return
				}
				r.run(j)
			}
		}
	}
}

func (r *Runner) run(j job) {
	defer r.done()
	typ := actiontype.Encode(j.model, j.action)
	r.logger.Debug("effect start", "type", typ, "invocation", j.invocation)

	value, err := r.drive(j)
	if err != nil {
		r.logger.Warn("effect failed", "type", typ, "invocation", j.invocation, "error", err)
	}

	w, ok := r.takeWatch(typ, j.invocation)
	if !ok {
		r.logger.Debug("effect completed unobserved", "type", typ, "invocation", j.invocation)
		return
	}
	w.f.Settle(value, err)
}

func (r *Runner) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if r.inflight == 0 {
		close(r.idle)
	}
}

func (r *Runner) drive(j job) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("effect %s.%s: %w", j.model, j.action, future.Recovered(rec))
		}
	}()
	gen := j.body(j.args, j.store)
	if gen == nil {
		return nil, fmt.Errorf("effect %s.%s: body returned no generator", j.model, j.action)
	}
	return Drive(r.ctx, r.host, j.model, gen)
}

func (r *Runner) takeWatch(typ, invocation string) (watch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws := r.watches[typ]
	idx := -1
	for i, w := range ws {
		if invocation != "" && w.invocation == invocation {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, w := range ws {
			if w.invocation == "" {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return watch{}, false
	}
	w := ws[idx]
	ws = append(ws[:idx], ws[idx+1:]...)
	if len(ws) == 0 {
		delete(r.watches, typ)
	} else {
		r.watches[typ] = ws
	}
	return w, true
}
