package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/seed/internal/compiler"
	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
	"github.com/roach88/seed/internal/request"
	"github.com/roach88/seed/internal/store"
)

// SessionOptions configures an engine session shared by call and run.
type SessionOptions struct {
	Models   []string // model files or directories
	Database string   // journal path; empty runs without a journal
	BaseURL  string   // resolves relative request URLs
	Headers  []string // "Key: Value" or "Key=Value", sent with every request
	Timeout  time.Duration
}

// Session is a live engine over a compiled program, optionally journaled.
//
// With a journal, opening a session replays the journal so state carries
// over between invocations of the CLI, and closing it writes a checkpoint.
type Session struct {
	Engine   *engine.Store
	Program  *compiler.Program
	Journal  *store.Store
	Resumed  int // actions replayed from the journal
	timeout  time.Duration
	recorder *store.Recorder
	logger   *slog.Logger
	ctx      context.Context
}

// OpenSession compiles the models and starts an engine.
func OpenSession(ctx context.Context, opts SessionOptions, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Models) == 0 {
		opts.Models = []string{"."}
	}

	loaded, errs := LoadSpecs(opts.Models...)
	if loaded == nil {
		return nil, WrapExitError(ExitCommandError, "failed to load models", errs[0])
	}
	if len(errs) > 0 {
		return nil, WrapExitError(ExitFailure, "failed to compile models", errors.Join(errs...))
	}
	if verrs := compiler.Validate(loaded.Program); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, e := range verrs {
			joined[i] = e
		}
		return nil, WrapExitError(ExitFailure, "invalid models", errors.Join(joined...))
	}

	reqOpts := []request.Option{request.WithLogger(logger)}
	for _, h := range opts.Headers {
		key, value, ok := splitHeader(h)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid header %q: want Key: Value", h))
		}
		reqOpts = append(reqOpts, request.WithHeader(key, value))
	}
	requester, err := request.NewHTTPRequester(opts.BaseURL, reqOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid base url", err)
	}

	s := &Session{
		Program: loaded.Program,
		timeout: opts.Timeout,
		logger:  logger,
		ctx:     ctx,
	}
	engineOpts := []engine.Option{engine.WithLogger(logger), engine.WithRequester(requester)}

	if opts.Database != "" {
		s.Journal, err = store.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.recorder = store.NewRecorder(ctx, s.Journal, logger)
		engineOpts = append(engineOpts, engine.WithInterceptors(s.recorder.Interceptor()))
	}

	s.Engine = engine.New(engineOpts...)
	if err := s.Program.Register(s.Engine); err != nil {
		s.close()
		return nil, WrapExitError(ExitFailure, "failed to register models", err)
	}

	if s.Journal != nil {
		if err := s.resume(ctx); err != nil {
			s.close()
			return nil, WrapExitError(ExitCommandError, "failed to resume journal", err)
		}
	}
	return s, nil
}

// resume replays the journal and warns about calls that never finished.
func (s *Session) resume(ctx context.Context) error {
	entries, err := s.Journal.Actions(ctx, store.Filter{})
	if err != nil {
		return err
	}
	if s.Resumed, err = s.Engine.Replay(entries); err != nil {
		return err
	}
	incomplete, err := s.Journal.FindIncompleteInvocations(ctx)
	if err != nil {
		return err
	}
	for _, inv := range incomplete {
		s.logger.Warn("call never finished", "invocation", inv.Invocation, "last_seq", inv.LastSeq)
	}
	return nil
}

// Call invokes model.action, waits for its result, then waits for any
// intents it dispatched.
func (s *Session) Call(name string, args ...any) (any, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	f, err := s.Engine.Call(name, args...)
	if err != nil {
		return nil, err
	}
	value, err := f.Await(ctx)
	if settleErr := s.Engine.Settle(ctx); settleErr != nil && err == nil {
		err = settleErr
	}
	return value, err
}

// Dispatch sends a raw action and waits for the intents it starts.
func (s *Session) Dispatch(a ir.Action) error {
	if err := s.Engine.Dispatch(a); err != nil {
		return err
	}
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.Engine.Settle(ctx)
}

// Close checkpoints the journal and shuts the engine down.
func (s *Session) Close() error {
	var err error
	if s.recorder != nil {
		if cerr := s.recorder.Checkpoint(s.Engine); cerr != nil {
			err = fmt.Errorf("checkpoint: %w", cerr)
		}
	}
	return errors.Join(err, s.close())
}

func (s *Session) close() error {
	var errs []error
	if s.Engine != nil {
		errs = append(errs, s.Engine.Close())
	}
	if s.Journal != nil {
		errs = append(errs, s.Journal.Close())
	}
	return errors.Join(errs...)
}

func splitHeader(h string) (key, value string, ok bool) {
	sep := strings.IndexAny(h, ":=")
	if sep <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(h[:sep]), strings.TrimSpace(h[sep+1:]), true
}
