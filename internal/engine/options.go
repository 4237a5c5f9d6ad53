package engine

import (
	"log/slog"

	"github.com/roach88/seed/internal/pipeline"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequester sets the request layer used for request-descriptor execs.
func WithRequester(r Requester) Option {
	return func(s *Store) {
		s.requester = r
	}
}

// WithInvocationGenerator sets the invocation id source.
// Default: UUIDv7Generator.
func WithInvocationGenerator(g InvocationGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClock sets the logical clock, e.g. one resumed after replay.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithInterceptors registers interceptors at construction time.
func WithInterceptors(interceptors ...pipeline.Interceptor) Option {
	return func(s *Store) {
		s.initial = append(s.initial, interceptors...)
	}
}
