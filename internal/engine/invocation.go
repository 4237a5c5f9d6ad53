package engine

import "github.com/google/uuid"

// InvocationGenerator produces the id shared by every dispatch of one
// action call: start and success, or an effect intent and its puts.
type InvocationGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default generator. UUIDv7 ids begin with a
// millisecond timestamp, so a journal's invocations sort by call time.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics only when the system's
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GeneratorFunc adapts a function to InvocationGenerator. It must be safe
// for concurrent calls.
type GeneratorFunc func() string

// Generate calls f.
func (f GeneratorFunc) Generate() string { return f() }
