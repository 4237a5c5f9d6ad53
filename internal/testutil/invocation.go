package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates numbered invocation ids: "inv-1", "inv-2", ...
//
// Scenarios use it so that every run of a scenario produces byte-identical
// traces. It is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "inv".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "inv"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id. Implements engine.InvocationGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
