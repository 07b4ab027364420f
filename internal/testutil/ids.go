package testutil

import (
	"fmt"
	"sync"
)

// CountingIDGenerator generates "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same generator produces byte-identical traces.
//
// Thread-safety: safe for concurrent use.
type CountingIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingIDGenerator creates a generator. If prefix is empty it
// defaults to "pending".
func NewCountingIDGenerator(prefix string) *CountingIDGenerator {
	if prefix == "" {
		prefix = "pending"
	}
	return &CountingIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *CountingIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
