package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator generates "prefix-1", "prefix-2", ... ids.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh generator produces byte-identical output.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. If prefix is empty, ids are
// "id-1", "id-2", ...
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
