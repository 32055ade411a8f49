// Package testutil holds deterministic stand-ins for the nondeterministic
// parts of a table, so scenario runs produce byte-identical traces.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens generates pass tokens "<prefix>-1", "<prefix>-2", ...
//
// Unlike table.FixedGenerator it never runs out, and it can be reset so the
// same scenario can run twice with identical tokens.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialTokens creates a generator. An empty prefix means "pass".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "pass"
	}
	return &SequentialTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *SequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued returns how many tokens have been generated since the last reset.
func (g *SequentialTokens) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering. After Reset the next token ends in "-1".
func (g *SequentialTokens) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
