package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates run IDs "run-0001", "run-0002", ... for tests.
//
// Unlike the UUIDv7 generator used in production, SequentialIDs can be
// reset so the same scenario produces identical journals.
//
// Thread-safety: All methods are safe for concurrent use.
type SequentialIDs struct {
	mu  sync.Mutex
	seq int
}

// NewSequentialIDs creates a generator whose first ID is "run-0001".
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("run-%04d", g.seq)
}

// Reset restarts the sequence.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// FixedID returns the same ID every time.
//
// Thread-safety: FixedID is stateless and safe for concurrent use.
type FixedID string

// Generate returns the fixed ID, or "run-fixed" when empty.
func (f FixedID) Generate() string {
	if f == "" {
		return "run-fixed"
	}
	return string(f)
}
