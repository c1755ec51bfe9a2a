package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	g := NewSequentialIDs()
	assert.Equal(t, "run-0001", g.Generate())
	assert.Equal(t, "run-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "run-0001", g.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	g := NewSequentialIDs()
	const workers, calls = 20, 50

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for range calls {
				id := g.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*calls, "no duplicate IDs")
}

func TestFixedID(t *testing.T) {
	assert.Equal(t, "run-fixed", FixedID("").Generate())
	assert.Equal(t, "abc", FixedID("abc").Generate())
}
