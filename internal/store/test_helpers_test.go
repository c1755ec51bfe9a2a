package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/testutil"
)

// createTestStore opens a store in a temp dir with sequential run IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a run for the given kernel and mode with a fixed
// parameter hash.
func createTestRun(t *testing.T, kernel, mode string, nx int) Run {
	t.Helper()
	k := testutil.Stencil2D(nx, 8, ir.Float32)
	key, err := NewKey(k.Nodes, mode, map[string]any{"openmp": false})
	require.NoError(t, err)
	return Run{
		Kernel:    kernel,
		Key:       key,
		Applied:   []string{"denormals", "blocking"},
		Arguments: []byte(`[{"name":"x_block_size","size":8}]`),
		Output:    []byte(`{"nodes":[]}`),
	}
}
