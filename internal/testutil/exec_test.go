package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
)

func TestExecuteStencil(t *testing.T) {
	k := Stencil2D(3, 4, ir.Float32)
	mem := Memory{}
	mem.Fill(k.Functions["v"], func(c []int) float64 { return float64(10*c[0] + c[1]) })

	require.NoError(t, Execute(k.Nodes, nil, nil, mem))
	assert.Equal(t, 24.0, mem["u"][Key(2, 3)])
	assert.Len(t, mem["u"], 12)
}

func TestExecuteUninitializedRead(t *testing.T) {
	k := Stencil2D(2, 2, ir.Float32)
	err := Execute(k.Nodes, nil, nil, Memory{})
	assert.ErrorContains(t, err, "uninitialized")
}

func TestVisits(t *testing.T) {
	k := Stencil3D(2, 3, 4)
	visits, err := Visits(k.Nodes, nil, nil)
	require.NoError(t, err)
	assert.Len(t, visits, 24)
	for _, n := range visits {
		assert.Equal(t, 1, n)
	}
}
