package rewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/testutil"
)

func TestElementalAfterBlocking(t *testing.T) {
	k := testutil.Stencil3D(20, 20, 4)
	rw := newRewriter(t, ModeBaseline, avx2(t))

	s := rw.Apply(NewState(k.Nodes), PassBlocking, PassElemental)
	require.Equal(t, []Flag{FlagBlocking, FlagElemental}, s.Applied)
	require.Len(t, s.ElementalFunctions, 4)

	f0 := s.ElementalFunctions[0]
	assert.Equal(t, "f_0", f0.Name)
	names := make([]string, len(f0.Params))
	for i, p := range f0.Params {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"u", "v", "x_block", "x_block_size", "y_block", "y_block_size"}, names)
	assert.Same(t, k.Functions["u"], f0.Params[0].Func)
	assert.Nil(t, f0.Params[2].Func)

	calls := ir.FindNodes[*ir.Call](s.Nodes)
	require.Len(t, calls, 4)
	assert.Equal(t, "f_0", calls[0].Name)
	assert.Equal(t, names, calls[0].Args)
	for i, c := range calls {
		assert.Equal(t, s.ElementalFunctions[i].Name, c.Name)
	}

	requireExactCover(t, visits(t, k.Nodes), s)
}

func TestElementalHeuristic(t *testing.T) {
	x, y := ir.NewDimension("x", 4), ir.NewDimension("y", 4)
	u, v := testutil.Array("u", ir.Float32, x, y), testutil.Array("v", ir.Float32, x, y)
	rhs := testutil.Add(testutil.Add(testutil.At(v), ir.Literal("1")), &ir.Neg{X: testutil.At(v, 0, 1)})
	node := testutil.Loop(x, 0, 4, ir.Parallel,
		testutil.Loop(y, 0, 3, ir.Parallel|ir.Vectorizable, testutil.Assign(testutil.At(u), rhs)))

	thresholds := func(ops int) Option {
		th := DefaultThresholds()
		th.ElementalMinOps = ops
		return WithThresholds(th)
	}

	t.Run("below", func(t *testing.T) {
		rw := newRewriter(t, ModeBaseline, avx2(t), thresholds(4))
		s := rw.Apply(NewState([]ir.Node{node}), PassElemental)
		assert.Empty(t, s.Applied)
		assert.Empty(t, s.ElementalFunctions)
	})
	t.Run("at threshold", func(t *testing.T) {
		rw := newRewriter(t, ModeBaseline, avx2(t), thresholds(3))
		s := rw.Apply(NewState([]ir.Node{node}), PassElemental)
		require.Len(t, s.ElementalFunctions, 1)

		f := s.ElementalFunctions[0]
		names := make([]string, len(f.Params))
		for i, p := range f.Params {
			names[i] = p.Name
		}
		assert.Equal(t, []string{"u", "v", "x"}, names)

		outer := s.Nodes[0].(*ir.Iteration)
		assert.Equal(t, &ir.Call{Name: "f_0", Args: names}, outer.Body[0])
		assert.Equal(t, visits(t, []ir.Node{node}), mustVisits(t, s))
	})
}

func TestElementalNamesContinue(t *testing.T) {
	k := testutil.Stencil3D(20, 20, 4)
	existing := []*ir.Callable{{Name: "f_0"}, {Name: "f_1"}}
	rw := newRewriter(t, ModeBaseline, avx2(t))

	blocked := rw.Apply(NewState(k.Nodes), PassBlocking)
	blocked.ElementalFunctions = existing
	s := rw.Apply(blocked, PassElemental)

	require.Len(t, s.ElementalFunctions, 6)
	assert.Same(t, existing[0], s.ElementalFunctions[0])
	assert.Equal(t, "f_2", s.ElementalFunctions[2].Name)
	assert.Equal(t, "f_5", s.ElementalFunctions[5].Name)
}

func TestElementalNothingToExtract(t *testing.T) {
	k := testutil.Stencil3D(4, 4, 4)
	rw := newRewriter(t, ModeBaseline, avx2(t))

	s := rw.Apply(NewState(k.Nodes), PassElemental)
	assert.Empty(t, s.Applied)
	assert.Nil(t, s.ElementalFunctions)
	assert.Same(t, k.Nodes[0], s.Nodes[0])
}

func TestCustomSplitAfterFission(t *testing.T) {
	nest, _ := chain()
	rw := newRewriter(t, ModeCustom, avx2(t),
		WithParams(Params{Passes: ParsePassList("fission,split")}), smallFission())

	s := rw.Run([]ir.Node{nest})
	assert.Equal(t, []Flag{FlagFission, FlagElemental}, s.Applied)
	assert.Len(t, s.ElementalFunctions, 3)
}

func mustVisits(t *testing.T, s State) map[string]int {
	t.Helper()
	got, err := testutil.Visits(s.Nodes, s.ElementalFunctions, ir.Point(Env(s.Arguments)))
	require.NoError(t, err)
	return got
}
