package rewriter

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/target"
	"github.com/roach88/loopsmith/internal/testutil"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captured() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})), &buf
}

func platform(t *testing.T, flag string, cores int, compiler string) *target.Static {
	t.Helper()
	p, err := target.NewStatic(flag, cores, compiler)
	require.NoError(t, err)
	return p
}

func avx2(t *testing.T) *target.Static {
	return platform(t, "avx2", 8, "gnu")
}

func newRewriter(t *testing.T, mode Mode, p target.Platform, opts ...Option) *Rewriter {
	t.Helper()
	rw, err := New(mode, p, append([]Option{WithLogger(quiet())}, opts...)...)
	require.NoError(t, err)
	return rw
}

// requireExactCover checks that nodes execute every point of want exactly
// once and nothing else.
func requireExactCover(t *testing.T, want map[string]int, s State) {
	t.Helper()
	got, err := testutil.Visits(s.Nodes, s.ElementalFunctions, ir.Point(Env(s.Arguments)))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func visits(t *testing.T, nodes []ir.Node) map[string]int {
	t.Helper()
	v, err := testutil.Visits(nodes, nil, nil)
	require.NoError(t, err)
	return v
}

func iterations(nodes []ir.Node) []*ir.Iteration {
	return ir.FindNodes[*ir.Iteration](nodes)
}

// execute runs nodes over a memory where every function in init is filled
// with values derived from its coordinates.
func execute(t *testing.T, s State, init ...*ir.Function) testutil.Memory {
	t.Helper()
	mem := testutil.Memory{}
	for _, f := range init {
		mem.Fill(f, func(c []int) float64 {
			v := 0.0
			for _, ci := range c {
				v = v*10 + float64(ci)
			}
			return v
		})
	}
	require.NoError(t, testutil.Execute(s.Nodes, s.ElementalFunctions, ir.Point(Env(s.Arguments)), mem))
	return mem
}

// dependentNests builds two nests over x and y: the first increments u,
// the second reads u one step ahead in x. Both stop one short of the end
// of x. With sameHeaders false the second nest runs over all of y, so the
// two cannot fold.
func dependentNests(sameHeaders bool) (first, second *ir.Iteration, u, v *ir.Function) {
	x, y := ir.NewDimension("x", 8), ir.NewDimension("y", 8)
	u, v = testutil.Array("u", ir.Float32, x, y), testutil.Array("v", ir.Float32, x, y)
	first = testutil.Loop(x, 0, 8, ir.Parallel,
		testutil.Loop(y, 0, 8, ir.Parallel,
			testutil.Assign(testutil.At(u), testutil.Add(testutil.At(u), ir.Literal("1")))))
	first.Offsets = ir.Offsets{Upper: 1}
	yhi := 8
	if !sameHeaders {
		yhi = 7
	}
	second = testutil.Loop(x, 0, 8, ir.Parallel,
		testutil.Loop(y, 0, yhi, ir.Parallel,
			testutil.Assign(testutil.At(v), testutil.At(u, 1))))
	second.Offsets = ir.Offsets{Upper: 1}
	return first, second, u, v
}
