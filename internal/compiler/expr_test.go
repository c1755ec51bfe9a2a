package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
)

func exprKernel() *Kernel {
	x, y := ir.NewDimension("x", 8), ir.NewDimension("y", 8)
	return &Kernel{
		Dimensions: []*ir.Dimension{x, y},
		Functions: []*ir.Function{
			{Name: "u", Dimensions: []*ir.Dimension{x, y}, Shape: []int{8, 8}, DType: ir.Float32},
			{Name: "v", Dimensions: []*ir.Dimension{x, y}, Shape: []int{8, 8}, DType: ir.Float32},
			{Name: "w", Dimensions: []*ir.Dimension{y}, Shape: []int{8}, DType: ir.Float64},
			{Name: "s", DType: ir.Float32, OnStack: true},
		},
	}
}

func TestParseStatement(t *testing.T) {
	tests := []struct {
		src  string
		want string
		ops  int
	}{
		{"u[x, y] = v[x, y]", "u[x, y] = v[x, y]", 0},
		{"u[x, y] = v[x + 1, y - 2] + 1", "u[x, y] = v[x + 1, y - 2] + 1", 1},
		{"s = -v[x, y] * 2.5e-1", "s = -v[x, y] * 2.5e-1", 2},
		{"w[y] = (s + w[y]) / 3", "w[y] = (s + w[y]) / 3", 2},
		{"w[(y)] = +exp(w[y], s)", "w[y] = exp(w[y], s)", 1},
		{"u[x, y] = v[x + 1 - 1, y]", "u[x, y] = v[x, y]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := parseStatement(tt.src, exprKernel())
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.LHS.String()+" = "+e.RHS.String())
			assert.Equal(t, tt.ops, ir.CountOps(e.RHS))
			assert.Equal(t, e.LHS.Func.DType, e.DType)
		})
	}
}

func TestParseStatementErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"u[x, y]", "not an assignment"},
		{"u[x, y] == v[x, y]", "not an assignment"},
		{"u[x] = 1", "rank 2, indexed with 1"},
		{"u[x, q] = 1", `unknown dimension "q"`},
		{"u[x * 2, y] = 1", "unsupported index operator"},
		{"u[x + y, y] = 1", "integer literal"},
		{"u[x, y] = v[x, y] % 2", "unsupported operator"},
		{"u[x, y] = \"a\"", "unsupported literal"},
		{"u[x, y] = v[x, y].f", "unsupported expression"},
		{"1 = u[x, y]", "expected a function reference"},
		{"u[x, y] = (", "right-hand side"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := parseStatement(tt.src, exprKernel())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
