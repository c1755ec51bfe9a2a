package testutil

import (
	"github.com/roach88/loopsmith/internal/ir"
)

// Loop builds a unit-step loop over [lo, hi).
func Loop(d *ir.Dimension, lo, hi int, p ir.Property, body ...ir.Node) *ir.Iteration {
	return &ir.Iteration{
		Dim:        d,
		Limits:     ir.Limits{Start: ir.Int(lo), Finish: ir.Int(hi), Step: ir.Int(1)},
		Properties: p,
		Body:       body,
	}
}

// Array builds a heap array whose shape is taken from the dimension sizes.
func Array(name string, dtype ir.DType, dims ...*ir.Dimension) *ir.Function {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = d.Size
	}
	return &ir.Function{Name: name, Dimensions: dims, Shape: shape, DType: dtype}
}

// Scalar builds an on-stack scalar temporary.
func Scalar(name string, dtype ir.DType) *ir.Function {
	return &ir.Function{Name: name, DType: dtype, OnStack: true}
}

// At accesses f at its own dimensions, shifted by offsets.
func At(f *ir.Function, offsets ...int) *ir.Access {
	idx := make([]ir.Index, len(f.Dimensions))
	for i, d := range f.Dimensions {
		idx[i] = ir.Index{Dim: d}
		if i < len(offsets) {
			idx[i].Offset = offsets[i]
		}
	}
	return &ir.Access{Func: f, Indices: idx}
}

// Assign builds lhs = rhs with lhs's dtype.
func Assign(lhs *ir.Access, rhs ir.Term) *ir.Expression {
	return &ir.Expression{LHS: lhs, RHS: rhs, DType: lhs.Func.DType}
}

// Add builds l + r.
func Add(l, r ir.Term) ir.Term {
	return &ir.BinOp{Op: "+", L: l, R: r}
}

// Kernel is a fixture: trees plus the symbols they use.
type Kernel struct {
	Nodes      []ir.Node
	Dimensions map[string]*ir.Dimension
	Functions  map[string]*ir.Function
}

// Stencil3D builds a perfect nest over x, y, z, all parallel with z also
// vectorizable, computing u = v + 1. Arrays are float32 and external.
func Stencil3D(nx, ny, nz int) Kernel {
	x, y, z := ir.NewDimension("x", nx), ir.NewDimension("y", ny), ir.NewDimension("z", nz)
	u, v := Array("u", ir.Float32, x, y, z), Array("v", ir.Float32, x, y, z)
	u.External, v.External = true, true
	nest := Loop(x, 0, nx, ir.Parallel,
		Loop(y, 0, ny, ir.Parallel,
			Loop(z, 0, nz, ir.Parallel|ir.Vectorizable,
				Assign(At(u), Add(At(v), ir.Literal("1"))),
			)))
	return Kernel{
		Nodes:      []ir.Node{nest},
		Dimensions: map[string]*ir.Dimension{"x": x, "y": y, "z": z},
		Functions:  map[string]*ir.Function{"u": u, "v": v},
	}
}

// Stencil2D builds a perfect nest over x and y, y vectorizable, computing
// u = v + 1 in dtype. Arrays are external.
func Stencil2D(nx, ny int, dtype ir.DType) Kernel {
	x, y := ir.NewDimension("x", nx), ir.NewDimension("y", ny)
	u, v := Array("u", dtype, x, y), Array("v", dtype, x, y)
	u.External, v.External = true, true
	nest := Loop(x, 0, nx, ir.Parallel,
		Loop(y, 0, ny, ir.Parallel|ir.Vectorizable,
			Assign(At(u), Add(At(v), ir.Literal("1"))),
		))
	return Kernel{
		Nodes:      []ir.Node{nest},
		Dimensions: map[string]*ir.Dimension{"x": x, "y": y},
		Functions:  map[string]*ir.Function{"u": u, "v": v},
	}
}
