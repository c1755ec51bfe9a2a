package ir

// Shared builders for the package tests.

func loop(d *Dimension, lo, hi int, p Property, body ...Node) *Iteration {
	return &Iteration{
		Dim:        d,
		Limits:     Limits{Start: Int(lo), Finish: Int(hi), Step: Int(1)},
		Properties: p,
		Body:       body,
	}
}

func array(name string, dims ...*Dimension) *Function {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = d.Size
	}
	return &Function{Name: name, Dimensions: dims, Shape: shape, DType: Float32}
}

func at(f *Function) *Access {
	idx := make([]Index, len(f.Dimensions))
	for i, d := range f.Dimensions {
		idx[i] = Index{Dim: d}
	}
	return &Access{Func: f, Indices: idx}
}

func assign(lhs *Function, rhs Term) *Expression {
	return &Expression{LHS: at(lhs), RHS: rhs, DType: lhs.DType}
}
