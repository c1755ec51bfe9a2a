package rewriter

import (
	"github.com/samber/lo"

	"github.com/roach88/loopsmith/internal/ir"
)

// fission splits the body of large innermost loops into groups of
// statements, one elemental loop per group.
func (r *run) fission(s State) Update {
	nodes, changed := eachTree(s.Nodes, func(node ir.Node, mapper map[ir.Node]ir.Node) {
		for _, tree := range ir.FindIterationTrees([]ir.Node{node}) {
			if len(tree) <= 1 {
				continue
			}
			candidate := tree[len(tree)-1]
			if _, done := mapper[candidate]; done {
				continue
			}
			if split := r.fissionLoop(candidate); split != nil {
				mapper[candidate] = split
			}
		}
	})
	if !changed {
		return Update{}
	}
	return Update{Nodes: nodes, Applied: true}
}

func (r *run) fissionLoop(candidate *ir.Iteration) ir.Node {
	log := r.logger.With("pass", "fission", "loop", candidate.Dim.Name)

	exprs := make([]*ir.Expression, 0, len(candidate.Body))
	for _, n := range candidate.Body {
		if e, ok := n.(*ir.Expression); ok {
			exprs = append(exprs, e)
		}
	}
	if len(exprs) < r.thresholds.FissionMinStatements {
		log.Debug("nest skipped", "reason", "too few statements", "statements", len(exprs))
		return nil
	}
	if len(exprs) != len(candidate.Body) {
		log.Debug("nest skipped", "reason", "body is not all expressions")
		return nil
	}

	arrays := lo.Filter(ir.FindFunctions(candidate.Body), func(f *ir.Function, _ int) bool {
		return f.IsArray()
	})
	if len(arrays) == 0 {
		log.Debug("nest skipped", "reason", "no arrays")
		return nil
	}
	dim, extent := arrays[0].TrailingDimension(), arrays[0].TrailingExtent()
	for _, f := range arrays[1:] {
		if f.TrailingDimension() != dim || f.TrailingExtent() != extent {
			log.Debug("nest skipped", "reason", "mixed trailing dimensions", "function", f.Name)
			return nil
		}
	}

	promoted := promoteScalars(exprs, dim, extent)
	groups := lo.Chunk(promoted, r.thresholds.FissionGroupSize)
	loops := make([]ir.Node, len(groups))
	for i, g := range groups {
		body := lo.Map(g, func(e *ir.Expression, _ int) ir.Node { return e })
		loops[i] = candidate.WithBody(body).WithProperties(candidate.Properties|ir.Elemental, candidate.Tag)
	}
	log.Debug("loop split", "statements", len(exprs), "groups", len(groups))
	return ir.NewList(loops...)
}

// promoteScalars turns scalar temporaries written by exprs into on-stack
// arrays over dim so each statement group can run as its own loop.
func promoteScalars(exprs []*ir.Expression, dim *ir.Dimension, extent int) []*ir.Expression {
	promoted := map[*ir.Function]*ir.Function{}
	for _, e := range exprs {
		f := e.Output()
		if !f.IsScalar() || promoted[f] != nil {
			continue
		}
		promoted[f] = &ir.Function{
			Name:       f.Name,
			Dimensions: []*ir.Dimension{dim},
			Shape:      []int{extent},
			DType:      f.DType,
			OnStack:    true,
		}
	}
	if len(promoted) == 0 {
		return exprs
	}

	remap := func(a *ir.Access) *ir.Access {
		if p, ok := promoted[a.Func]; ok {
			return &ir.Access{Func: p, Indices: []ir.Index{{Dim: dim}}}
		}
		return a
	}
	return lo.Map(exprs, func(e *ir.Expression, _ int) *ir.Expression {
		return &ir.Expression{
			LHS:   remap(e.LHS),
			RHS:   ir.MapAccesses(e.RHS, remap),
			DType: e.DType,
		}
	})
}
