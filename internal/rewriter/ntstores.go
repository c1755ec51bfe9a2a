package rewriter

import (
	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/target"
)

// ntstores requests non-cached stores in vectorizable loops and fences
// the outermost parallel loop of each nest. It needs both the pragma and
// the fence from the platform.
func (r *run) ntstores(s State) Update {
	pragma, ok1 := r.platform.Decoration(target.NTStores)
	fence, ok2 := r.platform.Decoration(target.StoreFence)
	if !ok1 || !ok2 {
		r.logger.Debug("pass unavailable", "pass", "ntstores", "pragma", ok1, "fence", ok2)
		return Update{}
	}

	changed := false
	decorate := func(nodes []ir.Node) []ir.Node {
		// Fence first, on the undecorated trees, so the fence wraps the
		// parallel loop rather than a pragma block.
		fenced, wrapped := eachTree(nodes, func(node ir.Node, mapper map[ir.Node]ir.Node) {
			for _, tree := range ir.FindIterationTrees([]ir.Node{node}) {
				for _, it := range tree {
					if it.IsParallel() {
						mapper[it] = &ir.Block{Footer: []string{fence}, Body: []ir.Node{it}}
						break
					}
				}
			}
		})
		changed = changed || wrapped
		return ir.Rewrite(fenced, func(_, cur ir.Node) ir.Node {
			it, ok := cur.(*ir.Iteration)
			if !ok || !it.IsVectorizable() {
				return cur
			}
			changed = true
			return &ir.Block{Header: []string{pragma}, Body: []ir.Node{it}}
		})
	}

	nodes := decorate(s.Nodes)
	callables := mapCallables(s.ElementalFunctions, decorate)
	if !changed {
		return Update{}
	}
	return Update{Nodes: nodes, ElementalFunctions: callables, Applied: true}
}
