package rewriter

import (
	"github.com/samber/lo"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/target"
)

// simd attaches vector pragmas to every vectorizable loop, in the trees
// and in the elemental functions. Loops whose arrays all fail the
// alignment check get the generic pragma.
func (r *run) simd(s State) Update {
	var extra []string
	if d, ok := r.platform.Decoration(target.IgnoreDeps); ok {
		extra = append(extra, d)
	}

	count := 0
	decorate := func(nodes []ir.Node) []ir.Node {
		return ir.Rewrite(nodes, func(orig, cur ir.Node) ir.Node {
			it, ok := cur.(*ir.Iteration)
			if !ok || !it.IsVectorizable() {
				return cur
			}
			count++
			pragma := target.OMPSimd()
			if aligned := r.alignable(orig); len(aligned) > 0 {
				if bytes, ok := target.SIMDBytes(r.platform.SIMDFlag()); ok {
					pragma = target.OMPSimdAligned(aligned, bytes)
				}
			}
			return it.WithPragmas(append(append([]string{}, extra...), pragma)...)
		})
	}

	nodes := decorate(s.Nodes)
	callables := mapCallables(s.ElementalFunctions, decorate)
	if count == 0 {
		return Update{}
	}
	return Update{Nodes: nodes, ElementalFunctions: callables, Applied: true}
}

// alignable names the arrays referenced under n whose trailing extent is
// a multiple of the vector length for their dtype. Unknown dtypes and
// extents are not alignable.
func (r *run) alignable(n ir.Node) []string {
	arrays := lo.Filter(ir.FindFunctions([]ir.Node{n}), func(f *ir.Function, _ int) bool {
		if !f.IsArray() || f.TrailingExtent() == 0 {
			return false
		}
		items, ok := r.platform.SIMDItems(f.DType)
		return ok && items > 0 && f.TrailingExtent()%items == 0
	})
	return lo.Map(arrays, func(f *ir.Function, _ int) string { return f.Name })
}

// mapCallables rebuilds each callable with fn applied to its body. It
// returns nil when there are no callables.
func mapCallables(callables []*ir.Callable, fn func([]ir.Node) []ir.Node) []*ir.Callable {
	if len(callables) == 0 {
		return nil
	}
	out := make([]*ir.Callable, len(callables))
	for i, c := range callables {
		out[i] = ir.WithChildren(c, fn(c.Body)).(*ir.Callable)
	}
	return out
}
