package rewriter

import (
	"slices"

	"github.com/roach88/loopsmith/internal/ir"
)

// foldBlockable merges runs of adjacent sibling nests that share their
// outer loop headers into a single nest, so blocking spans all of them.
// The shared levels must be parallel (and not vectorizable when
// excludeInnermost is set) and at least two levels deep. The returned map
// sends each synthetic root to the siblings it replaced.
func foldBlockable(node ir.Node, excludeInnermost bool) (ir.Node, map[ir.Node][]ir.Node) {
	folds := map[ir.Node][]ir.Node{}
	out := ir.Rewrite([]ir.Node{node}, func(_, cur ir.Node) ir.Node {
		children := cur.Children()
		if len(children) < 2 {
			return cur
		}
		next, changed := foldSiblings(children, excludeInnermost, folds)
		if !changed {
			return cur
		}
		return ir.WithChildren(cur, next)
	})
	if len(folds) == 0 || len(out) != 1 {
		return node, nil
	}
	return out[0], folds
}

func foldSiblings(nodes []ir.Node, excludeInnermost bool, folds map[ir.Node][]ir.Node) ([]ir.Node, bool) {
	var out []ir.Node
	changed := false
	for i := 0; i < len(nodes); {
		j, depth := i+1, 0
		if first, ok := nodes[i].(*ir.Iteration); ok {
			for ; j < len(nodes); j++ {
				d := foldDepth(first, nodes[j], excludeInnermost)
				if d < 2 {
					break
				}
				if depth == 0 || d < depth {
					depth = d
				}
			}
		}
		if j-i < 2 {
			out = append(out, nodes[i])
			i++
			continue
		}
		run := nodes[i:j]
		root := fold(run, depth)
		folds[root] = slices.Clone(run)
		out = append(out, root)
		changed = true
		i = j
	}
	return out, changed
}

// foldDepth counts the leading levels that a and b share, or 0 if either
// is not a perfect nest.
func foldDepth(a *ir.Iteration, b ir.Node, excludeInnermost bool) int {
	bi, ok := b.(*ir.Iteration)
	if !ok {
		return 0
	}
	na, nb := ir.PerfectNest(a), ir.PerfectNest(bi)
	if na == nil || nb == nil || len(na) != len(nb) || holdsFold(na) || holdsFold(nb) {
		return 0
	}
	depth := 0
	for k := range na {
		x, y := na[k], nb[k]
		if !x.IsParallel() || (excludeInnermost && x.IsVectorizable()) {
			break
		}
		if x.Dim != y.Dim || x.Properties != y.Properties || x.Offsets != y.Offsets ||
			!ir.SameBound(x.Limits.Start, y.Limits.Start) ||
			!ir.SameBound(x.Limits.Finish, y.Limits.Finish) ||
			!ir.SameBound(x.Limits.Step, y.Limits.Step) {
			break
		}
		depth++
	}
	return depth
}

func holdsFold(nest []*ir.Iteration) bool {
	return slices.ContainsFunc(nest[len(nest)-1].Body, func(n ir.Node) bool {
		_, ok := n.(*ir.Fold)
		return ok
	})
}

// fold builds the synthetic nest: the first sibling's outer depth levels
// around a Fold holding every sibling's body at that depth.
func fold(run []ir.Node, depth int) ir.Node {
	levels := ir.PerfectNest(run[0].(*ir.Iteration))[:depth]
	parts := make([][]ir.Node, len(run))
	for i, n := range run {
		parts[i] = ir.PerfectNest(n.(*ir.Iteration))[depth-1].Body
	}
	return ir.Compose(levels, []ir.Node{&ir.Fold{Parts: parts}})
}

// unfold sends synthetic roots that were not blocked back to their
// original siblings. Blocked roots already hold one intra-block nest per
// folded part (see composeParts).
func unfold(nodes []ir.Node, folds map[ir.Node][]ir.Node) []ir.Node {
	if len(folds) == 0 {
		return nodes
	}
	return ir.Rewrite(nodes, func(orig, cur ir.Node) ir.Node {
		if originals, ok := folds[orig]; ok {
			return ir.NewList(originals...)
		}
		return cur
	})
}
