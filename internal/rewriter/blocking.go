package rewriter

import (
	"github.com/roach88/loopsmith/internal/ir"
)

// blocking tiles perfectly nested parallel loops. Each blocked nest is
// replaced by one blocked tree plus one remainder tree per non-empty
// subset of the blocked dimensions, which together cover the original
// iteration space exactly once.
func (r *run) blocking(s State) Update {
	excludeInnermost := !r.params.BlockInner
	start := len(r.blocked)

	processed := make([]ir.Node, 0, len(s.Nodes))
	changed := false
	for _, node := range s.Nodes {
		folded, folds := foldBlockable(node, excludeInnermost)

		mapper := map[ir.Node]ir.Node{}
		for _, tree := range ir.FindIterationTrees([]ir.Node{folded}) {
			iterations := blockable(tree, excludeInnermost)
			if len(iterations) == 0 {
				r.logger.Debug("nest skipped", "pass", "blocking", "reason", "no parallel loops", "tree", treeNames(tree))
				continue
			}
			root := iterations[0]
			if _, done := mapper[root]; done {
				continue
			}
			if !ir.IsPerfect(root) {
				r.logger.Debug("nest skipped", "pass", "blocking", "reason", "not perfectly nested", "root", root.Dim.Name)
				continue
			}
			mapper[root] = r.blockNest(iterations)
		}
		if len(mapper) == 0 {
			processed = append(processed, node)
			continue
		}
		changed = true
		rebuilt := ir.Transform([]ir.Node{folded}, mapper)
		processed = append(processed, unfold(rebuilt, folds)...)
	}

	if !changed {
		return Update{}
	}
	return Update{
		Nodes:     processed,
		Arguments: r.resolveBlockShape(r.blocked[start:]),
		Applied:   true,
	}
}

// blockable selects the first run of consecutive parallel loops in tree.
// With excludeInnermost the run stops at the first vectorizable loop.
func blockable(tree []*ir.Iteration, excludeInnermost bool) []*ir.Iteration {
	var out []*ir.Iteration
	for _, it := range tree {
		ok := it.IsParallel() && !(excludeInnermost && it.IsVectorizable())
		if !ok {
			if len(out) > 0 {
				break
			}
			continue
		}
		out = append(out, it)
	}
	return out
}

// blockDim returns the block dimension derived from d, creating it on
// first use.
func (r *run) blockDim(d *ir.Dimension) *ir.Dimension {
	if bd, ok := r.blockDims[d]; ok {
		return bd
	}
	bd := &ir.Dimension{Name: d.Name + "_block", Parent: d}
	r.blockDims[d] = bd
	r.blocked = append(r.blocked, d)
	return bd
}

// blockNest builds the blocked tree and its remainder trees for a
// perfectly nested run of parallel loops.
func (r *run) blockNest(iterations []*ir.Iteration) ir.Node {
	r.tags++
	tag := r.tags

	k := len(iterations)
	inter := make([]*ir.Iteration, k)
	intra := make([]*ir.Iteration, k)
	remainder := make([]*ir.Iteration, k)
	for i, it := range iterations {
		bd := r.blockDim(it.Dim)
		size := ir.Sym(bd.SymbolicSize())
		lo, hi := it.Lower(), it.Upper()
		finish := ir.Sub(hi, ir.Mod(ir.Sub(hi, lo), size))

		inter[i] = &ir.Iteration{
			Dim:        bd,
			Limits:     ir.Limits{Start: lo, Finish: finish, Step: size},
			Properties: ir.Parallel,
		}
		intra[i] = it.WithBody(nil).
			WithLimits(ir.Limits{Start: ir.Sym(bd.Name), Finish: ir.Add(ir.Sym(bd.Name), size), Step: ir.Int(1)}).
			WithProperties(it.Properties|ir.Elemental, tag)
		remainder[i] = it.WithBody(nil).
			WithLimits(ir.Limits{Start: finish, Finish: hi, Step: ir.Int(1)})
	}
	parts := [][]ir.Node{iterations[k-1].Body}
	if body := iterations[k-1].Body; len(body) == 1 {
		if f, ok := body[0].(*ir.Fold); ok {
			parts = f.Parts
		}
	}

	trees := []ir.Node{composeParts(inter, intra, parts)}
	for _, subset := range subsets(k) {
		in := make([]bool, k)
		for _, i := range subset {
			in[i] = true
		}
		var outer, inner []*ir.Iteration
		for i := range k {
			if !in[i] {
				outer = append(outer, inter[i].WithProperties(inter[i].Properties|ir.Remainder, 0))
			}
		}
		for i := range k {
			handle := intra[i]
			if in[i] {
				handle = remainder[i]
			}
			inner = append(inner, handle.WithProperties(ir.Remainder|ir.Elemental, tag))
		}
		trees = append(trees, composeParts(outer, inner, parts))
	}

	r.logger.Debug("nest blocked",
		"pass", "blocking",
		"dimensions", treeNames(iterations),
		"remainders", len(trees)-1,
	)
	return ir.NewList(trees...)
}

// composeParts nests inner around each part, in order, inside the shared
// outer levels. Folded siblings keep their own inner loops.
func composeParts(outer, inner []*ir.Iteration, parts [][]ir.Node) ir.Node {
	if len(parts) == 1 {
		return ir.Compose(append(append([]*ir.Iteration{}, outer...), inner...), parts[0])
	}
	nests := make([]ir.Node, len(parts))
	for i, part := range parts {
		nests[i] = ir.Compose(inner, part)
	}
	return ir.Compose(outer, nests)
}

// subsets returns the non-empty subsets of {0..k-1} ordered by size, then
// lexicographically.
func subsets(k int) [][]int {
	var out [][]int
	var combine func(start, size int, acc []int)
	combine = func(start, size int, acc []int) {
		if len(acc) == size {
			out = append(out, append([]int(nil), acc...))
			return
		}
		for i := start; i < k; i++ {
			combine(i+1, size, append(acc, i))
		}
	}
	for size := 1; size <= k; size++ {
		combine(0, size, nil)
	}
	return out
}

// resolveBlockShape binds every newly blocked dimension to a concrete
// block size.
func (r *run) resolveBlockShape(parents []*ir.Dimension) []BlockingArg {
	shape := r.params.BlockShape
	if n := len(shape.Sizes); n > 0 && n != len(parents) {
		msg := "blockshape has fewer entries than blocked loops, using heuristic for the rest"
		if n > len(parents) {
			msg = "blockshape has more entries than blocked loops, dropping extra entries"
		}
		r.logger.Warn(msg, "entries", n, "blocked", len(parents))
	}
	if len(shape.ByDim) > 0 {
		known := map[string]bool{}
		for _, p := range parents {
			known[p.Name] = true
		}
		for _, name := range sortedKeys(shape.ByDim) {
			if !known[name] {
				r.logger.Warn("blockshape names a dimension that was not blocked, dropping entry", "dimension", name)
			}
		}
	}

	args := make([]BlockingArg, len(parents))
	for i, p := range parents {
		size := BlockSize{Value: heuristicBlockSize(p.Size), Heuristic: true}
		switch v, ok := shape.ByDim[p.Name]; {
		case ok:
			size = BlockSize{Value: v}
		case shape.All > 0:
			size = BlockSize{Value: shape.All}
		case i < len(shape.Sizes):
			size = BlockSize{Value: shape.Sizes[i]}
		}
		args[i] = BlockingArg{Dim: r.blockDims[p], Parent: p, Size: size}
	}
	return args
}
