package rewriter

import (
	"sort"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/target"
)

// ompPlan collects the decisions for one top-level tree.
type ompPlan struct {
	roots    []*ir.Iteration
	collapse map[*ir.Iteration]int
}

// openmp distributes the outer parallel loops of each nest across threads.
// Every run of adjacent non-remainder roots is wrapped in place, together
// with the denormal reset, in its own parallel region. Remainder loops are
// decorated but stay outside any region.
func (r *run) openmp(s State) Update {
	plans := make([]*ompPlan, len(s.Nodes))
	regions := false
	for i, node := range s.Nodes {
		p := &ompPlan{collapse: map[*ir.Iteration]int{}}
		for _, tree := range ir.FindIterationTrees([]ir.Node{node}) {
			candidates := ompCandidates(tree)
			if len(candidates) == 0 {
				r.logger.Debug("nest skipped", "pass", "openmp", "reason", "no parallel loops", "tree", treeNames(tree))
				continue
			}
			root := candidates[0]
			if n, seen := p.collapse[root]; !seen {
				p.roots = append(p.roots, root)
				p.collapse[root] = len(candidates)
			} else if len(candidates) < n {
				p.collapse[root] = len(candidates)
			}
			if !root.IsRemainder() {
				regions = true
			}
		}
		plans[i] = p
	}

	var reset []ir.Node
	mapper := map[ir.Node]ir.Node{}
	if regions {
		for _, d := range ir.FindNodes[*ir.Denormals](s.Nodes) {
			reset = append(reset, d)
			mapper[d] = nil
		}
	}
	inRegion := map[ir.Node]bool{}
	changed := false
	for _, p := range plans {
		for _, root := range p.roots {
			decorated := root.WithPragmas(r.ompPragma(p.collapse[root]))
			mapper[root] = decorated
			if !root.IsRemainder() {
				inRegion[decorated] = true
			}
			changed = true
		}
	}
	if !changed {
		return Update{}
	}
	nodes, _ := ompRegions(ir.Transform(s.Nodes, mapper), inRegion, reset)
	return Update{Nodes: nodes, Applied: true}
}

// ompRegions wraps every run of adjacent siblings found in inRegion into a
// parallel region headed by reset. Roots never nest, so the search stops
// at them.
func ompRegions(nodes []ir.Node, inRegion map[ir.Node]bool, reset []ir.Node) ([]ir.Node, bool) {
	out := make([]ir.Node, 0, len(nodes))
	changed := false
	var pending []ir.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, ompRegion(pending, reset))
		pending = nil
		changed = true
	}
	for _, n := range nodes {
		if inRegion[n] {
			pending = append(pending, n)
			continue
		}
		flush()
		if children := n.Children(); len(children) > 0 {
			if next, ok := ompRegions(children, inRegion, reset); ok {
				n = ir.WithChildren(n, next)
				changed = true
			}
		}
		out = append(out, n)
	}
	flush()
	return out, changed
}

// ompRegion builds one parallel region. Stack scalars written by its
// roots become private to each thread.
func ompRegion(roots, reset []ir.Node) *ir.Block {
	private := map[string]bool{}
	for _, f := range ir.FindFunctions(roots) {
		if f.OnStack {
			private[f.Name] = true
		}
	}
	names := make([]string, 0, len(private))
	for n := range private {
		names = append(names, n)
	}
	sort.Strings(names)
	body := make([]ir.Node, 0, len(reset)+len(roots))
	body = append(body, reset...)
	body = append(body, roots...)
	return &ir.Block{
		Header: []string{target.OMPParallelRegion(names)},
		Body:   body,
	}
}

func (r *run) ompPragma(n int) string {
	if n >= 2 && r.platform.PhysicalCores() >= r.thresholds.CollapseCores {
		return target.OMPCollapse(n)
	}
	return target.OMPFor()
}

// ompCandidates returns the consecutive parallel, non-vectorizable loops
// starting at the first parallel level of tree. The run ends after a
// level whose body is not a single loop.
func ompCandidates(tree []*ir.Iteration) []*ir.Iteration {
	start := 0
	for start < len(tree) && !tree[start].IsParallel() {
		start++
	}
	var out []*ir.Iteration
	for _, it := range tree[start:] {
		if !it.IsParallel() || it.IsVectorizable() {
			break
		}
		out = append(out, it)
		if len(it.Body) != 1 {
			break
		}
		if _, ok := it.Body[0].(*ir.Iteration); !ok {
			break
		}
	}
	return out
}
