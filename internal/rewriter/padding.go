package rewriter

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/roach88/loopsmith/internal/ir"
)

// padding redirects written arrays to shadow buffers whose trailing
// extent is rounded up to a multiple of the vector length. Caller-visible
// arrays are copied into their shadow before the kernel and back after.
func (r *run) padding(s State) Update {
	shadows := map[*ir.Function]*ir.Function{}
	var order []*ir.Function
	taken := symbolNames(s)
	for _, node := range s.Nodes {
		for _, f := range r.paddingCandidates(node) {
			if shadows[f] != nil {
				continue
			}
			shadows[f] = r.shadow(f, node, shadowName(f.Name, taken))
			order = append(order, f)
		}
	}
	if len(order) == 0 {
		return Update{}
	}

	processed := substitute(s.Nodes, shadows)
	callables := lo.Map(s.ElementalFunctions, func(c *ir.Callable, _ int) *ir.Callable {
		return substituteCallable(c, shadows)
	})

	var init, copyback []ir.Node
	for _, f := range order {
		if !f.External {
			continue
		}
		p := shadows[f]
		init = append(init, copyNest(p, f, f))
		copyback = append(copyback, copyNest(f, p, f))
		r.logger.Debug("array padded", "pass", "padding", "array", f.Name, "shape", p.Shape)
	}

	nodes := make([]ir.Node, 0, len(init)+len(processed)+len(copyback))
	nodes = append(nodes, init...)
	nodes = append(nodes, processed...)
	nodes = append(nodes, copyback...)
	out := Update{Nodes: nodes, Applied: true}
	if len(callables) > 0 {
		out.ElementalFunctions = callables
	}
	return out
}

// paddingCandidates returns the arrays written in node whose trailing
// extent equals that of the highest-rank written array. All writes to
// the candidates must share a dtype.
func (r *run) paddingCandidates(node ir.Node) []*ir.Function {
	writes := lo.Filter(ir.FindWrites([]ir.Node{node}), func(f *ir.Function, _ int) bool {
		return f.IsArray()
	})
	if len(writes) == 0 {
		return nil
	}
	widest := lo.MaxBy(writes, func(a, b *ir.Function) bool { return a.Rank() > b.Rank() })
	extent := widest.TrailingExtent()
	if extent == 0 {
		r.logger.Debug("tree skipped", "pass", "padding", "reason", "unknown trailing extent", "array", widest.Name)
		return nil
	}
	candidates := lo.Filter(writes, func(f *ir.Function, _ int) bool {
		return f.TrailingExtent() == extent
	})

	exprs := lo.Filter(ir.FindExpressions([]ir.Node{node}), func(e *ir.Expression, _ int) bool {
		return lo.Contains(candidates, e.Output())
	})
	dtypes := lo.Uniq(lo.Map(exprs, func(e *ir.Expression, _ int) ir.DType { return e.DType }))
	if len(dtypes) != 1 {
		r.logger.Debug("tree skipped", "pass", "padding", "reason", "mixed dtypes", "dtypes", dtypes)
		return nil
	}
	return candidates
}

// symbolNames lists every name the kernel and its elemental functions
// already use.
func symbolNames(s State) map[string]bool {
	taken := map[string]bool{}
	for _, f := range ir.FindFunctions(s.Nodes) {
		taken[f.Name] = true
	}
	for _, c := range s.ElementalFunctions {
		taken[c.Name] = true
		for _, p := range c.Params {
			taken[p.Name] = true
		}
		for _, f := range ir.FindFunctions(c.Body) {
			taken[f.Name] = true
		}
	}
	for _, c := range ir.FindNodes[*ir.Call](s.Nodes) {
		taken[c.Name] = true
		for _, a := range c.Args {
			taken[a] = true
		}
	}
	return taken
}

// shadowName returns "p"+name, numbered when that is taken, and reserves
// the result.
func shadowName(name string, taken map[string]bool) string {
	out := "p" + name
	for i := 1; taken[out]; i++ {
		out = fmt.Sprintf("p%s%d", name, i)
	}
	taken[out] = true
	return out
}

// shadow builds the padded buffer for f.
func (r *run) shadow(f *ir.Function, node ir.Node, name string) *ir.Function {
	dtype := f.DType
	for _, e := range ir.FindExpressions([]ir.Node{node}) {
		if e.Output() == f {
			dtype = e.DType
			break
		}
	}
	items := r.padItems(dtype)
	shape := append([]int{}, f.Shape...)
	shape[len(shape)-1] = roundUp(shape[len(shape)-1], items)
	return &ir.Function{
		Name:       name,
		Dimensions: f.Dimensions,
		Shape:      shape,
		DType:      f.DType,
		OnStack:    f.OnStack,
	}
}

// padItems is the vector length used to pad dtype, falling back to the
// widest register when the platform cannot say.
func (r *run) padItems(dtype ir.DType) int {
	if n, ok := r.platform.SIMDItems(dtype); ok && n > 0 {
		return n
	}
	if size, ok := dtype.ItemSize(); ok {
		return fallbackPadBytes / size
	}
	return fallbackPadItems
}

func roundUp(n, m int) int {
	if m <= 0 {
		return n
	}
	return (n + m - 1) / m * m
}

// substitute rewrites every access to a key of shadows, and every call
// argument naming one, to the shadow.
func substitute(nodes []ir.Node, shadows map[*ir.Function]*ir.Function) []ir.Node {
	byName := map[string]string{}
	for f, p := range shadows {
		byName[f.Name] = p.Name
	}
	remap := func(a *ir.Access) *ir.Access {
		if p, ok := shadows[a.Func]; ok {
			return &ir.Access{Func: p, Indices: a.Indices}
		}
		return a
	}
	return ir.Rewrite(nodes, func(_, cur ir.Node) ir.Node {
		switch v := cur.(type) {
		case *ir.Expression:
			lhs, rhs := remap(v.LHS), ir.MapAccesses(v.RHS, remap)
			if lhs == v.LHS && rhs == v.RHS {
				return v
			}
			return &ir.Expression{LHS: lhs, RHS: rhs, DType: v.DType}
		case *ir.Call:
			renamed := lo.SomeBy(v.Args, func(a string) bool {
				_, ok := byName[a]
				return ok
			})
			if !renamed {
				return v
			}
			args := lo.Map(v.Args, func(a string, _ int) string {
				if p, ok := byName[a]; ok {
					return p
				}
				return a
			})
			return &ir.Call{Name: v.Name, Args: args}
		}
		return cur
	})
}

func substituteCallable(c *ir.Callable, shadows map[*ir.Function]*ir.Function) *ir.Callable {
	params := lo.Map(c.Params, func(p ir.Param, _ int) ir.Param {
		if s, ok := shadows[p.Func]; ok {
			return ir.Param{Name: s.Name, Func: s}
		}
		return p
	})
	return &ir.Callable{Name: c.Name, Params: params, Body: substitute(c.Body, shadows)}
}

// copyNest builds a parallel loop nest assigning src to dst element-wise
// over the shape of orig.
func copyNest(dst, src, orig *ir.Function) ir.Node {
	levels := make([]*ir.Iteration, len(orig.Dimensions))
	indices := make([]ir.Index, len(orig.Dimensions))
	for i, d := range orig.Dimensions {
		var finish ir.Bound = ir.Sym(d.SymbolicSize())
		if i < len(orig.Shape) && orig.Shape[i] > 0 {
			finish = ir.Int(orig.Shape[i])
		}
		props := ir.Parallel
		if i == len(orig.Dimensions)-1 {
			props |= ir.Vectorizable
		}
		levels[i] = &ir.Iteration{
			Dim:        d,
			Limits:     ir.Limits{Start: ir.Int(0), Finish: finish, Step: ir.Int(1)},
			Properties: props,
		}
		indices[i] = ir.Index{Dim: d}
	}
	e := &ir.Expression{
		LHS:   &ir.Access{Func: dst, Indices: indices},
		RHS:   &ir.Access{Func: src, Indices: indices},
		DType: dst.DType,
	}
	return ir.Compose(levels, []ir.Node{e})
}
