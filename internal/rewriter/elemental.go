package rewriter

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/roach88/loopsmith/internal/ir"
)

// elemental moves the outermost elemental loop of each nest, or failing
// that an arithmetic-heavy innermost loop, into a separate function and
// replaces it with a call.
func (r *run) elemental(s State) Update {
	var created []*ir.Callable
	nodes, changed := eachTree(s.Nodes, func(node ir.Node, mapper map[ir.Node]ir.Node) {
		for _, tree := range ir.FindIterationTrees([]ir.Node{node}) {
			it := elementalTarget(tree, r.thresholds.ElementalMinOps)
			if it == nil {
				continue
			}
			if _, done := mapper[it]; done {
				continue
			}
			callable := r.extract(it)
			created = append(created, callable)
			mapper[it] = &ir.Call{
				Name: callable.Name,
				Args: lo.Map(callable.Params, func(p ir.Param, _ int) string { return p.Name }),
			}
		}
	})
	if !changed {
		return Update{}
	}
	callables := append(append([]*ir.Callable{}, s.ElementalFunctions...), created...)
	return Update{Nodes: nodes, ElementalFunctions: callables, Applied: true}
}

func elementalTarget(tree []*ir.Iteration, minOps int) *ir.Iteration {
	for _, it := range tree {
		if it.IsElemental() {
			return it
		}
	}
	inner := tree[len(tree)-1]
	ops := 0
	for _, e := range ir.FindExpressions(inner.Body) {
		ops += ir.CountOps(e.RHS)
	}
	if ops >= minOps {
		return inner
	}
	return nil
}

// extract builds the callable for it. Parameters are the functions it
// references, in order of appearance, followed by the free symbols of
// its bounds and indices, sorted.
func (r *run) extract(it *ir.Iteration) *ir.Callable {
	name := fmt.Sprintf("f_%d", r.calls)
	r.calls++

	bound := map[string]bool{}
	free := map[string]bool{}
	ir.Walk([]ir.Node{it}, func(n ir.Node) bool {
		if loop, ok := n.(*ir.Iteration); ok {
			bound[loop.Dim.Name] = true
		}
		return true
	})
	ir.Walk([]ir.Node{it}, func(n ir.Node) bool {
		switch v := n.(type) {
		case *ir.Iteration:
			for _, b := range []ir.Bound{v.Lower(), v.Upper(), v.Limits.Step} {
				for _, sym := range b.Symbols() {
					free[sym] = true
				}
			}
		case *ir.Expression:
			for _, a := range append([]*ir.Access{v.LHS}, ir.Accesses(v.RHS)...) {
				for _, idx := range a.Indices {
					free[idx.Dim.Name] = true
				}
			}
		}
		return true
	})

	funcs := ir.FindFunctions([]ir.Node{it})
	params := lo.Map(funcs, func(f *ir.Function, _ int) ir.Param { return ir.Param{Name: f.Name, Func: f} })
	var symbols []string
	for sym := range free {
		if !bound[sym] {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		params = append(params, ir.Param{Name: sym})
	}

	r.logger.Debug("elemental function created", "pass", "elemental", "name", name, "loop", it.Dim.Name, "params", len(params))
	return &ir.Callable{Name: name, Params: params, Body: []ir.Node{it}}
}
