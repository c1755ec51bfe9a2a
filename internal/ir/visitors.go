package ir

// Walk visits nodes in pre-order. Returning false from fn skips the
// children of the visited node.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if fn(n) {
			Walk(n.Children(), fn)
		}
	}
}

// FindNodes returns every node of type T in pre-order.
func FindNodes[T Node](nodes []Node) []T {
	var out []T
	Walk(nodes, func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// FindIterationTrees returns one entry per maximal iteration nest: the
// chain of iterations from an outermost loop down to a loop that has no
// nested iterations. Lists and blocks between levels are transparent.
// Trees that share a prefix share the same *Iteration values.
func FindIterationTrees(nodes []Node) [][]*Iteration {
	var out [][]*Iteration
	var visit func(nodes []Node, stack []*Iteration)
	visit = func(nodes []Node, stack []*Iteration) {
		for _, n := range nodes {
			switch v := n.(type) {
			case *Iteration:
				path := append(append([]*Iteration(nil), stack...), v)
				if !containsIteration(v.Body) {
					out = append(out, path)
					continue
				}
				visit(v.Body, path)
			case *List, *Block:
				visit(v.Children(), stack)
			}
		}
	}
	visit(nodes, nil)
	return out
}

func containsIteration(nodes []Node) bool {
	found := false
	Walk(nodes, func(n Node) bool {
		switch n.(type) {
		case *Iteration:
			found = true
		case *Callable:
			return false
		}
		return !found
	})
	return found
}

// IsPerfect reports whether every level below root has exactly one child
// iteration and nothing else, down to an innermost body with no loops.
func IsPerfect(root *Iteration) bool {
	it := root
	for {
		if !containsIteration(it.Body) {
			return true
		}
		if len(it.Body) != 1 {
			return false
		}
		next, ok := it.Body[0].(*Iteration)
		if !ok {
			return false
		}
		it = next
	}
}

// PerfectNest returns the chain of iterations from root down to the
// innermost loop, or nil if root is not perfectly nested.
func PerfectNest(root *Iteration) []*Iteration {
	if !IsPerfect(root) {
		return nil
	}
	out := []*Iteration{root}
	for containsIteration(out[len(out)-1].Body) {
		out = append(out, out[len(out)-1].Body[0].(*Iteration))
	}
	return out
}

// Compose nests levels outermost first around body.
func Compose(levels []*Iteration, body []Node) Node {
	if len(levels) == 0 {
		if len(body) == 1 {
			return body[0]
		}
		return NewList(body...)
	}
	inner := body
	for i := len(levels) - 1; i >= 0; i-- {
		inner = []Node{levels[i].WithBody(inner)}
	}
	return inner[0]
}

// FindExpressions returns every Expression in pre-order.
func FindExpressions(nodes []Node) []*Expression {
	return FindNodes[*Expression](nodes)
}

// FindFunctions lists the functions referenced by expressions, in order
// of first appearance.
func FindFunctions(nodes []Node) []*Function {
	var out []*Function
	seen := map[*Function]bool{}
	for _, e := range FindExpressions(nodes) {
		for _, f := range e.Functions() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// FindWrites lists the functions appearing on a left-hand side, in order
// of first appearance.
func FindWrites(nodes []Node) []*Function {
	var out []*Function
	seen := map[*Function]bool{}
	for _, e := range FindExpressions(nodes) {
		if f := e.Output(); !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
