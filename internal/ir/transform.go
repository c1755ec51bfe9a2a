package ir

// Transform rebuilds nodes replacing every node found in mapper with its
// value. A nil value removes the node. Replacements are not revisited, so
// a mapped node's descendants are never substituted. Unchanged subtrees
// are returned as-is and shared subtrees are rebuilt once.
func Transform(nodes []Node, mapper map[Node]Node) []Node {
	if len(mapper) == 0 {
		return nodes
	}
	memo := map[Node]Node{}
	var visit func(n Node) Node
	visit = func(n Node) Node {
		if r, ok := mapper[n]; ok {
			return r
		}
		if r, ok := memo[n]; ok {
			return r
		}
		children := n.Children()
		if len(children) == 0 {
			return n
		}
		next, changed := rebuild(children, visit)
		out := n
		if changed {
			out = n.withChildren(next)
		}
		memo[n] = out
		return out
	}
	next, changed := rebuild(nodes, visit)
	if !changed {
		return nodes
	}
	return next
}

// Rewrite rebuilds nodes bottom-up. fn receives each original node and its
// rebuilt counterpart (children already rewritten) and returns the
// replacement, or nil to remove it.
func Rewrite(nodes []Node, fn func(orig, cur Node) Node) []Node {
	memo := map[Node]Node{}
	var visit func(n Node) Node
	visit = func(n Node) Node {
		if r, ok := memo[n]; ok {
			return r
		}
		cur := n
		if children := n.Children(); len(children) > 0 {
			if next, changed := rebuild(children, visit); changed {
				cur = n.withChildren(next)
			}
		}
		out := fn(n, cur)
		memo[n] = out
		return out
	}
	next, _ := rebuild(nodes, visit)
	return next
}

func rebuild(nodes []Node, visit func(Node) Node) ([]Node, bool) {
	out := make([]Node, 0, len(nodes))
	changed := false
	for _, n := range nodes {
		r := visit(n)
		if r != n {
			changed = true
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, changed
}

// WithChildren returns a copy of n with its children replaced. Leaves are
// returned unchanged.
func WithChildren(n Node, children []Node) Node {
	return n.withChildren(children)
}
