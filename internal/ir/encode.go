package ir

// Document encodes nodes, elemental functions and every referenced
// function as plain maps suitable for MarshalCanonical and encoding/json.
func Document(nodes []Node, callables []*Callable) map[string]any {
	all := append([]Node(nil), nodes...)
	for _, c := range callables {
		all = append(all, c)
	}
	funcs := FindFunctions(all)
	encodedFuncs := make([]any, len(funcs))
	for i, f := range funcs {
		encodedFuncs[i] = EncodeFunction(f)
	}
	encodedCallables := make([]any, len(callables))
	for i, c := range callables {
		encodedCallables[i] = EncodeNode(c)
	}
	return map[string]any{
		"functions":           encodedFuncs,
		"nodes":               EncodeNodes(nodes),
		"elemental_functions": encodedCallables,
	}
}

// EncodeFunction describes f's metadata.
func EncodeFunction(f *Function) map[string]any {
	dims := make([]string, len(f.Dimensions))
	for i, d := range f.Dimensions {
		dims[i] = d.Name
	}
	return map[string]any{
		"name":       f.Name,
		"dimensions": dims,
		"shape":      append([]int{}, f.Shape...),
		"dtype":      string(f.DType),
		"onstack":    f.OnStack,
		"external":   f.External,
	}
}

// EncodeNodes encodes a node sequence.
func EncodeNodes(nodes []Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, EncodeNode(n))
	}
	return out
}

// EncodeNode encodes one node under a "kind" discriminator.
func EncodeNode(n Node) map[string]any {
	switch v := n.(type) {
	case *Iteration:
		return map[string]any{
			"kind":       "iteration",
			"dimension":  v.Dim.Name,
			"start":      v.Limits.Start.String(),
			"finish":     v.Limits.Finish.String(),
			"step":       v.Limits.Step.String(),
			"offsets":    []int{v.Offsets.Lower, v.Offsets.Upper},
			"properties": nonNil(v.Properties.Names()),
			"tag":        v.Tag,
			"pragmas":    nonNil(v.Pragmas),
			"body":       EncodeNodes(v.Body),
		}
	case *Expression:
		return map[string]any{
			"kind":  "expression",
			"lhs":   v.LHS.String(),
			"rhs":   v.RHS.String(),
			"dtype": string(v.DType),
		}
	case *List:
		return map[string]any{"kind": "list", "body": EncodeNodes(v.Body)}
	case *Block:
		return map[string]any{
			"kind":   "block",
			"header": nonNil(v.Header),
			"footer": nonNil(v.Footer),
			"body":   EncodeNodes(v.Body),
		}
	case *Denormals:
		return map[string]any{"kind": "denormals", "instructions": nonNil(v.Instructions)}
	case *Call:
		return map[string]any{"kind": "call", "name": v.Name, "args": nonNil(v.Args)}
	case *Callable:
		params := make([]any, len(v.Params))
		for i, p := range v.Params {
			params[i] = map[string]any{"name": p.Name, "array": p.Func != nil}
		}
		return map[string]any{
			"kind":   "callable",
			"name":   v.Name,
			"params": params,
			"body":   EncodeNodes(v.Body),
		}
	case *Fold:
		parts := make([]any, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = EncodeNodes(p)
		}
		return map[string]any{"kind": "fold", "parts": parts}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
