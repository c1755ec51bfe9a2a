package rewriter

import (
	"slices"

	"github.com/roach88/loopsmith/internal/ir"
)

// Flag records that a named optimization transformed the trees.
type Flag string

// Optimization flags, one per pass.
const (
	FlagDenormals Flag = "denormals"
	FlagFission   Flag = "fission"
	FlagPadding   Flag = "padding"
	FlagBlocking  Flag = "blocking"
	FlagSIMD      Flag = "simd"
	FlagNTStores  Flag = "ntstores"
	FlagOpenMP    Flag = "openmp"
	FlagElemental Flag = "elemental"
)

// State is the data threaded through a pipeline. A State is never
// modified after it is built; passes return an Update instead.
type State struct {
	// Nodes are the top-level trees.
	Nodes []ir.Node
	// ElementalFunctions are emitted separately and called from Nodes.
	ElementalFunctions []*ir.Callable
	// Arguments are the runtime parameters the transformed code needs.
	Arguments []BlockingArg
	// Applied lists the optimizations that changed the trees, in order.
	Applied []Flag
}

// NewState starts a pipeline from the given trees.
func NewState(nodes []ir.Node) State {
	return State{Nodes: slices.Clone(nodes)}
}

// HasApplied reports whether f was recorded.
func (s State) HasApplied(f Flag) bool {
	return slices.Contains(s.Applied, f)
}

// AppliedNames returns the flags as strings.
func (s State) AppliedNames() []string {
	out := make([]string, len(s.Applied))
	for i, f := range s.Applied {
		out[i] = string(f)
	}
	return out
}

// Update is the partial result of one pass.
type Update struct {
	// Nodes replaces State.Nodes when non-nil. A pass that removes every
	// tree returns an empty, non-nil slice.
	Nodes []ir.Node
	// ElementalFunctions replaces State.ElementalFunctions when non-nil.
	ElementalFunctions []*ir.Callable
	// Arguments are appended to State.Arguments.
	Arguments []BlockingArg
	// Applied records the pass flag.
	Applied bool
}

// merge builds the next State. Fields the update leaves unset carry over.
func (s State) merge(flag Flag, u Update) State {
	next := State{
		Nodes:              s.Nodes,
		ElementalFunctions: s.ElementalFunctions,
		Arguments:          s.Arguments,
		Applied:            s.Applied,
	}
	if u.Nodes != nil {
		next.Nodes = u.Nodes
	}
	if u.ElementalFunctions != nil {
		next.ElementalFunctions = u.ElementalFunctions
	}
	if len(u.Arguments) > 0 {
		next.Arguments = append(slices.Clone(s.Arguments), u.Arguments...)
	}
	if u.Applied && !s.HasApplied(flag) {
		next.Applied = append(slices.Clone(s.Applied), flag)
	}
	return next
}

// Document encodes the state for output and hashing.
func (s State) Document() map[string]any {
	doc := ir.Document(s.Nodes, s.ElementalFunctions)
	args := make([]any, len(s.Arguments))
	for i, a := range s.Arguments {
		args[i] = a.Plain()
	}
	doc["arguments"] = args
	doc["applied"] = append([]string{}, s.AppliedNames()...)
	return doc
}
