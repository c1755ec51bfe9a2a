package ir

import (
	"fmt"
	"strings"
)

// Node is an element of the loop tree.
//
// Nodes are immutable once built. Passes produce new nodes and swap them
// in with Transform or Rewrite; a node may be shared by several trees.
type Node interface {
	// Children returns the ordered child nodes, nil for leaves.
	Children() []Node
	withChildren(children []Node) Node
}

// Property classifies how an Iteration may execute.
type Property uint8

// Iteration properties.
const (
	Parallel Property = 1 << iota
	Vectorizable
	Sequential
	Elemental
	Remainder
)

var propertyNames = []struct {
	p    Property
	name string
}{
	{Parallel, "parallel"},
	{Vectorizable, "vectorizable"},
	{Sequential, "sequential"},
	{Elemental, "elemental"},
	{Remainder, "remainder"},
}

// Has reports whether every bit of q is set in p.
func (p Property) Has(q Property) bool {
	return p&q == q
}

// Names lists the set properties in canonical order.
func (p Property) Names() []string {
	var out []string
	for _, e := range propertyNames {
		if p.Has(e.p) {
			out = append(out, e.name)
		}
	}
	return out
}

func (p Property) String() string {
	return strings.Join(p.Names(), ",")
}

// ParseProperty maps a property name to its flag.
func ParseProperty(name string) (Property, error) {
	for _, e := range propertyNames {
		if e.name == name {
			return e.p, nil
		}
	}
	return 0, fmt.Errorf("unknown iteration property %q", name)
}

// Limits are the start, finish (exclusive) and step of an Iteration.
type Limits struct {
	Start, Finish, Step Bound
}

// Offsets shrink the iteration space: the loop runs from
// Start+Lower up to Finish-Upper.
type Offsets struct {
	Lower, Upper int
}

// Iteration is a loop over Dim.
type Iteration struct {
	Dim        *Dimension
	Limits     Limits
	Offsets    Offsets
	Properties Property
	// Tag groups the loops produced for one blocked nest; 0 means untagged.
	Tag     int
	Pragmas []string
	Body    []Node
}

// Children implements Node.
func (it *Iteration) Children() []Node { return it.Body }

func (it *Iteration) withChildren(children []Node) Node { return it.WithBody(children) }

// Lower is the first induction value.
func (it *Iteration) Lower() Bound {
	return Add(it.Limits.Start, Int(it.Offsets.Lower))
}

// Upper is the exclusive upper bound of the induction value.
func (it *Iteration) Upper() Bound {
	return Sub(it.Limits.Finish, Int(it.Offsets.Upper))
}

// Extent returns the trip count for unit-step loops with constant bounds.
func (it *Iteration) Extent() (int, bool) {
	lo, ok1 := Constant(it.Lower())
	hi, ok2 := Constant(it.Upper())
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi - lo, true
}

func (it *Iteration) clone() *Iteration {
	c := *it
	return &c
}

// WithBody returns a copy of it with a new body.
func (it *Iteration) WithBody(body []Node) *Iteration {
	c := it.clone()
	c.Body = body
	return c
}

// WithLimits returns a copy of it with new limits and no offsets.
func (it *Iteration) WithLimits(l Limits) *Iteration {
	c := it.clone()
	c.Limits = l
	c.Offsets = Offsets{}
	return c
}

// WithProperties returns a copy of it with properties and tag replaced.
func (it *Iteration) WithProperties(p Property, tag int) *Iteration {
	c := it.clone()
	c.Properties = p
	c.Tag = tag
	return c
}

// WithPragmas returns a copy of it with pragmas appended.
func (it *Iteration) WithPragmas(pragmas ...string) *Iteration {
	c := it.clone()
	c.Pragmas = append(append([]string(nil), it.Pragmas...), pragmas...)
	return c
}

// IsParallel is shorthand for Properties.Has(Parallel).
func (it *Iteration) IsParallel() bool { return it.Properties.Has(Parallel) }

// IsVectorizable is shorthand for Properties.Has(Vectorizable).
func (it *Iteration) IsVectorizable() bool { return it.Properties.Has(Vectorizable) }

// IsRemainder is shorthand for Properties.Has(Remainder).
func (it *Iteration) IsRemainder() bool { return it.Properties.Has(Remainder) }

// IsElemental is shorthand for Properties.Has(Elemental).
func (it *Iteration) IsElemental() bool { return it.Properties.Has(Elemental) }

// Expression assigns RHS to the element addressed by LHS.
type Expression struct {
	LHS   *Access
	RHS   Term
	DType DType
}

// Children implements Node.
func (*Expression) Children() []Node { return nil }

func (e *Expression) withChildren([]Node) Node { return e }

// Output is the function written by e.
func (e *Expression) Output() *Function { return e.LHS.Func }

// Functions lists the functions e references, output first, without
// duplicates.
func (e *Expression) Functions() []*Function {
	out := []*Function{e.LHS.Func}
	seen := map[*Function]bool{e.LHS.Func: true}
	for _, a := range Accesses(e.RHS) {
		if !seen[a.Func] {
			seen[a.Func] = true
			out = append(out, a.Func)
		}
	}
	return out
}

// List sequences its body with no iteration semantics.
type List struct {
	Body []Node
}

// Children implements Node.
func (l *List) Children() []Node { return l.Body }

func (l *List) withChildren(children []Node) Node { return &List{Body: children} }

// NewList builds a List from nodes.
func NewList(nodes ...Node) *List {
	return &List{Body: nodes}
}

// Block wraps its body between header and footer lines, e.g. a parallel
// region or a store fence.
type Block struct {
	Header []string
	Footer []string
	Body   []Node
}

// Children implements Node.
func (b *Block) Children() []Node { return b.Body }

func (b *Block) withChildren(children []Node) Node {
	c := *b
	c.Body = children
	return &c
}

// Denormals resets the floating-point denormal handling mode.
type Denormals struct {
	Instructions []string
}

// DefaultDenormalInstructions flush denormals to zero on x86.
var DefaultDenormalInstructions = []string{
	"_MM_SET_FLUSH_ZERO_MODE(_MM_FLUSH_ZERO_ON);",
	"_MM_SET_DENORMALS_ZERO_MODE(_MM_DENORMALS_ZERO_ON);",
}

// NewDenormals builds a marker with the default instructions.
func NewDenormals() *Denormals {
	return &Denormals{Instructions: append([]string(nil), DefaultDenormalInstructions...)}
}

// Children implements Node.
func (*Denormals) Children() []Node { return nil }

func (d *Denormals) withChildren([]Node) Node { return d }

// Param is a formal parameter of a Callable. Func is nil for scalar
// symbols such as induction variables and block sizes.
type Param struct {
	Name string
	Func *Function
}

// Callable is an elemental function emitted separately from the kernel.
type Callable struct {
	Name   string
	Params []Param
	Body   []Node
}

// Children implements Node.
func (c *Callable) Children() []Node { return c.Body }

func (c *Callable) withChildren(children []Node) Node {
	n := *c
	n.Body = children
	return &n
}

// Call invokes a Callable by name with positional argument names.
type Call struct {
	Name string
	Args []string
}

// Children implements Node.
func (*Call) Children() []Node { return nil }

func (c *Call) withChildren([]Node) Node { return c }

// Fold holds the bodies of sibling nests merged under one loop header.
// It is opaque to visitors and only lives inside the blocking pass.
type Fold struct {
	Parts [][]Node
}

// Children implements Node.
func (*Fold) Children() []Node { return nil }

func (f *Fold) withChildren([]Node) Node { return f }

// Flatten concatenates the parts.
func (f *Fold) Flatten() []Node {
	var out []Node
	for _, p := range f.Parts {
		out = append(out, p...)
	}
	return out
}
