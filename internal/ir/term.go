package ir

import (
	"fmt"
	"strings"
)

// Term is a right-hand-side value of an Expression.
type Term interface {
	String() string
	term()
}

// Index addresses one dimension of an Access as dim + offset.
type Index struct {
	Dim    *Dimension
	Offset int
}

func (i Index) String() string {
	switch {
	case i.Offset > 0:
		return fmt.Sprintf("%s + %d", i.Dim.Name, i.Offset)
	case i.Offset < 0:
		return fmt.Sprintf("%s - %d", i.Dim.Name, -i.Offset)
	default:
		return i.Dim.Name
	}
}

// Access reads or writes one element of a Function.
// Scalars have no indices.
type Access struct {
	Func    *Function
	Indices []Index
}

func (*Access) term() {}

func (a *Access) String() string {
	if len(a.Indices) == 0 {
		return a.Func.Name
	}
	parts := make([]string, len(a.Indices))
	for i, idx := range a.Indices {
		parts[i] = idx.String()
	}
	return a.Func.Name + "[" + strings.Join(parts, ", ") + "]"
}

// Resolve computes the concrete element coordinates given induction
// variable values keyed by dimension name.
func (a *Access) Resolve(env map[string]int) ([]int, error) {
	out := make([]int, len(a.Indices))
	for i, idx := range a.Indices {
		v, ok := env[idx.Dim.Name]
		if !ok {
			return nil, fmt.Errorf("%s: unbound dimension %q", a.Func.Name, idx.Dim.Name)
		}
		out[i] = v + idx.Offset
	}
	return out, nil
}

// Literal is a numeric constant kept in source form.
type Literal string

func (Literal) term() {}

func (l Literal) String() string { return string(l) }

// BinOp applies an arithmetic operator (+, -, *, /).
type BinOp struct {
	Op   string
	L, R Term
}

func (*BinOp) term() {}

func (b *BinOp) String() string {
	return fmt.Sprintf("%s %s %s", wrapTerm(b.L), b.Op, wrapTerm(b.R))
}

// Neg negates its operand.
type Neg struct {
	X Term
}

func (*Neg) term() {}

func (n *Neg) String() string { return "-" + wrapTerm(n.X) }

// FuncCall is an intrinsic such as sqrt or exp.
type FuncCall struct {
	Name string
	Args []Term
}

func (*FuncCall) term() {}

func (f *FuncCall) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

func wrapTerm(t Term) string {
	if _, ok := t.(*BinOp); ok {
		return "(" + t.String() + ")"
	}
	return t.String()
}

// Accesses returns every Access in t, left to right.
func Accesses(t Term) []*Access {
	var out []*Access
	var walk func(Term)
	walk = func(t Term) {
		switch v := t.(type) {
		case *Access:
			out = append(out, v)
		case *BinOp:
			walk(v.L)
			walk(v.R)
		case *Neg:
			walk(v.X)
		case *FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}

// MapAccesses rebuilds t with every Access replaced by fn's result.
// Subterms without accesses are shared with the input.
func MapAccesses(t Term, fn func(*Access) *Access) Term {
	switch v := t.(type) {
	case *Access:
		return fn(v)
	case *BinOp:
		l, r := MapAccesses(v.L, fn), MapAccesses(v.R, fn)
		if l == v.L && r == v.R {
			return v
		}
		return &BinOp{Op: v.Op, L: l, R: r}
	case *Neg:
		x := MapAccesses(v.X, fn)
		if x == v.X {
			return v
		}
		return &Neg{X: x}
	case *FuncCall:
		args := make([]Term, len(v.Args))
		changed := false
		for i, a := range v.Args {
			args[i] = MapAccesses(a, fn)
			changed = changed || args[i] != a
		}
		if !changed {
			return v
		}
		return &FuncCall{Name: v.Name, Args: args}
	default:
		return t
	}
}

// CountOps counts arithmetic operations and intrinsic calls in t.
func CountOps(t Term) int {
	switch v := t.(type) {
	case *BinOp:
		return 1 + CountOps(v.L) + CountOps(v.R)
	case *Neg:
		return 1 + CountOps(v.X)
	case *FuncCall:
		n := 1
		for _, a := range v.Args {
			n += CountOps(a)
		}
		return n
	default:
		return 0
	}
}
