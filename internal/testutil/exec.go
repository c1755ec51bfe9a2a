package testutil

import (
	"fmt"
	"strconv"

	"github.com/roach88/loopsmith/internal/ir"
)

// Memory holds array contents keyed by function name, then coordinates.
type Memory map[string]map[string]float64

// Key formats coordinates as a Memory key.
func Key(coords ...int) string {
	return fmt.Sprint(coords)
}

// Fill stores every element of f (over its static shape) as gen(coords).
func (m Memory) Fill(f *ir.Function, gen func(coords []int) float64) {
	if m[f.Name] == nil {
		m[f.Name] = map[string]float64{}
	}
	eachCoord(f.Shape, func(c []int) {
		m[f.Name][Key(c...)] = gen(c)
	})
}

// Snapshot copies the contents of one function.
func (m Memory) Snapshot(name string) map[string]float64 {
	out := make(map[string]float64, len(m[name]))
	for k, v := range m[name] {
		out[k] = v
	}
	return out
}

func eachCoord(shape []int, fn func([]int)) {
	c := make([]int, len(shape))
	var rec func(d int)
	rec = func(d int) {
		if d == len(shape) {
			fn(append([]int(nil), c...))
			return
		}
		for i := 0; i < shape[d]; i++ {
			c[d] = i
			rec(d + 1)
		}
	}
	rec(0)
}

// Execute interprets nodes over mem in program order. It supports
// accesses, literals, negation and the four arithmetic operators, which
// is enough to check data movement produced by the rewriter.
func Execute(nodes []ir.Node, callables []*ir.Callable, env ir.Point, mem Memory) error {
	return ir.Enumerate(nodes, callables, env, func(e *ir.Expression, p ir.Point) error {
		v, err := eval(e.RHS, p, mem)
		if err != nil {
			return err
		}
		coords, err := e.LHS.Resolve(p)
		if err != nil {
			return err
		}
		name := e.LHS.Func.Name
		if mem[name] == nil {
			mem[name] = map[string]float64{}
		}
		mem[name][Key(coords...)] = v
		return nil
	})
}

func eval(t ir.Term, p ir.Point, mem Memory) (float64, error) {
	switch v := t.(type) {
	case ir.Literal:
		return strconv.ParseFloat(string(v), 64)
	case *ir.Access:
		coords, err := v.Resolve(p)
		if err != nil {
			return 0, err
		}
		val, ok := mem[v.Func.Name][Key(coords...)]
		if !ok {
			return 0, fmt.Errorf("read of uninitialized %s%v", v.Func.Name, coords)
		}
		return val, nil
	case *ir.Neg:
		x, err := eval(v.X, p, mem)
		return -x, err
	case *ir.BinOp:
		l, err := eval(v.L, p, mem)
		if err != nil {
			return 0, err
		}
		r, err := eval(v.R, p, mem)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			return l / r, nil
		}
		return 0, fmt.Errorf("unsupported operator %q", v.Op)
	default:
		return 0, fmt.Errorf("unsupported term %T", t)
	}
}

// Visits counts how many times each (written function, point) pair is
// executed.
func Visits(nodes []ir.Node, callables []*ir.Callable, env ir.Point) (map[string]int, error) {
	out := map[string]int{}
	err := ir.Enumerate(nodes, callables, env, func(e *ir.Expression, p ir.Point) error {
		coords, err := e.LHS.Resolve(p)
		if err != nil {
			return err
		}
		out[e.LHS.Func.Name+Key(coords...)]++
		return nil
	})
	return out, err
}
