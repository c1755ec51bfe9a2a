package ir

import (
	"fmt"
	"maps"
)

// Point binds induction variables and runtime symbols to values.
type Point map[string]int

// Enumerate walks the iteration space of nodes in execution order and
// calls visit once per executed expression instance. env supplies the
// runtime symbols (sizes, block sizes). Calls are resolved against
// callables by name.
func Enumerate(nodes []Node, callables []*Callable, env Point, visit func(*Expression, Point) error) error {
	byName := make(map[string]*Callable, len(callables))
	for _, c := range callables {
		byName[c.Name] = c
	}
	e := &enumerator{callables: byName, visit: visit}
	start := Point{}
	maps.Copy(start, env)
	return e.nodes(nodes, start)
}

type enumerator struct {
	callables map[string]*Callable
	visit     func(*Expression, Point) error
}

func (e *enumerator) nodes(nodes []Node, env Point) error {
	for _, n := range nodes {
		if err := e.node(n, env); err != nil {
			return err
		}
	}
	return nil
}

func (e *enumerator) node(n Node, env Point) error {
	switch v := n.(type) {
	case *Iteration:
		lo, err := v.Lower().Eval(env)
		if err != nil {
			return fmt.Errorf("loop %s: start: %w", v.Dim.Name, err)
		}
		hi, err := v.Upper().Eval(env)
		if err != nil {
			return fmt.Errorf("loop %s: finish: %w", v.Dim.Name, err)
		}
		step, err := v.Limits.Step.Eval(env)
		if err != nil {
			return fmt.Errorf("loop %s: step: %w", v.Dim.Name, err)
		}
		if step <= 0 {
			return fmt.Errorf("loop %s: non-positive step %d", v.Dim.Name, step)
		}
		saved, had := env[v.Dim.Name]
		for i := lo; i < hi; i += step {
			env[v.Dim.Name] = i
			if err := e.nodes(v.Body, env); err != nil {
				return err
			}
		}
		if had {
			env[v.Dim.Name] = saved
		} else {
			delete(env, v.Dim.Name)
		}
		return nil
	case *Expression:
		return e.visit(v, maps.Clone(env))
	case *Fold:
		return e.nodes(v.Flatten(), env)
	case *Call:
		c, ok := e.callables[v.Name]
		if !ok {
			return fmt.Errorf("call to unknown function %q", v.Name)
		}
		return e.nodes(c.Body, env)
	default:
		return e.nodes(n.Children(), env)
	}
}
