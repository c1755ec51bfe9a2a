package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformReplacesByIdentity(t *testing.T) {
	x, y := NewDimension("x", 8), NewDimension("y", 8)
	u := array("u", x, y)
	inner := loop(y, 0, 8, Vectorizable, assign(u, Literal("0")))
	root := loop(x, 0, 8, Parallel, inner)
	nodes := []Node{root}

	replacement := inner.WithPragmas("#pragma omp simd")
	out := Transform(nodes, map[Node]Node{inner: replacement})

	require.Len(t, out, 1)
	newRoot := out[0].(*Iteration)
	assert.NotSame(t, root, newRoot)
	assert.Same(t, replacement, newRoot.Body[0])
	assert.Same(t, inner, root.Body[0], "input untouched")
}

func TestTransformRemovesNilAndKeepsUnchanged(t *testing.T) {
	x := NewDimension("x", 8)
	u := array("u", x)
	a := loop(x, 0, 8, Parallel, assign(u, Literal("0")))
	b := NewDenormals()
	nodes := []Node{b, a}

	same := Transform(nodes, map[Node]Node{NewDenormals(): nil})
	assert.Equal(t, nodes, same)

	out := Transform(nodes, map[Node]Node{b: nil})
	assert.Equal(t, []Node{a}, out)
}

func TestTransformSharedSubtreeRebuiltOnce(t *testing.T) {
	x, y := NewDimension("x", 8), NewDimension("y", 8)
	u := array("u", x, y)
	e := assign(u, Literal("0"))
	shared := loop(y, 0, 8, Parallel, e)
	nodes := []Node{NewList(shared), NewList(shared)}

	out := Transform(nodes, map[Node]Node{e: assign(u, Literal("1"))})
	first := out[0].(*List).Body[0]
	second := out[1].(*List).Body[0]
	assert.Same(t, first, second)
}

func TestRewriteBottomUp(t *testing.T) {
	x, y := NewDimension("x", 8), NewDimension("y", 8)
	u := array("u", x, y)
	nodes := []Node{loop(x, 0, 8, Parallel, loop(y, 0, 8, Parallel|Vectorizable, assign(u, Literal("0"))))}

	var order []string
	out := Rewrite(nodes, func(orig, cur Node) Node {
		it, ok := cur.(*Iteration)
		if !ok {
			return cur
		}
		order = append(order, it.Dim.Name)
		return it.WithPragmas("// " + it.Dim.Name)
	})

	assert.Equal(t, []string{"y", "x"}, order)
	outer := out[0].(*Iteration)
	assert.Equal(t, []string{"// x"}, outer.Pragmas)
	assert.Equal(t, []string{"// y"}, outer.Body[0].(*Iteration).Pragmas)
}
