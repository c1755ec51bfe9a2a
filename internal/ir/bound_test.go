package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundFolding(t *testing.T) {
	assert.Equal(t, Int(7), Add(Int(3), Int(4)))
	assert.Equal(t, Int(4), Mod(Int(20), Int(8)))
	assert.Equal(t, Sym("x"), Add(Sym("x"), Int(0)))
	assert.Equal(t, Sym("x"), Sub(Sym("x"), Int(0)))
	assert.Equal(t, Sym("x"), Mul(Int(1), Sym("x")))
	assert.Equal(t, Int(0), Mod(Sym("x"), Int(1)))
}

func TestBoundSymbolic(t *testing.T) {
	b := Sub(Int(20), Mod(Sub(Int(20), Int(0)), Sym("x_block_size")))
	assert.Equal(t, "20 - (20 % x_block_size)", b.String())
	assert.Equal(t, []string{"x_block_size"}, b.Symbols())

	v, err := b.Eval(map[string]int{"x_block_size": 8})
	require.NoError(t, err)
	assert.Equal(t, 16, v)

	_, ok := Constant(b)
	assert.False(t, ok)
}

func TestBoundEvalErrors(t *testing.T) {
	_, err := Sym("n").Eval(nil)
	assert.Error(t, err)

	_, err = (&BinaryBound{Op: OpMod, L: Int(3), R: Sym("z")}).Eval(map[string]int{"z": 0})
	assert.Error(t, err)
}

func TestSameBound(t *testing.T) {
	assert.True(t, SameBound(Add(Sym("a"), Int(1)), Add(Sym("a"), Int(1))))
	assert.False(t, SameBound(Sym("a"), Sym("b")))
	assert.True(t, SameBound(nil, nil))
	assert.False(t, SameBound(Int(0), nil))
}
