package ir

import (
	"fmt"
	"strconv"
)

// Bound is an integer index expression used for loop limits.
// Only Int, Sym and BinaryBound implement it.
type Bound interface {
	String() string
	// Eval computes the value given runtime symbol values.
	Eval(env map[string]int) (int, error)
	// Symbols lists the free symbols in left-to-right order.
	Symbols() []string
	bound()
}

// Int is a constant bound.
type Int int

func (Int) bound() {}

func (i Int) String() string { return strconv.Itoa(int(i)) }

// Eval implements Bound.
func (i Int) Eval(map[string]int) (int, error) { return int(i), nil }

// Symbols implements Bound.
func (Int) Symbols() []string { return nil }

// Sym is a runtime symbol such as an induction variable or a block size.
type Sym string

func (Sym) bound() {}

func (s Sym) String() string { return string(s) }

// Eval implements Bound.
func (s Sym) Eval(env map[string]int) (int, error) {
	v, ok := env[string(s)]
	if !ok {
		return 0, fmt.Errorf("unbound symbol %q", string(s))
	}
	return v, nil
}

// Symbols implements Bound.
func (s Sym) Symbols() []string { return []string{string(s)} }

// BoundOp is a binary operator over bounds.
type BoundOp byte

// Bound operators.
const (
	OpAdd BoundOp = '+'
	OpSub BoundOp = '-'
	OpMul BoundOp = '*'
	OpMod BoundOp = '%'
)

// BinaryBound combines two bounds.
type BinaryBound struct {
	Op   BoundOp
	L, R Bound
}

func (*BinaryBound) bound() {}

func (b *BinaryBound) String() string {
	return fmt.Sprintf("%s %c %s", operand(b.L), b.Op, operand(b.R))
}

func operand(b Bound) string {
	if _, ok := b.(*BinaryBound); ok {
		return "(" + b.String() + ")"
	}
	return b.String()
}

// Eval implements Bound.
func (b *BinaryBound) Eval(env map[string]int) (int, error) {
	l, err := b.L.Eval(env)
	if err != nil {
		return 0, err
	}
	r, err := b.R.Eval(env)
	if err != nil {
		return 0, err
	}
	return apply(b.Op, l, r)
}

// Symbols implements Bound.
func (b *BinaryBound) Symbols() []string {
	return append(b.L.Symbols(), b.R.Symbols()...)
}

func apply(op BoundOp, l, r int) (int, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpMod:
		if r == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return l % r, nil
	default:
		return 0, fmt.Errorf("unknown bound operator %q", rune(op))
	}
}

// Add returns a + b, folding constants.
func Add(a, b Bound) Bound {
	if c, ok := Constant(b); ok && c == 0 {
		return a
	}
	if c, ok := Constant(a); ok && c == 0 {
		return b
	}
	return combine(OpAdd, a, b)
}

// Sub returns a - b, folding constants.
func Sub(a, b Bound) Bound {
	if c, ok := Constant(b); ok && c == 0 {
		return a
	}
	return combine(OpSub, a, b)
}

// Mul returns a * b, folding constants.
func Mul(a, b Bound) Bound {
	if c, ok := Constant(b); ok && c == 1 {
		return a
	}
	if c, ok := Constant(a); ok && c == 1 {
		return b
	}
	return combine(OpMul, a, b)
}

// Mod returns a % b, folding constants.
func Mod(a, b Bound) Bound {
	if c, ok := Constant(b); ok && c == 1 {
		return Int(0)
	}
	return combine(OpMod, a, b)
}

func combine(op BoundOp, a, b Bound) Bound {
	ca, aok := Constant(a)
	cb, bok := Constant(b)
	if aok && bok {
		if v, err := apply(op, ca, cb); err == nil {
			return Int(v)
		}
	}
	return &BinaryBound{Op: op, L: a, R: b}
}

// Constant returns the value of b when it contains no symbols.
func Constant(b Bound) (int, bool) {
	if b == nil || len(b.Symbols()) > 0 {
		return 0, false
	}
	v, err := b.Eval(nil)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SameBound reports whether a and b print identically.
func SameBound(a, b Bound) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}
