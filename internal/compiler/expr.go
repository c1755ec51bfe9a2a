package compiler

import (
	"fmt"
	"go/ast"
	"go/parser"
	gotoken "go/token"
	"strconv"
	"strings"

	"github.com/roach88/loopsmith/internal/ir"
)

// parseStatement compiles "lhs = rhs". Both sides use Go expression
// syntax: arrays are indexed as u[x, y + 1], scalars by bare name, and
// intrinsics as calls, e.g. sqrt(v[x]).
func parseStatement(src string, k *Kernel) (*ir.Expression, error) {
	lhsSrc, rhsSrc, ok := strings.Cut(src, "=")
	if !ok || strings.HasPrefix(rhsSrc, "=") {
		return nil, fmt.Errorf("statement %q is not an assignment", src)
	}

	lhsExpr, err := parser.ParseExpr(strings.TrimSpace(lhsSrc))
	if err != nil {
		return nil, fmt.Errorf("left-hand side: %w", err)
	}
	lhs, err := compileAccess(lhsExpr, k)
	if err != nil {
		return nil, fmt.Errorf("left-hand side: %w", err)
	}

	rhsExpr, err := parser.ParseExpr(strings.TrimSpace(rhsSrc))
	if err != nil {
		return nil, fmt.Errorf("right-hand side: %w", err)
	}
	rhs, err := compileTerm(rhsExpr, k)
	if err != nil {
		return nil, fmt.Errorf("right-hand side: %w", err)
	}
	return &ir.Expression{LHS: lhs, RHS: rhs, DType: lhs.Func.DType}, nil
}

func compileTerm(e ast.Expr, k *Kernel) (ir.Term, error) {
	switch v := e.(type) {
	case *ast.ParenExpr:
		return compileTerm(v.X, k)
	case *ast.BasicLit:
		if v.Kind != gotoken.INT && v.Kind != gotoken.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", v.Value)
		}
		return ir.Literal(v.Value), nil
	case *ast.Ident, *ast.IndexExpr, *ast.IndexListExpr:
		return compileAccess(e, k)
	case *ast.UnaryExpr:
		x, err := compileTerm(v.X, k)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case gotoken.SUB:
			return &ir.Neg{X: x}, nil
		case gotoken.ADD:
			return x, nil
		}
		return nil, fmt.Errorf("unsupported unary operator %s", v.Op)
	case *ast.BinaryExpr:
		switch v.Op {
		case gotoken.ADD, gotoken.SUB, gotoken.MUL, gotoken.QUO:
		default:
			return nil, fmt.Errorf("unsupported operator %s", v.Op)
		}
		l, err := compileTerm(v.X, k)
		if err != nil {
			return nil, err
		}
		r, err := compileTerm(v.Y, k)
		if err != nil {
			return nil, err
		}
		return &ir.BinOp{Op: v.Op.String(), L: l, R: r}, nil
	case *ast.CallExpr:
		name, ok := v.Fun.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported call target")
		}
		args := make([]ir.Term, len(v.Args))
		for i, a := range v.Args {
			t, err := compileTerm(a, k)
			if err != nil {
				return nil, err
			}
			args[i] = t
		}
		return &ir.FuncCall{Name: name.Name, Args: args}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

// compileAccess resolves a function reference. Arrays must be indexed
// with one index per dimension.
func compileAccess(e ast.Expr, k *Kernel) (*ir.Access, error) {
	var (
		name    *ast.Ident
		indices []ast.Expr
	)
	switch v := e.(type) {
	case *ast.Ident:
		name = v
	case *ast.IndexExpr:
		id, ok := v.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported indexed expression")
		}
		name, indices = id, []ast.Expr{v.Index}
	case *ast.IndexListExpr:
		id, ok := v.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported indexed expression")
		}
		name, indices = id, v.Indices
	default:
		return nil, fmt.Errorf("expected a function reference, got %T", e)
	}

	f := k.Function(name.Name)
	if f == nil {
		return nil, fmt.Errorf("unknown function %q", name.Name)
	}
	if len(indices) != f.Rank() {
		return nil, fmt.Errorf("%s has rank %d, indexed with %d indices", f.Name, f.Rank(), len(indices))
	}

	a := &ir.Access{Func: f}
	for _, ie := range indices {
		idx, err := compileIndex(ie, k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		a.Indices = append(a.Indices, idx)
	}
	return a, nil
}

// compileIndex accepts d, d + n and d - n.
func compileIndex(e ast.Expr, k *Kernel) (ir.Index, error) {
	switch v := e.(type) {
	case *ast.ParenExpr:
		return compileIndex(v.X, k)
	case *ast.Ident:
		d := k.Dimension(v.Name)
		if d == nil {
			return ir.Index{}, fmt.Errorf("unknown dimension %q", v.Name)
		}
		return ir.Index{Dim: d}, nil
	case *ast.BinaryExpr:
		if v.Op != gotoken.ADD && v.Op != gotoken.SUB {
			return ir.Index{}, fmt.Errorf("unsupported index operator %s", v.Op)
		}
		idx, err := compileIndex(v.X, k)
		if err != nil {
			return ir.Index{}, err
		}
		lit, ok := v.Y.(*ast.BasicLit)
		if !ok || lit.Kind != gotoken.INT {
			return ir.Index{}, fmt.Errorf("index offset must be an integer literal")
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return ir.Index{}, err
		}
		if v.Op == gotoken.SUB {
			n = -n
		}
		idx.Offset += n
		return idx, nil
	default:
		return ir.Index{}, fmt.Errorf("unsupported index %T", e)
	}
}
