package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/loopsmith/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	ErrEmptyKernel       = "E201" // no loop trees
	ErrUnknownDType      = "E202" // dtype outside the supported set
	ErrRankMismatch      = "E203" // indices do not match function rank
	ErrUnboundIndex      = "E204" // index dimension not iterated by an enclosing loop
	ErrBadStep           = "E205" // constant step is not positive
	ErrDuplicateFunction = "E206" // two functions share a name
	ErrVectorizableOuter = "E207" // vectorizable loop has nested loops
	ErrConflictingProps  = "E208" // parallel and sequential both set
	ErrDimensionReused   = "E209" // dimension iterated twice in one nest
	ErrShapeMismatch     = "E210" // shape length differs from rank
	ErrUnknownCallable   = "E211" // call to an undefined elemental function
)

// ValidationError represents an IR validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks loop trees for structural errors.
// Returns all errors found (does not fail-fast).
// Supports *Kernel and []ir.Node.
func Validate(v any) []ValidationError {
	switch k := v.(type) {
	case *Kernel:
		if k == nil {
			return validateNodes(nil, nil)
		}
		return validateNodes(k.Nodes, nil)
	case []ir.Node:
		return validateNodes(k, nil)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateProgram checks rewritten trees together with their elemental
// functions. Call targets must exist.
func ValidateProgram(nodes []ir.Node, callables []*ir.Callable) []ValidationError {
	return validateNodes(nodes, callables)
}

type validator struct {
	errs      []ValidationError
	functions map[string]*ir.Function
	callables map[string]*ir.Callable
}

func validateNodes(nodes []ir.Node, callables []*ir.Callable) []ValidationError {
	var errs []ValidationError

	// E201: at least one tree
	if len(ir.FindIterationTrees(nodes)) == 0 && len(ir.FindNodes[*ir.Call](nodes)) == 0 {
		errs = append(errs, ValidationError{
			Field:   "nodes",
			Message: "kernel has no loop nests",
			Code:    ErrEmptyKernel,
		})
	}

	v := &validator{
		errs:      errs,
		functions: map[string]*ir.Function{},
		callables: map[string]*ir.Callable{},
	}
	for _, c := range callables {
		v.callables[c.Name] = c
	}
	for i, n := range nodes {
		v.node(n, fmt.Sprintf("nodes[%d]", i), nil)
	}
	for _, c := range callables {
		// Callable bodies run inside the loops of their call site.
		for i, n := range c.Body {
			v.node(n, fmt.Sprintf("%s.body[%d]", c.Name, i), boundOutside(c))
		}
	}
	return v.errs
}

// boundOutside lists the scalar parameters of c; they are bound by the
// caller.
func boundOutside(c *ir.Callable) []*ir.Iteration {
	var out []*ir.Iteration
	for _, p := range c.Params {
		if p.Func == nil {
			out = append(out, &ir.Iteration{Dim: &ir.Dimension{Name: p.Name}})
		}
	}
	return out
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) node(n ir.Node, field string, enclosing []*ir.Iteration) {
	switch t := n.(type) {
	case *ir.Iteration:
		v.iteration(t, field, enclosing)
	case *ir.Expression:
		v.expression(t, field, enclosing)
	case *ir.Call:
		if _, ok := v.callables[t.Name]; !ok {
			v.add(field, ErrUnknownCallable, "call to undefined function %q", t.Name)
		}
	case *ir.Fold:
		for i, n := range t.Flatten() {
			v.node(n, fmt.Sprintf("%s.fold[%d]", field, i), enclosing)
		}
	default:
		for i, c := range n.Children() {
			v.node(c, fmt.Sprintf("%s[%d]", field, i), enclosing)
		}
	}
}

func (v *validator) iteration(it *ir.Iteration, field string, enclosing []*ir.Iteration) {
	field = field + "." + it.Dim.Name

	// E209: dimension iterated twice in one nest
	for _, outer := range enclosing {
		if outer.Dim == it.Dim {
			v.add(field, ErrDimensionReused, "dimension %s is already iterated by an enclosing loop", it.Dim.Name)
			break
		}
	}

	// E205: constant step must be positive
	if step, ok := ir.Constant(it.Limits.Step); ok && step <= 0 {
		v.add(field, ErrBadStep, "step must be positive, got %d", step)
	}

	// E208: parallel and sequential are exclusive
	if it.Properties.Has(ir.Parallel | ir.Sequential) {
		v.add(field, ErrConflictingProps, "loop cannot be both parallel and sequential")
	}

	// E207: vectorizable loops are innermost
	if it.IsVectorizable() && len(ir.FindNodes[*ir.Iteration](it.Body)) > 0 {
		v.add(field, ErrVectorizableOuter, "vectorizable loop %s contains nested loops", it.Dim.Name)
	}

	inner := append(append([]*ir.Iteration(nil), enclosing...), it)
	for i, c := range it.Body {
		v.node(c, fmt.Sprintf("%s[%d]", field, i), inner)
	}
}

func (v *validator) expression(e *ir.Expression, field string, enclosing []*ir.Iteration) {
	for _, a := range append([]*ir.Access{e.LHS}, ir.Accesses(e.RHS)...) {
		v.function(a.Func, field)

		// E203: one index per dimension
		if len(a.Indices) != a.Func.Rank() {
			v.add(field, ErrRankMismatch, "%s has rank %d, accessed with %d indices", a.Func.Name, a.Func.Rank(), len(a.Indices))
		}

		// E204: every index dimension is bound by an enclosing loop
		for _, idx := range a.Indices {
			if !iterates(enclosing, idx.Dim) {
				v.add(field, ErrUnboundIndex, "index %s of %s is not iterated by an enclosing loop", idx.Dim.Name, a.Func.Name)
			}
		}
	}
}

// function checks a function once, on first sight.
func (v *validator) function(f *ir.Function, field string) {
	seen, ok := v.functions[f.Name]
	if ok {
		// E206: names are unique
		if seen != f && !sameFunction(seen, f) {
			v.add(field, ErrDuplicateFunction, "function %s is defined twice with different shapes", f.Name)
			v.functions[f.Name] = f
		}
		return
	}
	v.functions[f.Name] = f

	// E202: supported dtype
	if !f.DType.Known() {
		v.add(field, ErrUnknownDType, "function %s has unsupported dtype %q", f.Name, f.DType)
	}

	// E210: shape covers every dimension
	if len(f.Shape) != 0 && len(f.Shape) != f.Rank() {
		v.add(field, ErrShapeMismatch, "function %s has %d dimensions but shape %v", f.Name, f.Rank(), f.Shape)
	}
}

func sameFunction(a, b *ir.Function) bool {
	if a.Rank() != b.Rank() || a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Dimensions {
		if a.Dimensions[i] != b.Dimensions[i] {
			return false
		}
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// iterates reports whether d, or a dimension of the same name, is the
// loop variable of some enclosing iteration.
func iterates(enclosing []*ir.Iteration, d *ir.Dimension) bool {
	for _, it := range enclosing {
		if it.Dim == d || it.Dim.Name == d.Name {
			return true
		}
	}
	return false
}

// Summary renders errors one per line.
func Summary(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
