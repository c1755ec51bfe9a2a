package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/loopsmith/internal/ir"
)

// Kernel is a compiled kernel description: its symbols and loop trees.
type Kernel struct {
	Name       string
	Dimensions []*ir.Dimension
	Functions  []*ir.Function
	Nodes      []ir.Node
}

// Dimension looks up a dimension by name.
func (k *Kernel) Dimension(name string) *ir.Dimension {
	for _, d := range k.Dimensions {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Function looks up a function by name.
func (k *Kernel) Function(name string) *ir.Function {
	for _, f := range k.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// CompileKernel parses a CUE kernel description into loop trees.
//
// The value is the kernel struct itself:
//
//	kernel: heat: {
//		dimensions: {x: 20, y: 20}
//		functions: {
//			u: {dims: ["x", "y"], dtype: "float32", external: true}
//			v: {dims: ["x", "y"], external: true}
//		}
//		nests: [{
//			loops: [
//				{dim: "x", properties: ["parallel"]},
//				{dim: "y", properties: ["parallel", "vectorizable"]},
//			]
//			body: ["u[x, y] = v[x, y] + 1"]
//		}]
//	}
//
// A dimension size of 0 means the extent is only known at run time; loops
// over it default to finishing at the symbolic size. Body entries are
// statements or nested nests.
func CompileKernel(v cue.Value) (*Kernel, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	k := &Kernel{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		k.Name = labels[len(labels)-1].String()
	}

	var err error
	if k.Dimensions, err = parseDimensions(v); err != nil {
		return nil, err
	}
	if k.Functions, err = parseFunctions(v, k); err != nil {
		return nil, err
	}

	nestsVal := v.LookupPath(cue.ParsePath("nests"))
	if !nestsVal.Exists() {
		return nil, &CompileError{Field: "nests", Message: "at least one nest is required", Pos: v.Pos()}
	}
	iter, err := nestsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		node, err := parseNest(iter.Value(), k, fmt.Sprintf("nests[%d]", i))
		if err != nil {
			return nil, err
		}
		k.Nodes = append(k.Nodes, node)
	}
	if len(k.Nodes) == 0 {
		return nil, &CompileError{Field: "nests", Message: "at least one nest is required", Pos: nestsVal.Pos()}
	}
	return k, nil
}

// parseDimensions reads the dimensions struct in declaration order.
func parseDimensions(v cue.Value) ([]*ir.Dimension, error) {
	dimsVal := v.LookupPath(cue.ParsePath("dimensions"))
	if !dimsVal.Exists() {
		return nil, &CompileError{Field: "dimensions", Message: "dimensions are required", Pos: v.Pos()}
	}
	iter, err := dimsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var dims []*ir.Dimension
	for iter.Next() {
		size, err := iter.Value().Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "dimensions." + iter.Label(),
				Message: "size must be an integer",
				Pos:     iter.Value().Pos(),
			}
		}
		if size < 0 {
			return nil, &CompileError{
				Field:   "dimensions." + iter.Label(),
				Message: fmt.Sprintf("size must not be negative, got %d", size),
				Pos:     iter.Value().Pos(),
			}
		}
		dims = append(dims, ir.NewDimension(iter.Label(), int(size)))
	}
	return dims, nil
}

// parseFunctions reads the functions struct. Functions without dims are
// scalars.
func parseFunctions(v cue.Value, k *Kernel) ([]*ir.Function, error) {
	funcsVal := v.LookupPath(cue.ParsePath("functions"))
	if !funcsVal.Exists() {
		return nil, &CompileError{Field: "functions", Message: "functions are required", Pos: v.Pos()}
	}
	iter, err := funcsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var funcs []*ir.Function
	for iter.Next() {
		name, fv := iter.Label(), iter.Value()
		field := "functions." + name
		f := &ir.Function{Name: name, DType: ir.Float32}

		if dimsVal := fv.LookupPath(cue.ParsePath("dims")); dimsVal.Exists() {
			var names []string
			if err := dimsVal.Decode(&names); err != nil {
				return nil, &CompileError{Field: field + ".dims", Message: "dims must be a list of dimension names", Pos: dimsVal.Pos()}
			}
			for _, dn := range names {
				d := k.Dimension(dn)
				if d == nil {
					return nil, &CompileError{Field: field + ".dims", Message: fmt.Sprintf("unknown dimension %q", dn), Pos: dimsVal.Pos()}
				}
				f.Dimensions = append(f.Dimensions, d)
				f.Shape = append(f.Shape, d.Size)
			}
		}
		if dtypeVal := fv.LookupPath(cue.ParsePath("dtype")); dtypeVal.Exists() {
			s, err := dtypeVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			f.DType = ir.DType(s)
		}
		if f.External, err = optionalBool(fv, "external"); err != nil {
			return nil, err
		}
		if f.OnStack, err = optionalBool(fv, "stack"); err != nil {
			return nil, err
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(path))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// parseNest builds one loop nest. Loops are listed outermost first.
func parseNest(v cue.Value, k *Kernel, field string) (ir.Node, error) {
	loopsVal := v.LookupPath(cue.ParsePath("loops"))
	if !loopsVal.Exists() {
		return nil, &CompileError{Field: field + ".loops", Message: "loops are required", Pos: v.Pos()}
	}
	iter, err := loopsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var levels []*ir.Iteration
	for i := 0; iter.Next(); i++ {
		it, err := parseLoop(iter.Value(), k, fmt.Sprintf("%s.loops[%d]", field, i))
		if err != nil {
			return nil, err
		}
		levels = append(levels, it)
	}
	if len(levels) == 0 {
		return nil, &CompileError{Field: field + ".loops", Message: "at least one loop is required", Pos: loopsVal.Pos()}
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{Field: field + ".body", Message: "body is required", Pos: v.Pos()}
	}
	bodyIter, err := bodyVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var body []ir.Node
	for i := 0; bodyIter.Next(); i++ {
		item := bodyIter.Value()
		itemField := fmt.Sprintf("%s.body[%d]", field, i)
		if item.IncompleteKind() == cue.StringKind {
			src, err := item.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			e, err := parseStatement(src, k)
			if err != nil {
				return nil, &CompileError{Field: itemField, Message: err.Error(), Pos: item.Pos()}
			}
			body = append(body, e)
			continue
		}
		inner, err := parseNest(item, k, itemField)
		if err != nil {
			return nil, err
		}
		body = append(body, inner)
	}
	if len(body) == 0 {
		return nil, &CompileError{Field: field + ".body", Message: "body must not be empty", Pos: bodyVal.Pos()}
	}
	return ir.Compose(levels, body), nil
}

func parseLoop(v cue.Value, k *Kernel, field string) (*ir.Iteration, error) {
	dimVal := v.LookupPath(cue.ParsePath("dim"))
	if !dimVal.Exists() {
		return nil, &CompileError{Field: field + ".dim", Message: "dim is required", Pos: v.Pos()}
	}
	name, err := dimVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	d := k.Dimension(name)
	if d == nil {
		return nil, &CompileError{Field: field + ".dim", Message: fmt.Sprintf("unknown dimension %q", name), Pos: dimVal.Pos()}
	}

	it := &ir.Iteration{Dim: d}
	if it.Limits.Start, err = parseBound(v, "start", ir.Int(0), field); err != nil {
		return nil, err
	}
	var finish ir.Bound = ir.Sym(d.SymbolicSize())
	if d.Size > 0 {
		finish = ir.Int(d.Size)
	}
	if it.Limits.Finish, err = parseBound(v, "finish", finish, field); err != nil {
		return nil, err
	}
	if it.Limits.Step, err = parseBound(v, "step", ir.Int(1), field); err != nil {
		return nil, err
	}

	if offVal := v.LookupPath(cue.ParsePath("offsets")); offVal.Exists() {
		var off []int
		if err := offVal.Decode(&off); err != nil || len(off) != 2 {
			return nil, &CompileError{Field: field + ".offsets", Message: "offsets must be [lower, upper]", Pos: offVal.Pos()}
		}
		it.Offsets = ir.Offsets{Lower: off[0], Upper: off[1]}
	}

	if propsVal := v.LookupPath(cue.ParsePath("properties")); propsVal.Exists() {
		var names []string
		if err := propsVal.Decode(&names); err != nil {
			return nil, &CompileError{Field: field + ".properties", Message: "properties must be a list of names", Pos: propsVal.Pos()}
		}
		for _, n := range names {
			p, err := ir.ParseProperty(n)
			if err != nil {
				return nil, &CompileError{Field: field + ".properties", Message: err.Error(), Pos: propsVal.Pos()}
			}
			it.Properties |= p
		}
	}
	return it, nil
}

// parseBound reads an integer or symbol bound, or returns def when absent.
func parseBound(v cue.Value, path string, def ir.Bound, field string) (ir.Bound, error) {
	bv := v.LookupPath(cue.ParsePath(path))
	if !bv.Exists() {
		return def, nil
	}
	switch bv.IncompleteKind() {
	case cue.IntKind:
		n, err := bv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(int(n)), nil
	case cue.StringKind:
		s, err := bv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Sym(s), nil
	default:
		return nil, &CompileError{
			Field:   field + "." + path,
			Message: fmt.Sprintf("bound must be an integer or a symbol name, got %v", bv.IncompleteKind()),
			Pos:     bv.Pos(),
		}
	}
}
