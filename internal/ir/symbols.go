package ir

import "fmt"

// Dimension is an iteration space axis.
//
// Dimensions are compared by identity: two loops iterate the same axis only
// when they point at the same *Dimension.
type Dimension struct {
	Name string
	// Size is the extent when known at compile time, 0 otherwise.
	Size int
	// Parent is set on derived dimensions, e.g. the block dimension
	// introduced by loop blocking.
	Parent *Dimension
}

// NewDimension creates a root dimension.
func NewDimension(name string, size int) *Dimension {
	return &Dimension{Name: name, Size: size}
}

// SymbolicSize is the name of the runtime symbol holding the extent.
func (d *Dimension) SymbolicSize() string {
	return d.Name + "_size"
}

// IsDerived reports whether d was derived from another dimension.
func (d *Dimension) IsDerived() bool {
	return d.Parent != nil
}

func (d *Dimension) String() string {
	if d.Size > 0 {
		return fmt.Sprintf("%s(%d)", d.Name, d.Size)
	}
	return d.Name
}

// Function is a named array or scalar referenced by expressions.
// A Function with no dimensions is a scalar.
type Function struct {
	Name       string
	Dimensions []*Dimension
	Shape      []int
	DType      DType
	// OnStack marks automatic (stack) allocation; such symbols become
	// thread-private inside parallel regions.
	OnStack bool
	// External marks caller-supplied data whose layout is observable
	// outside the kernel.
	External bool
}

// Rank returns the number of dimensions.
func (f *Function) Rank() int {
	return len(f.Dimensions)
}

// IsScalar reports whether f has no dimensions.
func (f *Function) IsScalar() bool {
	return len(f.Dimensions) == 0
}

// IsArray reports whether f has at least one dimension.
func (f *Function) IsArray() bool {
	return len(f.Dimensions) > 0
}

// TrailingDimension returns the fastest-varying dimension, or nil for scalars.
func (f *Function) TrailingDimension() *Dimension {
	if len(f.Dimensions) == 0 {
		return nil
	}
	return f.Dimensions[len(f.Dimensions)-1]
}

// TrailingExtent returns the extent of the fastest-varying dimension,
// or 0 for scalars and unknown shapes.
func (f *Function) TrailingExtent() int {
	if len(f.Shape) == 0 {
		return 0
	}
	return f.Shape[len(f.Shape)-1]
}

func (f *Function) String() string {
	return f.Name
}
