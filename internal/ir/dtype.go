package ir

// DType names the element type of a Function.
type DType string

// Supported element types.
const (
	Float16 DType = "float16"
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int16   DType = "int16"
	Int32   DType = "int32"
	Int64   DType = "int64"
)

var itemSizes = map[DType]int{
	Float16: 2,
	Float32: 4,
	Float64: 8,
	Int16:   2,
	Int32:   4,
	Int64:   8,
}

// ItemSize returns the size in bytes of one element.
// The second result is false for unrecognized dtypes.
func (d DType) ItemSize() (int, bool) {
	n, ok := itemSizes[d]
	return n, ok
}

// Known reports whether d is one of the supported element types.
func (d DType) Known() bool {
	_, ok := itemSizes[d]
	return ok
}
