package target

import (
	"fmt"
	"strings"
)

// OpenMP pragma builders.

// OMPFor distributes a loop statically across the team.
func OMPFor() string {
	return "#pragma omp for schedule(static)"
}

// OMPCollapse distributes n perfectly nested loops as one iteration space.
func OMPCollapse(n int) string {
	return fmt.Sprintf("#pragma omp for collapse(%d) schedule(static)", n)
}

// OMPSimd vectorizes a loop.
func OMPSimd() string {
	return "#pragma omp simd"
}

// OMPSimdAligned vectorizes a loop asserting the arrays are aligned to
// bytes.
func OMPSimdAligned(arrays []string, bytes int) string {
	return fmt.Sprintf("#pragma omp simd aligned(%s:%d)", strings.Join(arrays, ","), bytes)
}

// OMPParallelRegion opens a parallel region with thread-private symbols.
func OMPParallelRegion(private []string) string {
	if len(private) == 0 {
		return "#pragma omp parallel"
	}
	return fmt.Sprintf("#pragma omp parallel private(%s)", strings.Join(private, ","))
}
