// Package rewriter transforms loop trees for performance on a target CPU.
//
// A Rewriter runs an ordered list of passes over a State. Each pass reads
// the current trees and returns an Update that is merged into the next
// State; nodes are never mutated in place. Passes that cannot apply to a
// nest skip it and log the reason at debug level. The only errors are
// configuration errors, reported when the Rewriter is built.
//
// Pipelines:
//   - baseline: denormals, fission, blocking, simd, [openmp], elemental
//   - speculative: denormals, fission, padding, blocking, simd, ntstores,
//     [openmp], elemental
//   - custom: a caller-chosen sequence of fission, padding and split
package rewriter
