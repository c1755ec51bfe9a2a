// Package ir provides the loop tree intermediate representation consumed
// and produced by the rewriter.
//
// This package imports nothing internal. All other internal packages
// import ir.
//
// Key design constraints:
//   - Nodes are immutable; rewriting goes through Transform and Rewrite
//   - Dimensions and Functions are compared by pointer identity
//   - Loop bounds are integer expressions (Bound), never floats
//   - Content hashes use canonical JSON (RFC 8785)
package ir
