// Package store provides SQLite-backed storage for rewrite runs.
//
// Every run is journaled with the content hash of its input kernel, the
// pipeline mode and the hash of its parameters. The triple is unique, so
// the journal doubles as a cache: a repeated rewrite is answered from the
// stored output without running the pipeline.
//
// # Ordering
//
// Listings use seq INTEGER (insertion order), never timestamps:
//
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Hashes are computed by internal/ir using RFC 8785 canonical JSON and
// SHA-256 with domain separation.
package store
