// Package harness runs rewrite scenarios against the loopsmith rewriter.
//
// A scenario names a kernel, a pipeline and its configuration, and the
// properties the rewritten trees must have.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: heat_blocked
//	description: "Blocking the heat kernel keeps every point covered"
//	kernel: kernels/heat.cue   # relative to the scenario file
//	select: heat               # kernel name; optional if the file has one
//	mode: baseline             # baseline, speculative or custom
//	config:                    # same keys as the params file
//	  blockshape: {x: 4}
//	  platform: {simd: avx2, cores: 8, compiler: gnu}
//	env: {n_size: 12}          # values for runtime sizes
//	golden: true               # compare the dump with testdata/golden
//	assertions:
//	  - type: applied
//	    flags: [denormals, blocking, simd, elemental]
//	  - type: dump_contains
//	    text: "#pragma omp simd"
//	  - type: coverage
//
// # Assertion Types
//
//   - applied: the applied flags equal flags, in order
//   - applied_contains: every flag was applied
//   - not_applied: no flag was applied
//   - arguments: runtime parameter count, names (in order) or sizes
//   - dump_contains / dump_excludes: text in the rendered trees
//   - node_count: number of nodes of a kind (iteration, expression,
//     block, call, fold)
//   - callables: number of elemental functions
//   - coverage: every written point is written as often as before
//   - equivalence: interpreting input and output gives equal external
//     arrays
//
// # Invariants
//
// Every scenario additionally checks that the rewrite is deterministic
// (a second run hits the journal with identical output), that the input
// trees are left unchanged and that the output passes IR validation.
//
// # Deterministic Testing
//
// Scenarios run against an in-memory store with sequential run IDs. The
// platform defaults to avx2 with 8 cores and the gnu compiler instead of
// the host, so results do not depend on the machine.
package harness
