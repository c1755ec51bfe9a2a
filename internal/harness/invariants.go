package harness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/loopsmith/internal/compiler"
	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/store"
)

// InvariantError reports a property every rewrite must have.
type InvariantError struct {
	Invariant string
	Detail    string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("Invariant violated: %s\n  %s", e.Invariant, e.Detail)
}

// checkInvariants returns one message per violated invariant.
func (h *Harness) checkInvariants(ctx context.Context, before string, state rewriter.State, run store.Run) []string {
	var out []string
	for _, check := range []func() error{
		func() error { return inputUnchanged(before, h.kernel.Nodes) },
		func() error { return h.deterministic(ctx, run) },
		func() error { return validOutput(state) },
	} {
		if err := check(); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// inputUnchanged checks that the rewriter did not mutate its input.
func inputUnchanged(before string, nodes []ir.Node) error {
	if after := ir.Dump(nodes); after != before {
		return &InvariantError{
			Invariant: "input_unchanged",
			Detail:    fmt.Sprintf("input trees changed during rewrite:\nbefore:\n%s\nafter:\n%s", before, after),
		}
	}
	return nil
}

// deterministic rewrites again and checks that the journal serves the
// same output for the same key.
func (h *Harness) deterministic(ctx context.Context, first store.Run) error {
	output, _, err := encodeState(h.rewriter.Run(h.kernel.Nodes))
	if err != nil {
		return &InvariantError{Invariant: "deterministic", Detail: err.Error()}
	}

	cached, ok, err := h.store.LookupRun(ctx, h.key)
	if err != nil {
		return &InvariantError{Invariant: "deterministic", Detail: err.Error()}
	}
	if !ok {
		return &InvariantError{Invariant: "deterministic", Detail: "journaled run not found by its key"}
	}
	if cached.ID != first.ID {
		return &InvariantError{
			Invariant: "deterministic",
			Detail:    fmt.Sprintf("cache returned run %s, journaled %s", cached.ID, first.ID),
		}
	}
	if !bytes.Equal(cached.Output, output) {
		return &InvariantError{
			Invariant: "deterministic",
			Detail:    "a second rewrite of the same kernel produced different output",
		}
	}
	return nil
}

// validOutput checks the rewritten trees and elemental functions.
func validOutput(state rewriter.State) error {
	if errs := compiler.ValidateProgram(state.Nodes, state.ElementalFunctions); len(errs) > 0 {
		return &InvariantError{
			Invariant: "valid_output",
			Detail:    compiler.Summary(errs),
		}
	}
	return nil
}
