package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/loopsmith/internal/compiler"
	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/store"
	"github.com/roach88/loopsmith/internal/testutil"
)

// Harness holds what one scenario execution needs.
type Harness struct {
	store    *store.Store
	rewriter *rewriter.Rewriter
	kernel   *compiler.Kernel
	key      store.Key
	logger   *slog.Logger
	env      ir.Point
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Compile and validate the kernel
// 2. Build the rewriter from the scenario's configuration
// 3. Rewrite, journal the run, then rewrite again and compare
// 4. Check invariants and evaluate assertions
//
// An error is returned when the scenario cannot run at all; failed
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with pass logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	kernel, err := loadKernel(scenario)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(kernel); len(errs) > 0 {
		return nil, fmt.Errorf("kernel %s is invalid:\n%s", kernel.Name, compiler.Summary(errs))
	}

	cfg, err := scenario.Configuration()
	if err != nil {
		return nil, err
	}
	platform, err := cfg.BuildPlatform()
	if err != nil {
		return nil, err
	}
	rw, err := rewriter.New(rewriter.Mode(scenario.Mode), platform,
		rewriter.WithParams(cfg.Params),
		rewriter.WithThresholds(cfg.Thresholds),
		rewriter.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	key, err := store.NewKey(kernel.Nodes, scenario.Mode, cfg.Plain(platform))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs()))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		rewriter: rw,
		kernel:   kernel,
		key:      key,
		logger:   logger,
		env:      ir.Point(scenario.Env),
	}
	return h.execute(context.Background(), scenario)
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario) (*Result, error) {
	before := ir.Dump(h.kernel.Nodes)
	state := h.rewriter.Run(h.kernel.Nodes)

	run, err := h.journal(ctx, state)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Kernel = h.kernel.Name
	result.Mode = scenario.Mode
	result.Applied = append(result.Applied, state.AppliedNames()...)
	for _, a := range state.Arguments {
		result.Arguments = append(result.Arguments, a.Name())
	}
	result.Dump = ir.Dump(state.Nodes) + ir.DumpCallables(state.ElementalFunctions)
	result.RunID = run.ID

	h.logger.Info("scenario rewritten",
		"scenario", scenario.Name,
		"kernel", h.kernel.Name,
		"mode", scenario.Mode,
		"applied", result.Applied,
	)

	for _, msg := range h.checkInvariants(ctx, before, state, run) {
		result.AddError(msg)
	}

	actx := &AssertionContext{
		Input: h.kernel.Nodes,
		State: state,
		Dump:  result.Dump,
		Env:   h.env,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// journal records the run under the scenario's cache key.
func (h *Harness) journal(ctx context.Context, state rewriter.State) (store.Run, error) {
	output, args, err := encodeState(state)
	if err != nil {
		return store.Run{}, err
	}
	run, _, err := h.store.RecordRun(ctx, store.Run{
		Kernel:    h.kernel.Name,
		Key:       h.key,
		Applied:   state.AppliedNames(),
		Arguments: args,
		Output:    output,
	})
	if err != nil {
		return store.Run{}, fmt.Errorf("failed to journal run: %w", err)
	}
	return run, nil
}

// encodeState returns the canonical state document and its arguments.
func encodeState(state rewriter.State) (output, args json.RawMessage, err error) {
	doc := state.Document()
	if output, err = ir.MarshalCanonical(doc); err != nil {
		return nil, nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if args, err = ir.MarshalCanonical(doc["arguments"]); err != nil {
		return nil, nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return output, args, nil
}

// loadKernel compiles the scenario's kernel file and selects the kernel.
func loadKernel(s *Scenario) (*compiler.Kernel, error) {
	kernels, err := compiler.CompileFile(s.Kernel)
	if err != nil {
		return nil, err
	}
	if s.Select == "" {
		if len(kernels) != 1 {
			return nil, fmt.Errorf("%s holds %d kernels; select one", s.Kernel, len(kernels))
		}
		return kernels[0], nil
	}
	k := compiler.Find(kernels, s.Select)
	if k == nil {
		return nil, fmt.Errorf("kernel %q not found in %s", s.Select, s.Kernel)
	}
	return k, nil
}

