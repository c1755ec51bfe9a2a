package rewriter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/target"
)

// Mode selects a pipeline.
type Mode string

// Pipelines.
const (
	ModeBaseline    Mode = "baseline"
	ModeSpeculative Mode = "speculative"
	ModeCustom      Mode = "custom"
)

// Modes lists the pipelines.
func Modes() []Mode {
	return []Mode{ModeBaseline, ModeSpeculative, ModeCustom}
}

// PassID enumerates the passes.
type PassID int

// Passes.
const (
	PassDenormals PassID = iota
	PassFission
	PassPadding
	PassBlocking
	PassSIMD
	PassNTStores
	PassOpenMP
	PassElemental
)

type passFunc func(r *run, s State) Update

var passTable = [...]struct {
	name string
	flag Flag
	fn   passFunc
}{
	PassDenormals: {"denormals", FlagDenormals, (*run).denormals},
	PassFission:   {"fission", FlagFission, (*run).fission},
	PassPadding:   {"padding", FlagPadding, (*run).padding},
	PassBlocking:  {"blocking", FlagBlocking, (*run).blocking},
	PassSIMD:      {"simd", FlagSIMD, (*run).simd},
	PassNTStores:  {"ntstores", FlagNTStores, (*run).ntstores},
	PassOpenMP:    {"openmp", FlagOpenMP, (*run).openmp},
	PassElemental: {"elemental", FlagElemental, (*run).elemental},
}

func (p PassID) String() string {
	if p < 0 || int(p) >= len(passTable) {
		return fmt.Sprintf("PassID(%d)", int(p))
	}
	return passTable[p].name
}

// Flag returns the optimization flag the pass records.
func (p PassID) Flag() Flag {
	return passTable[p].flag
}

// customRegistry maps the names accepted by the custom pipeline.
var customRegistry = map[string]PassID{
	"fission": PassFission,
	"padding": PassPadding,
	"split":   PassElemental,
}

// CustomPassNames lists the names accepted by the custom pipeline.
func CustomPassNames() []string {
	return slices.Sorted(maps.Keys(customRegistry))
}

// ParseCustomPasses validates names against the custom registry.
func ParseCustomPasses(names []string) ([]PassID, error) {
	if len(names) == 0 {
		return nil, configErrorf(ErrCodeNoPasses, "passes", "custom pipeline requires at least one pass (one of %v)", CustomPassNames())
	}
	out := make([]PassID, 0, len(names))
	for _, n := range names {
		id, ok := customRegistry[n]
		if !ok {
			return nil, configErrorf(ErrCodeUnknownPass, "passes", "unknown pass %q (want one of %v)", n, CustomPassNames())
		}
		out = append(out, id)
	}
	return out, nil
}

// Rewriter runs one pipeline. It holds no per-run state and may be used
// from several goroutines.
type Rewriter struct {
	mode       Mode
	passes     []PassID
	params     Params
	thresholds Thresholds
	platform   target.Platform
	logger     *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithParams sets the user-facing options.
func WithParams(p Params) Option {
	return func(rw *Rewriter) {
		rw.params = p
	}
}

// WithThresholds overrides the heuristic thresholds.
//
// Default: DefaultThresholds()
func WithThresholds(t Thresholds) Option {
	return func(rw *Rewriter) {
		rw.thresholds = t
	}
}

// WithLogger sets the logger for pass diagnostics.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(rw *Rewriter) {
		rw.logger = l
	}
}

// New builds the pipeline for mode. Configuration problems, including an
// invalid custom pass list, are reported here before any tree is touched.
func New(mode Mode, platform target.Platform, opts ...Option) (*Rewriter, error) {
	rw := &Rewriter{
		mode:       mode,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(rw)
	}
	if platform == nil {
		return nil, configErrorf(ErrCodeNoPlatform, "platform", "a target platform is required")
	}
	rw.platform = platform
	if err := rw.thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := rw.params.BlockShape.Validate(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeBaseline:
		rw.passes = []PassID{PassDenormals, PassFission, PassBlocking, PassSIMD}
		if rw.params.OpenMP {
			rw.passes = append(rw.passes, PassOpenMP)
		}
		rw.passes = append(rw.passes, PassElemental)
	case ModeSpeculative:
		rw.passes = []PassID{PassDenormals, PassFission, PassPadding, PassBlocking, PassSIMD, PassNTStores}
		if rw.params.OpenMP {
			rw.passes = append(rw.passes, PassOpenMP)
		}
		rw.passes = append(rw.passes, PassElemental)
	case ModeCustom:
		passes, err := ParseCustomPasses(rw.params.Passes)
		if err != nil {
			return nil, err
		}
		rw.passes = passes
	default:
		return nil, configErrorf(ErrCodeUnknownMode, "mode", "unknown mode %q (want one of %v)", mode, Modes())
	}
	return rw, nil
}

// Mode returns the pipeline mode.
func (rw *Rewriter) Mode() Mode { return rw.mode }

// Passes returns the pipeline in execution order.
func (rw *Rewriter) Passes() []PassID { return slices.Clone(rw.passes) }

// Params returns the user-facing options.
func (rw *Rewriter) Params() Params { return rw.params }

// Run applies the pipeline to nodes.
func (rw *Rewriter) Run(nodes []ir.Node) State {
	return rw.Apply(NewState(nodes), rw.passes...)
}

// Apply runs the given passes over s in order as a single run. A pass
// whose flag s already records is skipped.
func (rw *Rewriter) Apply(s State, passes ...PassID) State {
	r := rw.newRun(s)
	for _, id := range passes {
		s = r.apply(s, id)
	}
	return s
}

// run holds the state of one pipeline execution.
type run struct {
	*Rewriter

	// blockDims memoizes one block dimension per original dimension.
	blockDims map[*ir.Dimension]*ir.Dimension
	// blocked lists the original dimensions in the order first blocked.
	blocked []*ir.Dimension
	tags    int
	calls   int
}

func (rw *Rewriter) newRun(s State) *run {
	return &run{
		Rewriter:  rw,
		blockDims: make(map[*ir.Dimension]*ir.Dimension),
		calls:     len(s.ElementalFunctions),
	}
}

func (r *run) apply(s State, id PassID) State {
	entry := passTable[id]
	if s.HasApplied(entry.flag) {
		r.logger.Debug("pass already applied, skipping", "pass", entry.name)
		return s
	}
	u := entry.fn(r, s)
	next := s.merge(entry.flag, u)
	if u.Applied {
		r.logger.Info("pass applied",
			"pass", entry.name,
			"nodes", len(next.Nodes),
			"arguments", len(u.Arguments),
		)
	} else {
		r.logger.Debug("pass made no changes", "pass", entry.name)
	}
	return next
}

// denormals prepends the denormal reset to the trees.
func (r *run) denormals(s State) Update {
	nodes := append([]ir.Node{ir.NewDenormals()}, s.Nodes...)
	return Update{Nodes: nodes, Applied: true}
}

// eachTree applies fn to every top-level node with its own mapper and
// returns the transformed trees plus whether any mapping was made.
func eachTree(nodes []ir.Node, fn func(node ir.Node, mapper map[ir.Node]ir.Node)) ([]ir.Node, bool) {
	out := make([]ir.Node, 0, len(nodes))
	changed := false
	for _, node := range nodes {
		mapper := map[ir.Node]ir.Node{}
		fn(node, mapper)
		if len(mapper) > 0 {
			changed = true
		}
		out = append(out, ir.Transform([]ir.Node{node}, mapper)...)
	}
	return out, changed
}

func treeNames(tree []*ir.Iteration) []string {
	out := make([]string, len(tree))
	for i, it := range tree {
		out[i] = it.Dim.Name
	}
	return out
}
