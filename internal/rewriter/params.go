package rewriter

import (
	"sort"
	"strings"

	"github.com/roach88/loopsmith/internal/ir"
)

// Default heuristic thresholds.
const (
	DefaultFissionMinStatements = 800
	DefaultFissionGroupSize     = 20
	DefaultCollapseCores        = 32
	DefaultElementalMinOps      = 30

	// DefaultBlockSize is used by the block-size heuristic for extents
	// larger than it; smaller extents get a block size of 1.
	DefaultBlockSize = 8

	// fallbackPadItems pads to this many items when the dtype is unknown.
	fallbackPadItems = 16
	// fallbackPadBytes is the widest register, used when only the
	// instruction set is unknown.
	fallbackPadBytes = 64
)

// Thresholds are the tunable heuristics of the passes.
type Thresholds struct {
	// FissionMinStatements is the minimum body size worth splitting.
	FissionMinStatements int
	// FissionGroupSize is the number of statements per split loop.
	FissionGroupSize int
	// CollapseCores is the core count from which parallel loops collapse.
	CollapseCores int
	// ElementalMinOps is the operation count from which an innermost loop
	// becomes an elemental function.
	ElementalMinOps int
}

// DefaultThresholds returns the built-in heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FissionMinStatements: DefaultFissionMinStatements,
		FissionGroupSize:     DefaultFissionGroupSize,
		CollapseCores:        DefaultCollapseCores,
		ElementalMinOps:      DefaultElementalMinOps,
	}
}

// Validate rejects non-positive thresholds.
func (t Thresholds) Validate() error {
	for _, c := range []struct {
		field string
		value int
	}{
		{"fission_min_statements", t.FissionMinStatements},
		{"fission_group_size", t.FissionGroupSize},
		{"collapse_cores", t.CollapseCores},
		{"elemental_min_ops", t.ElementalMinOps},
	} {
		if c.value < 1 {
			return configErrorf(ErrCodeBadThreshold, c.field, "must be positive, got %d", c.value)
		}
	}
	return nil
}

// BlockShape is the caller's block size request. Resolution order for a
// blocked dimension: ByDim, then All, then Sizes by position, then the
// heuristic.
type BlockShape struct {
	// Sizes are positional, in the order dimensions are first blocked.
	Sizes []int
	// ByDim maps an original dimension name to its block size.
	ByDim map[string]int
	// All applies to every blocked dimension when non-zero.
	All int
}

// IsZero reports whether no block size was requested.
func (b BlockShape) IsZero() bool {
	return len(b.Sizes) == 0 && len(b.ByDim) == 0 && b.All == 0
}

// Validate rejects non-positive sizes.
func (b BlockShape) Validate() error {
	if b.All < 0 {
		return configErrorf(ErrCodeBadBlockShape, "blockshape", "block size must be positive, got %d", b.All)
	}
	for _, s := range b.Sizes {
		if s < 1 {
			return configErrorf(ErrCodeBadBlockShape, "blockshape", "block size must be positive, got %d", s)
		}
	}
	for name, s := range b.ByDim {
		if s < 1 {
			return configErrorf(ErrCodeBadBlockShape, "blockshape", "block size for %s must be positive, got %d", name, s)
		}
	}
	return nil
}

// Plain encodes b for hashing.
func (b BlockShape) Plain() map[string]any {
	byDim := map[string]any{}
	for k, v := range b.ByDim {
		byDim[k] = v
	}
	return map[string]any{
		"sizes":  append([]int{}, b.Sizes...),
		"by_dim": byDim,
		"all":    b.All,
	}
}

// Params are the user-facing rewriter options.
type Params struct {
	// OpenMP enables the OpenMP decoration pass.
	OpenMP bool
	// BlockInner allows blocking of innermost vectorizable loops.
	BlockInner bool
	BlockShape BlockShape
	// Passes is the custom pipeline, in order.
	Passes []string
}

// Plain encodes p for hashing and journaling.
func (p Params) Plain() map[string]any {
	return map[string]any{
		"openmp":     p.OpenMP,
		"blockinner": p.BlockInner,
		"blockshape": p.BlockShape.Plain(),
		"passes":     append([]string{}, p.Passes...),
	}
}

// ParsePassList splits a comma-separated pass list. Whitespace around
// names is ignored; empty names are kept so validation can reject them.
func ParsePassList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// BlockSize is a resolved block size and where it came from.
type BlockSize struct {
	Value int
	// Heuristic is set when no caller-supplied size applied.
	Heuristic bool
}

// BlockingArg binds a block dimension to its parent and block size. The
// emitter adds one runtime parameter per BlockingArg.
type BlockingArg struct {
	Dim    *ir.Dimension
	Parent *ir.Dimension
	Size   BlockSize
}

// Name is the runtime parameter name.
func (a BlockingArg) Name() string {
	return a.Dim.SymbolicSize()
}

// Plain encodes a for output.
func (a BlockingArg) Plain() map[string]any {
	return map[string]any{
		"name":      a.Name(),
		"dimension": a.Dim.Name,
		"parent":    a.Parent.Name,
		"size":      a.Size.Value,
		"heuristic": a.Size.Heuristic,
	}
}

// Env binds every argument's parameter name to its size, for
// enumeration.
func Env(args []BlockingArg) map[string]int {
	out := make(map[string]int, len(args))
	for _, a := range args {
		out[a.Name()] = a.Size.Value
	}
	return out
}

func heuristicBlockSize(extent int) int {
	if extent == 0 || extent > DefaultBlockSize {
		return DefaultBlockSize
	}
	return 1
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
