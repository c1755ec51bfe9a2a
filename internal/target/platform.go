// Package target describes the capabilities of the machine and compiler
// the rewritten kernel is emitted for.
//
// The rewriter only ever reads a Platform; a missing capability degrades
// the pass that needs it to a no-op.
package target

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/loopsmith/internal/ir"
)

// Compiler decoration names.
const (
	IgnoreDeps = "ignore-deps"
	NTStores   = "ntstores"
	StoreFence = "storefence"
)

// Platform is the capability surface consumed by the rewriter.
type Platform interface {
	// SIMDFlag names the widest vector instruction set, e.g. "avx2".
	SIMDFlag() string
	// SIMDItems is the number of dtype elements in one vector register.
	// It reports false for unknown dtypes.
	SIMDItems(dtype ir.DType) (int, bool)
	PhysicalCores() int
	// Decoration returns compiler-specific pragma text by name.
	Decoration(name string) (string, bool)
}

// simdRegisterBytes is the vector register width per instruction set.
var simdRegisterBytes = map[string]int{
	"sse":     16,
	"avx":     32,
	"avx2":    32,
	"avx512f": 64,
	"neon":    16,
}

// SIMDBytes returns the register width in bytes for flag.
func SIMDBytes(flag string) (int, bool) {
	n, ok := simdRegisterBytes[flag]
	return n, ok
}

// SIMDFlags lists the known instruction sets.
func SIMDFlags() []string {
	out := make([]string, 0, len(simdRegisterBytes))
	for k := range simdRegisterBytes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Static is a Platform with fixed answers, built from configuration or
// by Host.
type Static struct {
	Flag        string
	Cores       int
	Compiler    string
	Decorations map[string]string
}

// NewStatic validates flag and compiler and returns the platform.
func NewStatic(flag string, cores int, compiler string) (*Static, error) {
	if _, ok := simdRegisterBytes[flag]; !ok {
		return nil, fmt.Errorf("unknown simd flag %q (want one of %v)", flag, SIMDFlags())
	}
	if cores < 1 {
		return nil, fmt.Errorf("core count must be positive, got %d", cores)
	}
	decorations, err := CompilerDecorations(compiler)
	if err != nil {
		return nil, err
	}
	return &Static{Flag: flag, Cores: cores, Compiler: compiler, Decorations: decorations}, nil
}

// SIMDFlag implements Platform.
func (s *Static) SIMDFlag() string { return s.Flag }

// SIMDItems implements Platform.
func (s *Static) SIMDItems(dtype ir.DType) (int, bool) {
	width, ok := simdRegisterBytes[s.Flag]
	if !ok {
		return 0, false
	}
	size, ok := dtype.ItemSize()
	if !ok {
		return 0, false
	}
	return width / size, true
}

// PhysicalCores implements Platform.
func (s *Static) PhysicalCores() int { return s.Cores }

// Decoration implements Platform.
func (s *Static) Decoration(name string) (string, bool) {
	d, ok := s.Decorations[name]
	return d, ok && d != ""
}

// Without returns a copy of s lacking the named decorations.
func (s *Static) Without(names ...string) *Static {
	c := *s
	c.Decorations = make(map[string]string, len(s.Decorations))
	for k, v := range s.Decorations {
		if !slices.Contains(names, k) {
			c.Decorations[k] = v
		}
	}
	return &c
}

// Describe lists the capabilities as plain values for display.
func Describe(p Platform) map[string]any {
	out := map[string]any{
		"simd":  p.SIMDFlag(),
		"cores": p.PhysicalCores(),
	}
	for _, name := range []string{IgnoreDeps, NTStores, StoreFence} {
		if d, ok := p.Decoration(name); ok {
			out[name] = d
		}
	}
	items := map[string]any{}
	for _, dt := range []ir.DType{ir.Float16, ir.Float32, ir.Float64, ir.Int32, ir.Int64} {
		if n, ok := p.SIMDItems(dt); ok {
			items[string(dt)] = n
		}
	}
	out["simd_items"] = items
	return out
}
