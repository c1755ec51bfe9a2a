package target

import (
	"fmt"
	"maps"
	"slices"
)

var compilerPresets = map[string]map[string]string{
	"gnu": {
		IgnoreDeps: "#pragma GCC ivdep",
	},
	"clang": {
		IgnoreDeps: "#pragma clang loop vectorize(assume_safety)",
	},
	"intel": {
		IgnoreDeps: "#pragma ivdep",
		NTStores:   "#pragma vector nontemporal",
		StoreFence: "_mm_sfence();",
	},
}

// CompilerDecorations returns a copy of the decoration table for a
// compiler family (gnu, clang, intel).
func CompilerDecorations(compiler string) (map[string]string, error) {
	preset, ok := compilerPresets[compiler]
	if !ok {
		return nil, fmt.Errorf("unknown compiler %q (want one of %v)", compiler, Compilers())
	}
	return maps.Clone(preset), nil
}

// Compilers lists the known compiler families.
func Compilers() []string {
	return slices.Sorted(maps.Keys(compilerPresets))
}
