package target

import (
	"runtime"

	hostcpu "github.com/shirou/gopsutil/v4/cpu"
	"golang.org/x/sys/cpu"
)

// physicalCores counts cores without hyperthread siblings.
var physicalCores = func() (int, error) { return hostcpu.Counts(false) }

// DetectSIMDFlag probes the running CPU for its widest instruction set.
func DetectSIMDFlag() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		switch {
		case cpu.X86.HasAVX512F:
			return "avx512f"
		case cpu.X86.HasAVX2:
			return "avx2"
		case cpu.X86.HasAVX:
			return "avx"
		}
		return "sse"
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return "neon"
		}
	}
	return "sse"
}

// Host describes the running machine with the given compiler's
// decorations. When the physical core count is unavailable it falls back
// to the logical CPU count.
func Host(compiler string) (*Static, error) {
	return NewStatic(DetectSIMDFlag(), hostCores(), compiler)
}

func hostCores() int {
	n, err := physicalCores()
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}
