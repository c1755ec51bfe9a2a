// Command loopsmith rewrites stencil loop nests described in CUE.
//
// Usage:
//
//	loopsmith validate ./kernels
//	loopsmith rewrite ./kernels --kernel heat --mode speculative --openmp
//	loopsmith history --db runs.db
//	loopsmith test ./scenarios
package main

import (
	"fmt"
	"os"

	"github.com/roach88/loopsmith/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
