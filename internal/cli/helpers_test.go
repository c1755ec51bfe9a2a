package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/config"
)

const stencilsCUE = `package kernels

kernel: copy2d: {
	dimensions: {x: 8, y: 16}
	functions: {
		u: {dims: ["x", "y"], external: true}
		v: {dims: ["x", "y"], external: true}
	}
	nests: [{
		loops: [
			{dim: "x", properties: ["parallel"]},
			{dim: "y", properties: ["parallel", "vectorizable"]},
		]
		body: ["u[x, y] = v[x, y] + 1"]
	}]
}

kernel: heat: {
	dimensions: {x: 20, y: 20, z: 4}
	functions: {
		u: {dims: ["x", "y", "z"], external: true}
		v: {dims: ["x", "y", "z"], external: true}
	}
	nests: [{
		loops: [
			{dim: "x", properties: ["parallel"]},
			{dim: "y", properties: ["parallel"]},
			{dim: "z", properties: ["parallel", "vectorizable"]},
		]
		body: ["u[x, y, z] = v[x, y, z] * 0.5 + v[x, y, z] * 0.25"]
	}]
}
`

// badNestCUE compiles but marks an outer loop vectorizable.
const badNestCUE = `package kernels

kernel: tangled: {
	dimensions: {x: 8, y: 8}
	functions: {u: {dims: ["x", "y"], external: true}}
	nests: [{
		loops: [
			{dim: "x", properties: ["vectorizable"]},
			{dim: "y", properties: ["parallel"]},
		]
		body: ["u[x, y] = 1"]
	}]
}
`

// brokenCUE has two kernels that fail to compile.
const brokenCUE = `package kernels

kernel: nodims: {
	functions: {u: {dims: ["x"]}}
	nests: [{loops: [{dim: "x"}], body: ["u[x] = 1"]}]
}

kernel: badstmt: {
	dimensions: {x: 8}
	functions: {u: {dims: ["x"], external: true}}
	nests: [{loops: [{dim: "x"}], body: ["u[x] = = 1"]}]
}
`

// fixedPlatform pins the target so output does not depend on the host.
const fixedPlatform = `platform:
  simd: avx2
  cores: 8
  compiler: gnu
`

// writeKernels writes src as a one-file CUE package and returns its dir.
func writeKernels(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kernels.cue"), []byte(src), 0644))
	return dir
}

// writeConfig writes a parameter file and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// rewriteCmd builds a rewrite command that sees env instead of the process
// environment.
func rewriteCmd(format string, env map[string]string) *cobra.Command {
	return newRewriteCommand(&RootOptions{Format: format}, config.MapSource(env))
}

// decodeData decodes a JSON CLIResponse and its data payload into data.
func decodeData(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}
