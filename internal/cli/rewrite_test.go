package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite_Text(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	out, _, err := execute(rewriteCmd("text", nil), dir, "--kernel", "heat", "--config", cfg, "--blockshape", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Rewrote heat (baseline)")
	assert.Contains(t, out, "Applied: denormals, blocking, simd, elemental")
	assert.Contains(t, out, "x_block_size = 4")
	assert.Contains(t, out, "y_block_size = 4")
	assert.Contains(t, out, "#pragma omp simd")
	assert.Contains(t, out, "func f_0(")
	assert.NotContains(t, out, "Journaled as run")
}

func TestRewrite_JSON(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	out, _, err := execute(rewriteCmd("json", nil), dir, "-k", "heat", "-c", cfg, "--mode", "speculative", "--openmp")
	require.NoError(t, err)

	var result RewriteResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.RunID)
	assert.Equal(t, "heat", result.Kernel)
	assert.Equal(t, "speculative", result.Mode)
	assert.False(t, result.Cached)
	assert.Contains(t, result.Applied, "openmp")
	assert.Contains(t, result.Applied, "padding")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(result.Output, &doc))
	assert.Contains(t, doc, "applied")
	assert.Contains(t, doc, "arguments")
}

func TestRewrite_HeuristicBlockSizes(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	out, _, err := execute(rewriteCmd("text", nil), dir, "--kernel", "heat", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "x_block_size = 8 (heuristic)")
	assert.Contains(t, out, "y_block_size = 8 (heuristic)")
}

func TestRewrite_CustomPasses(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform+"thresholds:\n  elemental_min_ops: 1\n")

	out, _, err := execute(rewriteCmd("json", nil), dir, "-k", "copy2d", "-c", cfg, "--mode", "custom", "--passes", "split")
	require.NoError(t, err)

	var result RewriteResult
	decodeData(t, out, &result)
	assert.Equal(t, []string{"elemental"}, result.Applied)
	assert.JSONEq(t, "[]", string(result.Arguments))
}

func TestRewrite_Journal(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)
	db := filepath.Join(t.TempDir(), "runs.db")

	out, _, err := execute(rewriteCmd("json", nil), dir, "-k", "heat", "-c", cfg, "--db", db)
	require.NoError(t, err)
	var first RewriteResult
	resp := decodeData(t, out, &first)
	require.NotEmpty(t, first.RunID)
	assert.Equal(t, first.RunID, resp.RunID)
	assert.False(t, first.Cached)

	out, _, err = execute(rewriteCmd("json", nil), dir, "-k", "heat", "-c", cfg, "--db", db)
	require.NoError(t, err)
	var second RewriteResult
	resp = decodeData(t, out, &second)
	assert.True(t, second.Cached)
	assert.True(t, resp.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Applied, second.Applied)
	assert.JSONEq(t, string(first.Output), string(second.Output))

	out, _, err = execute(rewriteCmd("text", nil), dir, "-k", "heat", "-c", cfg, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Rewrote heat (baseline)")
	assert.Contains(t, out, "Replayed from journal run "+first.RunID)
	assert.NotContains(t, out, "Journaled as run")
	assert.Contains(t, out, "x_block_size = 8 (heuristic)")
}

func TestRewrite_JournalKeysOnParameters(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)
	db := filepath.Join(t.TempDir(), "runs.db")

	var ids []string
	for _, shape := range []string{"4", "2", "4"} {
		out, _, err := execute(rewriteCmd("json", nil), dir, "-k", "heat", "-c", cfg, "--db", db, "--blockshape", shape)
		require.NoError(t, err)
		var r RewriteResult
		decodeData(t, out, &r)
		ids = append(ids, r.RunID)
	}
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])

	out, _, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	var history HistoryResult
	decodeData(t, out, &history)
	assert.Len(t, history.Runs, 2)
}

func TestRewrite_EnvironmentOverrides(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)
	env := map[string]string{"LOOPSMITH_BLOCKSHAPE": "x=2,y=5", "LOOPSMITH_OPENMP": "true"}

	out, _, err := execute(rewriteCmd("text", env), dir, "-k", "heat", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "x_block_size = 2")
	assert.Contains(t, out, "y_block_size = 5")
	assert.Contains(t, out, "openmp")

	// Flags win over the environment.
	out, _, err = execute(rewriteCmd("text", env), dir, "-k", "heat", "-c", cfg, "--blockshape", "4", "--openmp=false")
	require.NoError(t, err)
	assert.Contains(t, out, "x_block_size = 4")
	assert.Contains(t, out, "y_block_size = 4")
	assert.NotContains(t, out, "openmp")
}

func TestRewrite_OutputFile(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)
	outFile := filepath.Join(t.TempDir(), "heat.json")

	out, _, err := execute(rewriteCmd("text", nil), dir, "-k", "heat", "-c", cfg, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote rewritten program to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{"denormals", "blocking", "simd", "elemental"}, doc["applied"])
}

func TestRewrite_VerboseLogsPasses(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	cmd := newRewriteCommand(&RootOptions{Format: "text", Verbose: true}, nil)
	out, errOut, err := execute(cmd, dir, "-k", "heat", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, errOut, `level=DEBUG msg="kernel loaded" kernel=heat`)
	assert.Contains(t, errOut, "level=INFO")
	assert.Contains(t, errOut, "pass applied")
	assert.NotContains(t, out, "kernel loaded")
}

func TestRewrite_QuietByDefault(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	cmd := newRewriteCommand(&RootOptions{Format: "json"}, nil)
	_, errOut, err := execute(cmd, dir, "-k", "heat", "-c", cfg)
	require.NoError(t, err)
	assert.NotContains(t, errOut, "level=DEBUG")
	assert.NotContains(t, errOut, "level=INFO")
}

func TestRewrite_Errors(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"missing path", []string{"/nonexistent/kernels"}, ExitCommandError, "E005"},
		{"ambiguous kernel", []string{dir, "-c", cfg}, ExitCommandError, "E008"},
		{"unknown kernel", []string{dir, "-k", "wave", "-c", cfg}, ExitCommandError, "E008"},
		{"bad blockshape", []string{dir, "-k", "heat", "-c", cfg, "--blockshape", "0"}, ExitCommandError, "BAD_BLOCKSHAPE"},
		{"unknown mode", []string{dir, "-k", "heat", "-c", cfg, "--mode", "eager"}, ExitCommandError, "UNKNOWN_MODE"},
		{"custom without passes", []string{dir, "-k", "heat", "-c", cfg, "--mode", "custom"}, ExitCommandError, "NO_PASSES"},
		{"unknown pass", []string{dir, "-k", "heat", "-c", cfg, "--mode", "custom", "--passes", "fission,unroll"}, ExitCommandError, "UNKNOWN_PASS"},
		{"missing config", []string{dir, "-k", "heat", "-c", filepath.Join(t.TempDir(), "none.yaml")}, ExitCommandError, "failed to read config file"},
		{"bad platform", []string{dir, "-k", "heat", "-c", writeConfig(t, "platform:\n  simd: mmx\n")}, ExitCommandError, "BAD_PLATFORM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(rewriteCmd("text", nil), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, out+err.Error(), tt.want)
		})
	}
}

func TestRewrite_BadFlagEnv(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)
	cfg := writeConfig(t, fixedPlatform)

	for _, name := range []string{"LOOPSMITH_OPENMP", "LOOPSMITH_BLOCKINNER"} {
		t.Run(name, func(t *testing.T) {
			out, _, err := execute(rewriteCmd("json", map[string]string{name: "maybe"}), dir, "-k", "heat", "-c", cfg)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "BAD_FLAG", resp.Error.Code)
		})
	}
}

func TestRewrite_InvalidKernel(t *testing.T) {
	dir := writeKernels(t, badNestCUE)

	out, _, err := execute(rewriteCmd("text", nil), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E207")
}

func TestRewrite_JSONError(t *testing.T) {
	dir := writeKernels(t, stencilsCUE)

	out, _, err := execute(rewriteCmd("json", nil), dir, "-k", "heat", "--blockshape", "x=big")
	require.Error(t, err)

	resp := decodeData(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_BLOCKSHAPE", resp.Error.Code)
}
