package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/target"
)

func requireConfigCode(t *testing.T, err error, code rewriter.ConfigErrorCode) {
	t.Helper()
	require.Error(t, err)
	var ce *rewriter.ConfigError
	require.True(t, errors.As(err, &ce), "want ConfigError, got %T: %v", err, err)
	assert.Equal(t, code, ce.Code)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, rewriter.DefaultThresholds(), cfg.Thresholds)
	assert.False(t, cfg.Params.OpenMP)
	assert.True(t, cfg.Params.BlockShape.IsZero())
	require.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
openmp: true
blockinner: true
blockshape:
  x: 16
  y: 4
passes: [fission, split]
thresholds:
  collapse_cores: 16
  fission_group_size: 3
platform:
  simd: avx512f
  cores: 24
  compiler: intel
`))
	require.NoError(t, err)

	assert.True(t, cfg.Params.OpenMP)
	assert.True(t, cfg.Params.BlockInner)
	assert.Equal(t, map[string]int{"x": 16, "y": 4}, cfg.Params.BlockShape.ByDim)
	assert.Equal(t, []string{"fission", "split"}, cfg.Params.Passes)
	assert.Equal(t, 16, cfg.Thresholds.CollapseCores)
	assert.Equal(t, 3, cfg.Thresholds.FissionGroupSize)
	assert.Equal(t, rewriter.DefaultFissionMinStatements, cfg.Thresholds.FissionMinStatements)
	assert.Equal(t, Platform{SIMD: "avx512f", Cores: 24, Compiler: "intel"}, cfg.Platform)
}

func TestParseBlockShapeForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want rewriter.BlockShape
	}{
		{"scalar", "blockshape: 8", rewriter.BlockShape{All: 8}},
		{"list", "blockshape: [8, 4]", rewriter.BlockShape{Sizes: []int{8, 4}}},
		{"map", "blockshape: {z: 2}", rewriter.BlockShape{ByDim: map[string]int{"z": 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Params.BlockShape)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code rewriter.ConfigErrorCode
	}{
		{"passes not a list", "passes: fission", rewriter.ErrCodeBadPasses},
		{"negative block size", "blockshape: -2", rewriter.ErrCodeBadBlockShape},
		{"non-numeric block size", "blockshape: [8, wide]", rewriter.ErrCodeBadBlockShape},
		{"zero threshold", "thresholds: {collapse_cores: 0}", rewriter.ErrCodeBadThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			requireConfigCode(t, err, tt.code)
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("openmp: true\nvectorize: always\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
	assert.Contains(t, err.Error(), "vectorize")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loopsmith.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openmp: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Params.OpenMP)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParseBlockShape(t *testing.T) {
	tests := []struct {
		in   string
		want rewriter.BlockShape
	}{
		{"", rewriter.BlockShape{}},
		{"8", rewriter.BlockShape{All: 8}},
		{"8, 4", rewriter.BlockShape{Sizes: []int{8, 4}}},
		{"x=8,y=4", rewriter.BlockShape{ByDim: map[string]int{"x": 8, "y": 4}}},
		{" x = 2 ", rewriter.BlockShape{ByDim: map[string]int{"x": 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBlockShape(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"eight", "x=8,y", "x=big", "0", "8,-1"} {
		_, err := ParseBlockShape(bad)
		requireConfigCode(t, err, rewriter.ErrCodeBadBlockShape)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg, err := Default().ApplyEnv(MapSource{
		EnvOpenMP:        "true",
		EnvBlockInner:    "1",
		EnvBlockShape:    "x=4",
		EnvSIMD:          "avx2",
		EnvCores:         "12",
		EnvCompiler:      "clang",
		EnvCollapseCores: "8",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Params.OpenMP)
	assert.True(t, cfg.Params.BlockInner)
	assert.Equal(t, map[string]int{"x": 4}, cfg.Params.BlockShape.ByDim)
	assert.Equal(t, Platform{SIMD: "avx2", Cores: 12, Compiler: "clang"}, cfg.Platform)
	assert.Equal(t, 8, cfg.Thresholds.CollapseCores)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg, err := Parse([]byte("openmp: true\nplatform: {cores: 4}\n"))
	require.NoError(t, err)

	cfg, err = cfg.ApplyEnv(MapSource{EnvOpenMP: "false", EnvSIMD: "  "})
	require.NoError(t, err)
	assert.False(t, cfg.Params.OpenMP)
	assert.Equal(t, 4, cfg.Platform.Cores)
	assert.Empty(t, cfg.Platform.SIMD)
}

func TestApplyEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		src  MapSource
		code rewriter.ConfigErrorCode
	}{
		{"openmp", MapSource{EnvOpenMP: "maybe"}, rewriter.ErrCodeBadFlag},
		{"blockinner", MapSource{EnvBlockInner: "sometimes"}, rewriter.ErrCodeBadFlag},
		{"cores", MapSource{EnvCores: "0"}, rewriter.ErrCodeBadPlatform},
		{"blockshape", MapSource{EnvBlockShape: "x="}, rewriter.ErrCodeBadBlockShape},
		{"collapse", MapSource{EnvCollapseCores: "-1"}, rewriter.ErrCodeBadThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().ApplyEnv(tt.src)
			requireConfigCode(t, err, tt.code)
		})
	}
}

func TestEnvironmentLookupUnset(t *testing.T) {
	_, ok := Environment{}.Lookup("LOOPSMITH_TEST_UNSET_VARIABLE")
	assert.False(t, ok)
}

func TestBuildPlatform(t *testing.T) {
	cfg := Default()
	cfg.Platform = Platform{SIMD: "avx512f", Cores: 32, Compiler: "intel"}

	p, err := cfg.BuildPlatform()
	require.NoError(t, err)
	assert.Equal(t, "avx512f", p.SIMDFlag())
	assert.Equal(t, 32, p.PhysicalCores())
	assert.Equal(t, "intel", p.Compiler)
}

func TestBuildPlatformDetectsHost(t *testing.T) {
	p, err := Default().BuildPlatform()
	require.NoError(t, err)
	assert.Equal(t, DefaultCompiler, p.Compiler)
	assert.GreaterOrEqual(t, p.PhysicalCores(), 1)
	assert.NotEmpty(t, p.SIMDFlag())
}

func TestBuildPlatformErrors(t *testing.T) {
	cfg := Default()
	cfg.Platform.SIMD = "mmx"
	_, err := cfg.BuildPlatform()
	requireConfigCode(t, err, rewriter.ErrCodeBadPlatform)

	cfg = Default()
	cfg.Platform.Compiler = "tcc"
	_, err = cfg.BuildPlatform()
	requireConfigCode(t, err, rewriter.ErrCodeBadPlatform)
}

func TestPlainDistinguishesPlatforms(t *testing.T) {
	cfg := Default()
	a, err := target.NewStatic("avx2", 8, "gnu")
	require.NoError(t, err)
	b, err := target.NewStatic("avx2", 16, "gnu")
	require.NoError(t, err)

	pa, err := ir.ParamsHash(cfg.Plain(a))
	require.NoError(t, err)
	pb, err := ir.ParamsHash(cfg.Plain(b))
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb)

	again, err := ir.ParamsHash(cfg.Plain(a))
	require.NoError(t, err)
	assert.Equal(t, pa, again)
}
