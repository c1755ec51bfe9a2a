package config

import (
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/roach88/loopsmith/internal/rewriter"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenMP        = "LOOPSMITH_OPENMP"
	EnvBlockInner    = "LOOPSMITH_BLOCKINNER"
	EnvBlockShape    = "LOOPSMITH_BLOCKSHAPE"
	EnvSIMD          = "LOOPSMITH_SIMD"
	EnvCores         = "LOOPSMITH_CORES"
	EnvCompiler      = "LOOPSMITH_COMPILER"
	EnvCollapseCores = "LOOPSMITH_COLLAPSE_CORES"
)

// Source looks up configuration variables.
type Source interface {
	Lookup(name string) (string, bool)
}

// Environment reads the process environment.
type Environment struct{}

// Lookup implements Source.
func (Environment) Lookup(name string) (string, bool) {
	if !env.Has(name) {
		return "", false
	}
	return env.Str(name), true
}

// MapSource is a fixed set of variables.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ApplyEnv overrides c with the LOOPSMITH_* variables present in src.
func (c Config) ApplyEnv(src Source) (Config, error) {
	if v, ok := lookup(src, EnvOpenMP); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, rewriter.NewConfigError(rewriter.ErrCodeBadFlag, EnvOpenMP, "%v", err)
		}
		c.Params.OpenMP = b
	}
	if v, ok := lookup(src, EnvBlockInner); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, rewriter.NewConfigError(rewriter.ErrCodeBadFlag, EnvBlockInner, "%v", err)
		}
		c.Params.BlockInner = b
	}
	if v, ok := lookup(src, EnvBlockShape); ok {
		shape, err := ParseBlockShape(v)
		if err != nil {
			return c, err
		}
		c.Params.BlockShape = shape
	}
	if v, ok := lookup(src, EnvSIMD); ok {
		c.Platform.SIMD = v
	}
	if v, ok := lookup(src, EnvCompiler); ok {
		c.Platform.Compiler = v
	}
	if v, ok := lookup(src, EnvCores); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c, rewriter.NewConfigError(rewriter.ErrCodeBadPlatform, EnvCores, "core count must be a positive integer, got %q", v)
		}
		c.Platform.Cores = n
	}
	if v, ok := lookup(src, EnvCollapseCores); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, rewriter.NewConfigError(rewriter.ErrCodeBadThreshold, EnvCollapseCores, "%v", err)
		}
		c.Thresholds.CollapseCores = n
	}
	return c, c.Validate()
}

// lookup treats blank values as unset.
func lookup(src Source, name string) (string, bool) {
	v, ok := src.Lookup(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
