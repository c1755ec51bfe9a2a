// Package config loads rewriter options from a YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the file, LOOPSMITH_*
// environment variables, command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/target"
)

// Config is the resolved rewriter configuration.
type Config struct {
	Params     rewriter.Params
	Thresholds rewriter.Thresholds
	Platform   Platform
}

// Platform describes the target. Empty fields are detected from the host.
type Platform struct {
	SIMD     string `yaml:"simd"`
	Cores    int    `yaml:"cores"`
	Compiler string `yaml:"compiler"`
}

// DefaultCompiler is used when no compiler family is configured.
const DefaultCompiler = "gnu"

// Default returns the built-in configuration.
func Default() Config {
	return Config{Thresholds: rewriter.DefaultThresholds()}
}

// file mirrors the YAML layout. Pointers distinguish absent from zero.
type file struct {
	OpenMP     *bool       `yaml:"openmp"`
	BlockInner *bool       `yaml:"blockinner"`
	BlockShape *blockShape `yaml:"blockshape"`
	Passes     *passList   `yaml:"passes"`
	Thresholds *thresholds `yaml:"thresholds"`
	Platform   *Platform   `yaml:"platform"`
}

type thresholds struct {
	FissionMinStatements *int `yaml:"fission_min_statements"`
	FissionGroupSize     *int `yaml:"fission_group_size"`
	CollapseCores        *int `yaml:"collapse_cores"`
	ElementalMinOps      *int `yaml:"elemental_min_ops"`
}

// blockShape accepts a scalar (every dimension), a list (positional) or a
// map from dimension name to size.
type blockShape rewriter.BlockShape

func (b *blockShape) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n int
		if err := node.Decode(&n); err != nil {
			return rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "line %d: %v", node.Line, err)
		}
		if n < 1 {
			return rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "line %d: block size must be positive, got %d", node.Line, n)
		}
		*b = blockShape{All: n}
	case yaml.SequenceNode:
		var sizes []int
		if err := node.Decode(&sizes); err != nil {
			return rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "line %d: %v", node.Line, err)
		}
		*b = blockShape{Sizes: sizes}
	case yaml.MappingNode:
		var byDim map[string]int
		if err := node.Decode(&byDim); err != nil {
			return rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "line %d: %v", node.Line, err)
		}
		*b = blockShape{ByDim: byDim}
	default:
		return rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "line %d: expected a size, a list or a map", node.Line)
	}
	return nil
}

// passList must be a sequence of names.
type passList []string

func (p *passList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return rewriter.NewConfigError(rewriter.ErrCodeBadPasses, "passes", "line %d: passes must be a list of pass names", node.Line)
	}
	var names []string
	if err := node.Decode(&names); err != nil {
		return rewriter.NewConfigError(rewriter.ErrCodeBadPasses, "passes", "line %d: %v", node.Line, err)
	}
	*p = names
	return nil
}

// Load reads the file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		if rewriter.IsConfigError(err) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if f.OpenMP != nil {
		cfg.Params.OpenMP = *f.OpenMP
	}
	if f.BlockInner != nil {
		cfg.Params.BlockInner = *f.BlockInner
	}
	if f.BlockShape != nil {
		cfg.Params.BlockShape = rewriter.BlockShape(*f.BlockShape)
	}
	if f.Passes != nil {
		cfg.Params.Passes = []string(*f.Passes)
	}
	if t := f.Thresholds; t != nil {
		set := func(dst *int, src *int) {
			if src != nil {
				*dst = *src
			}
		}
		set(&cfg.Thresholds.FissionMinStatements, t.FissionMinStatements)
		set(&cfg.Thresholds.FissionGroupSize, t.FissionGroupSize)
		set(&cfg.Thresholds.CollapseCores, t.CollapseCores)
		set(&cfg.Thresholds.ElementalMinOps, t.ElementalMinOps)
	}
	if f.Platform != nil {
		cfg.Platform = *f.Platform
	}
	return cfg, cfg.Validate()
}

// Validate checks thresholds and block sizes before any rewriter is
// built.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.Params.BlockShape.Validate()
}

// ParseBlockShape parses the command-line and environment form of a
// block shape: "8" for every dimension, "8,4" positionally, or
// "x=8,y=4" by dimension name.
func ParseBlockShape(s string) (rewriter.BlockShape, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return rewriter.BlockShape{}, nil
	}
	parts := strings.Split(s, ",")
	if strings.Contains(s, "=") {
		byDim := make(map[string]int, len(parts))
		for _, p := range parts {
			name, value, ok := strings.Cut(p, "=")
			if !ok {
				return rewriter.BlockShape{}, rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "entry %q is not name=size", p)
			}
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return rewriter.BlockShape{}, rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "entry %q: %v", p, err)
			}
			byDim[strings.TrimSpace(name)] = n
		}
		shape := rewriter.BlockShape{ByDim: byDim}
		return shape, shape.Validate()
	}

	sizes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return rewriter.BlockShape{}, rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "entry %q: %v", p, err)
		}
		if n < 1 {
			return rewriter.BlockShape{}, rewriter.NewConfigError(rewriter.ErrCodeBadBlockShape, "blockshape", "block size must be positive, got %d", n)
		}
		sizes[i] = n
	}
	shape := rewriter.BlockShape{Sizes: sizes}
	if len(sizes) == 1 {
		shape = rewriter.BlockShape{All: sizes[0]}
	}
	return shape, shape.Validate()
}

// BuildPlatform resolves the target, detecting whatever the
// configuration leaves empty.
func (c Config) BuildPlatform() (*target.Static, error) {
	compiler := c.Platform.Compiler
	if compiler == "" {
		compiler = DefaultCompiler
	}
	host, err := target.Host(compiler)
	if err != nil {
		return nil, rewriter.NewConfigError(rewriter.ErrCodeBadPlatform, "platform.compiler", "%v", err)
	}
	flag, cores := host.Flag, host.Cores
	if c.Platform.SIMD != "" {
		flag = c.Platform.SIMD
	}
	if c.Platform.Cores != 0 {
		cores = c.Platform.Cores
	}
	p, err := target.NewStatic(flag, cores, compiler)
	if err != nil {
		return nil, rewriter.NewConfigError(rewriter.ErrCodeBadPlatform, "platform", "%v", err)
	}
	return p, nil
}

// Plain encodes everything that changes the rewrite output, for hashing
// and journaling. p is the resolved platform.
func (c Config) Plain(p *target.Static) map[string]any {
	return map[string]any{
		"params": c.Params.Plain(),
		"thresholds": map[string]any{
			"fission_min_statements": c.Thresholds.FissionMinStatements,
			"fission_group_size":     c.Thresholds.FissionGroupSize,
			"collapse_cores":         c.Thresholds.CollapseCores,
			"elemental_min_ops":      c.Thresholds.ElementalMinOps,
		},
		"platform": map[string]any{
			"simd":     p.Flag,
			"cores":    p.Cores,
			"compiler": p.Compiler,
		},
	}
}
