package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loopsmith/internal/config"
	"github.com/roach88/loopsmith/internal/rewriter"
)

// Scenario defines a rewrite scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Kernel is the path of the CUE kernel file.
	// Relative paths are resolved against the scenario file's directory.
	Kernel string `yaml:"kernel"`

	// Select names the kernel to rewrite. If empty, the file must hold
	// exactly one kernel.
	Select string `yaml:"select,omitempty"`

	// Mode is the pipeline. Defaults to baseline.
	Mode string `yaml:"mode,omitempty"`

	// Config uses the params file format.
	Config yaml.Node `yaml:"config,omitempty"`

	// Env binds runtime sizes for coverage and equivalence checks.
	Env map[string]int `yaml:"env,omitempty"`

	// Golden compares the dump against testdata/golden/{name}.golden.
	Golden bool `yaml:"golden,omitempty"`

	// Assertions validate the rewritten state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the rewritten state.
type Assertion struct {
	// Type specifies the assertion type, see the package documentation.
	Type string `yaml:"type"`

	// Flags are optimization flags (applied, applied_contains,
	// not_applied).
	Flags []string `yaml:"flags,omitempty"`

	// Text is searched in the dump (dump_contains, dump_excludes).
	Text string `yaml:"text,omitempty"`

	// Node is the node kind to count (node_count).
	Node string `yaml:"node,omitempty"`

	// Count is the expected number (node_count, callables, arguments).
	Count *int `yaml:"count,omitempty"`

	// Names are the expected runtime parameter names (arguments).
	Names []string `yaml:"names,omitempty"`

	// Sizes are the expected runtime parameter values (arguments).
	Sizes map[string]int `yaml:"sizes,omitempty"`
}

// Assertion type constants.
const (
	AssertApplied         = "applied"
	AssertAppliedContains = "applied_contains"
	AssertNotApplied      = "not_applied"
	AssertArguments       = "arguments"
	AssertDumpContains    = "dump_contains"
	AssertDumpExcludes    = "dump_excludes"
	AssertNodeCount       = "node_count"
	AssertCallables       = "callables"
	AssertCoverage        = "coverage"
	AssertEquivalence     = "equivalence"
)

// Node kinds accepted by node_count.
var nodeKinds = []string{"block", "call", "expression", "fold", "iteration"}

// Harness defaults make results independent of the host.
const (
	defaultSIMD  = "avx2"
	defaultCores = 8
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Kernel != "" && !filepath.IsAbs(scenario.Kernel) {
		scenario.Kernel = filepath.Join(filepath.Dir(path), scenario.Kernel)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the YAML files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Configuration resolves the scenario's config block over the defaults.
func (s *Scenario) Configuration() (config.Config, error) {
	cfg := config.Default()
	if s.Config.Kind != 0 {
		data, err := yaml.Marshal(&s.Config)
		if err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
		if cfg, err = config.Parse(data); err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
	}
	if cfg.Platform.SIMD == "" {
		cfg.Platform.SIMD = defaultSIMD
	}
	if cfg.Platform.Cores == 0 {
		cfg.Platform.Cores = defaultCores
	}
	if cfg.Platform.Compiler == "" {
		cfg.Platform.Compiler = config.DefaultCompiler
	}
	return cfg, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Kernel == "" {
		return fmt.Errorf("kernel is required")
	}
	if _, err := os.Stat(s.Kernel); os.IsNotExist(err) {
		return fmt.Errorf("kernel file not found: %s", s.Kernel)
	}

	if s.Mode == "" {
		s.Mode = string(rewriter.ModeBaseline)
	}
	if !slices.Contains(rewriter.Modes(), rewriter.Mode(s.Mode)) {
		return fmt.Errorf("unknown mode %q (want one of %v)", s.Mode, rewriter.Modes())
	}

	if _, err := s.Configuration(); err != nil {
		return err
	}

	if len(s.Assertions) == 0 && !s.Golden {
		return fmt.Errorf("assertions list is required unless golden is set")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertApplied:
		if a.Flags == nil {
			return fmt.Errorf("assertions[%d]: flags is required for applied (use [] for none)", index)
		}
	case AssertAppliedContains, AssertNotApplied:
		if len(a.Flags) == 0 {
			return fmt.Errorf("assertions[%d]: flags is required for %s", index, a.Type)
		}
	case AssertArguments:
		if a.Count == nil && a.Names == nil && len(a.Sizes) == 0 {
			return fmt.Errorf("assertions[%d]: count, names or sizes is required for arguments", index)
		}
	case AssertDumpContains, AssertDumpExcludes:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertNodeCount:
		if !slices.Contains(nodeKinds, a.Node) {
			return fmt.Errorf("assertions[%d]: node must be one of %v for node_count", index, nodeKinds)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for node_count", index)
		}
	case AssertCallables:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for callables", index)
		}
	case AssertCoverage, AssertEquivalence:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
