package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/loopsmith/internal/config"
	"github.com/roach88/loopsmith/internal/target"
)

// PlatformOptions holds flags for the platform command.
type PlatformOptions struct {
	*RootOptions
	Config   string
	SIMD     string
	Cores    int
	Compiler string

	env config.Source
}

// PlatformResult describes the resolved target.
type PlatformResult struct {
	DetectedSIMD string         `json:"detected_simd"`
	Compiler     string         `json:"compiler"`
	Capabilities map[string]any `json:"capabilities"`
	SIMDFlags    []string       `json:"simd_flags"`
	Compilers    []string       `json:"compilers"`
}

// NewPlatformCommand creates the platform command.
func NewPlatformCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlatformCommand(rootOpts, config.Environment{})
}

func newPlatformCommand(rootOpts *RootOptions, env config.Source) *cobra.Command {
	opts := &PlatformOptions{RootOptions: rootOpts, env: env}

	cmd := &cobra.Command{
		Use:   "platform",
		Short: "Show the target capabilities",
		Long: `Show the capabilities the rewriter would target: vector instruction
set, items per register for each dtype, core count and compiler
decorations.

Unset values are detected from the host. --config, LOOPSMITH_SIMD,
LOOPSMITH_CORES and LOOPSMITH_COMPILER override detection, and the
flags override those.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlatform(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "YAML parameter file")
	cmd.Flags().StringVar(&opts.SIMD, "simd", "", "instruction set (sse|avx|avx2|avx512f|neon)")
	cmd.Flags().IntVar(&opts.Cores, "cores", 0, "physical core count")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "", "compiler family (gnu|intel|clang)")

	return cmd
}

func runPlatform(opts *PlatformOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err == nil && opts.env != nil {
		cfg, err = cfg.ApplyEnv(opts.env)
	}
	if err != nil {
		return outputConfigError(formatter, err)
	}
	if opts.SIMD != "" {
		cfg.Platform.SIMD = opts.SIMD
	}
	if opts.Cores != 0 {
		cfg.Platform.Cores = opts.Cores
	}
	if opts.Compiler != "" {
		cfg.Platform.Compiler = opts.Compiler
	}

	p, err := cfg.BuildPlatform()
	if err != nil {
		return outputConfigError(formatter, err)
	}

	result := PlatformResult{
		DetectedSIMD: target.DetectSIMDFlag(),
		Compiler:     p.Compiler,
		Capabilities: target.Describe(p),
		SIMDFlags:    target.SIMDFlags(),
		Compilers:    target.Compilers(),
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "SIMD:      %s (host: %s)\n", p.SIMDFlag(), result.DetectedSIMD)
	fmt.Fprintf(w, "Cores:     %d\n", p.PhysicalCores())
	fmt.Fprintf(w, "Compiler:  %s\n", p.Compiler)

	if items, ok := result.Capabilities["simd_items"].(map[string]any); ok && len(items) > 0 {
		fmt.Fprintln(w, "Items per register:")
		for _, dt := range slices.Sorted(maps.Keys(items)) {
			fmt.Fprintf(w, "  %-8s %v\n", dt, items[dt])
		}
	}
	fmt.Fprintln(w, "Decorations:")
	for _, name := range []string{target.IgnoreDeps, target.NTStores, target.StoreFence} {
		d, ok := p.Decoration(name)
		if !ok {
			d = "(none)"
		}
		fmt.Fprintf(w, "  %-11s %s\n", name, d)
	}
	return nil
}
