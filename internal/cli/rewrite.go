package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loopsmith/internal/compiler"
	"github.com/roach88/loopsmith/internal/config"
	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/store"
)

// RewriteOptions holds flags for the rewrite command.
type RewriteOptions struct {
	*RootOptions
	Kernel     string // kernel name, required when the package holds several
	Mode       string // pipeline
	Passes     string // custom pipeline, comma separated
	OpenMP     bool
	BlockInner bool
	BlockShape string // "8", "8,4" or "x=8,y=4"
	Config     string // YAML params file
	Database   string // run journal; empty disables caching
	Output     string // output file path

	env config.Source
}

// RewriteResult is the outcome of one rewrite.
type RewriteResult struct {
	Kernel    string          `json:"kernel"`
	Mode      string          `json:"mode"`
	RunID     string          `json:"run_id,omitempty"`
	Cached    bool            `json:"cached"`
	Applied   []string        `json:"applied"`
	Arguments json.RawMessage `json:"arguments"`
	Output    json.RawMessage `json:"output"`

	dump string
}

// argument is the part of a journaled runtime parameter shown in text.
type argument struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Heuristic bool   `json:"heuristic"`
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	return newRewriteCommand(rootOpts, config.Environment{})
}

// newRewriteCommand reads LOOPSMITH_* overrides from env.
func newRewriteCommand(rootOpts *RootOptions, env config.Source) *cobra.Command {
	opts := &RewriteOptions{RootOptions: rootOpts, env: env}

	cmd := &cobra.Command{
		Use:   "rewrite <kernel-path>",
		Short: "Rewrite a kernel's loop nests",
		Long: `Compile a CUE kernel, validate it, and run a rewrite pipeline.

Parameters come from the built-in defaults, then --config, then
LOOPSMITH_* environment variables, then flags. With --db the run is
journaled; a run with the same kernel, mode and parameters is served
from the journal.

Examples:
  loopsmith rewrite ./kernels --kernel heat
  loopsmith rewrite ./kernels --kernel heat --mode speculative --openmp
  loopsmith rewrite ./kernels --mode custom --passes fission,split
  loopsmith rewrite ./kernels --blockshape x=16,y=8 --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kernel, "kernel", "k", "", "kernel to rewrite")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", string(rewriter.ModeBaseline), "pipeline (baseline|speculative|custom)")
	cmd.Flags().StringVar(&opts.Passes, "passes", "", "custom passes, comma separated (fission,padding,split)")
	cmd.Flags().BoolVar(&opts.OpenMP, "openmp", false, "decorate parallel loops with OpenMP pragmas")
	cmd.Flags().BoolVar(&opts.BlockInner, "blockinner", false, "allow blocking innermost loops")
	cmd.Flags().StringVar(&opts.BlockShape, "blockshape", "", "block sizes: 8 | 8,4 | x=8,y=4")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "YAML parameter file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite run journal")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the rewritten program as JSON to this file")

	return cmd
}

func runRewrite(opts *RewriteOptions, kernelPath string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	kernel, err := loadKernel(kernelPath, opts.Kernel)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Debug("kernel loaded", "kernel", kernel.Name, "path", kernelPath)

	if errs := compiler.Validate(kernel); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	platform, err := cfg.BuildPlatform()
	if err != nil {
		return outputConfigError(formatter, err)
	}
	rw, err := rewriter.New(rewriter.Mode(opts.Mode), platform,
		rewriter.WithParams(cfg.Params),
		rewriter.WithThresholds(cfg.Thresholds),
		rewriter.WithLogger(logger),
	)
	if err != nil {
		return outputConfigError(formatter, err)
	}

	key, err := store.NewKey(kernel.Nodes, opts.Mode, cfg.Plain(platform))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash kernel", err)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		cached, ok, err := st.LookupRun(ctx, key)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query journal", err)
		}
		if ok {
			logger.Debug("journal hit", "run", cached.ID, "kernel", kernel.Name)
			return finishRewrite(formatter, opts, fromRun(cached))
		}
	}

	state := rw.Run(kernel.Nodes)
	result, err := newRewriteResult(kernel.Name, opts.Mode, state)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode rewrite", err)
	}

	if st != nil {
		stored, _, err := st.RecordRun(ctx, store.Run{
			Kernel:    kernel.Name,
			Key:       key,
			Applied:   result.Applied,
			Arguments: result.Arguments,
			Output:    result.Output,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to journal run", err)
		}
		result.RunID = stored.ID
	}

	return finishRewrite(formatter, opts, result)
}

// loadKernel compiles the kernels at path and selects one.
func loadKernel(path, name string) (*compiler.Kernel, error) {
	result, errs := LoadKernels(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return SelectKernel(result.Kernels, name)
}

// resolveConfig layers the parameter file, the environment and the flags
// the user set.
func resolveConfig(opts *RewriteOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.env != nil {
		if cfg, err = cfg.ApplyEnv(opts.env); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("openmp") {
		cfg.Params.OpenMP = opts.OpenMP
	}
	if flags.Changed("blockinner") {
		cfg.Params.BlockInner = opts.BlockInner
	}
	if flags.Changed("blockshape") {
		shape, err := config.ParseBlockShape(opts.BlockShape)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Params.BlockShape = shape
	}
	if flags.Changed("passes") {
		cfg.Params.Passes = rewriter.ParsePassList(opts.Passes)
	}
	return cfg, cfg.Validate()
}

// newRewriteResult encodes a fresh rewrite.
func newRewriteResult(kernel, mode string, state rewriter.State) (*RewriteResult, error) {
	doc := state.Document()
	output, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	args, err := ir.MarshalCanonical(doc["arguments"])
	if err != nil {
		return nil, err
	}
	return &RewriteResult{
		Kernel:    kernel,
		Mode:      mode,
		Applied:   append([]string{}, state.AppliedNames()...),
		Arguments: args,
		Output:    output,
		dump:      ir.Dump(state.Nodes) + ir.DumpCallables(state.ElementalFunctions),
	}, nil
}

// fromRun rebuilds a result from a journaled run.
func fromRun(r store.Run) *RewriteResult {
	return &RewriteResult{
		Kernel:    r.Kernel,
		Mode:      r.Mode,
		RunID:     r.ID,
		Cached:    true,
		Applied:   r.Applied,
		Arguments: r.Arguments,
		Output:    r.Output,
	}
}

func finishRewrite(formatter *OutputFormatter, opts *RewriteOptions, result *RewriteResult) error {
	if opts.Output != "" {
		if err := writeOutputFile(result.Output, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	return formatter.SuccessRun(result, RunInfo{ID: result.RunID, Cached: result.Cached}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Rewrote %s (%s)\n", result.Kernel, result.Mode)
		applied := "none"
		if len(result.Applied) > 0 {
			applied = strings.Join(result.Applied, ", ")
		}
		fmt.Fprintf(w, "Applied: %s\n", applied)

		var args []argument
		if err := json.Unmarshal(result.Arguments, &args); err == nil && len(args) > 0 {
			fmt.Fprintln(w, "Arguments:")
			for _, a := range args {
				suffix := ""
				if a.Heuristic {
					suffix = " (heuristic)"
				}
				fmt.Fprintf(w, "  %s = %d%s\n", a.Name, a.Size, suffix)
			}
		}
		if result.dump != "" {
			fmt.Fprintln(w)
			fmt.Fprint(w, result.dump)
		}
		if opts.Output != "" {
			fmt.Fprintf(w, "Wrote rewritten program to %s\n", opts.Output)
		}
	})
}

// writeOutputFile writes the state document indented for reading.
func writeOutputFile(output json.RawMessage, filename string) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, output, "", "  "); err != nil {
		return fmt.Errorf("indenting output: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// outputLoadError reports a kernel that could not be loaded or selected.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
}

// outputConfigError reports a rejected configuration.
func outputConfigError(formatter *OutputFormatter, err error) error {
	code := ErrCodeConfig
	var cfgErr *rewriter.ConfigError
	if errors.As(err, &cfgErr) {
		code = string(cfgErr.Code)
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}
