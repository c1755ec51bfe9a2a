package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loopsmith/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Kernel   string // optional - filter to one kernel
	Prune    bool   // delete the kernel's runs instead of listing them
}

// HistoryEntry is one journaled run.
type HistoryEntry struct {
	Seq             int64    `json:"seq"`
	ID              string   `json:"id"`
	Kernel          string   `json:"kernel"`
	Mode            string   `json:"mode"`
	KernelHash      string   `json:"kernel_hash"`
	ParamsHash      string   `json:"params_hash"`
	Applied         []string `json:"applied"`
	RewriterVersion string   `json:"rewriter_version"`
}

// HistoryResult holds the listed runs.
type HistoryResult struct {
	Runs   []HistoryEntry `json:"runs"`
	Pruned int64          `json:"pruned,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled rewrites",
		Long: `List the rewrite runs journaled in a database, oldest first.

Each run is keyed by the kernel's content hash, the pipeline mode and
the hash of the parameters, thresholds and platform it ran with.

Examples:
  loopsmith history --db runs.db
  loopsmith history --db runs.db --kernel heat --format json
  loopsmith history --db runs.db --kernel heat --prune`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVarP(&opts.Kernel, "kernel", "k", "", "filter to one kernel")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete the runs of --kernel")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Prune && opts.Kernel == "" {
		return NewExitError(ExitCommandError, "--prune requires --kernel")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var result HistoryResult
	if opts.Prune {
		if result.Pruned, err = st.DeleteRuns(ctx, opts.Kernel); err != nil {
			return WrapExitError(ExitCommandError, "failed to prune runs", err)
		}
	}

	runs, err := st.ListRuns(ctx, opts.Kernel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	result.Runs = make([]HistoryEntry, len(runs))
	for i, r := range runs {
		result.Runs[i] = HistoryEntry{
			Seq:             r.Seq,
			ID:              r.ID,
			Kernel:          r.Kernel,
			Mode:            r.Mode,
			KernelHash:      r.KernelHash,
			ParamsHash:      r.ParamsHash,
			Applied:         r.Applied,
			RewriterVersion: r.RewriterVersion,
		}
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	return outputHistoryText(cmd, opts, result)
}

func outputHistoryText(cmd *cobra.Command, opts *HistoryOptions, result HistoryResult) error {
	w := cmd.OutOrStdout()

	if opts.Prune {
		fmt.Fprintf(w, "Pruned %d run(s) of %s\n", result.Pruned, opts.Kernel)
	}
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}

	for _, r := range result.Runs {
		applied := "none"
		if len(r.Applied) > 0 {
			applied = strings.Join(r.Applied, ",")
		}
		fmt.Fprintf(w, "%4d  %s  %-12s %-11s %s  [%s]\n",
			r.Seq, r.ID, r.Kernel, r.Mode, shortHash(r.KernelHash), applied)
	}
	fmt.Fprintf(w, "\n%d run(s)\n", len(result.Runs))
	return nil
}

// shortHash trims a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
