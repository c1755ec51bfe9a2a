package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/loopsmith/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Kernels []string                   `json:"kernels,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <kernel-path>",
		Short: "Validate kernels without rewriting",
		Long: `Compile CUE kernel descriptions and check their loop trees.

Reports every compile and IR error, not just the first: unknown
dimensions, rank mismatches, unbound indices, vectorizable loops
with nested loops, and so on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, kernelPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	// Collect every compile error rather than stopping at the first
	loadResult, loadErrors := LoadKernels(kernelPath, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	logger.Debug("kernel files found", "count", loadResult.FileCount, "path", kernelPath)

	validationErrors := validateAll(loadResult.Kernels, logger)

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			})
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, loadResult.Kernels)
}

// validateAll checks the loop trees of every compiled kernel. Fields are
// prefixed with the kernel name.
func validateAll(kernels []*compiler.Kernel, logger *slog.Logger) []compiler.ValidationError {
	var allErrors []compiler.ValidationError
	for _, k := range kernels {
		logger.Debug("validating kernel", "kernel", k.Name)
		for _, e := range compiler.Validate(k) {
			e.Field = k.Name + "." + e.Field
			allErrors = append(allErrors, e)
		}
	}
	return allErrors
}

func kernelNames(kernels []*compiler.Kernel) []string {
	names := make([]string, len(kernels))
	for i, k := range kernels {
		names[i] = k.Name
	}
	return names
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, kernels []*compiler.Kernel) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Kernels: kernelNames(kernels)}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All kernels valid (%d)\n", len(kernels))
	for _, k := range kernels {
		fmt.Fprintf(formatter.Writer, "  %s: %d dimension(s), %d function(s), %d nest(s)\n",
			k.Name, len(k.Dimensions), len(k.Functions), len(k.Nodes))
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
