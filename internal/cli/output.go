package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a kernel, scenario or rewrite was rejected
	ExitCommandError = 2 // the command could not run: paths, config, journal
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results on stdout as JSON envelopes or
// text. Diagnostics belong on the command logger, never here.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool // text errors include their details
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
	Cached bool      `json:"cached,omitempty"`
}

// CLIError is the error body of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // "E001", "BAD_BLOCKSHAPE", ...
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RunInfo identifies the journal entry behind a result.
type RunInfo struct {
	ID     string
	Cached bool // replayed from the journal instead of rewritten
}

// Success renders data. Text output prints data with fmt.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessRun(data, RunInfo{}, func(w io.Writer) {
		fmt.Fprintln(w, data)
	})
}

// SuccessRun renders data with its journal entry. Text output calls text
// and then reports whether the run was replayed or newly journaled.
func (f *OutputFormatter) SuccessRun(data any, run RunInfo, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  run.ID,
			Cached: run.Cached,
		})
	}

	text(f.Writer)
	switch {
	case run.ID == "":
	case run.Cached:
		fmt.Fprintf(f.Writer, "\nReplayed from journal run %s\n", run.ID)
	default:
		fmt.Fprintf(f.Writer, "\nJournaled as run %s\n", run.ID)
	}
	return nil
}

// Error renders an error body. It never fails the command by itself; the
// caller still returns an ExitError.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}
