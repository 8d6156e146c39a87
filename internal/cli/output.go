package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/tourdesk/internal/dataerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (record not found, bad credentials, backend error, etc.)
	ExitCommandError = 2 // Command error (invalid configuration, unknown adapter, bad arguments)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set once the error has been written for the user.
	Reported bool
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for warnings and text errors (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status   string    `json:"status"`             // "ok" or "error"
	Data     any       `json:"data,omitempty"`     // success payload
	Error    *CLIError `json:"error,omitempty"`    // error details
	Warnings []string  `json:"warnings,omitempty"` // non-fatal problems, e.g. clauses that match nothing
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // dataerr code: "NOT_FOUND", "AUTH", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result. JSON output encodes data; text
// output is produced by render.
func (f *OutputFormatter) Success(data any, render func(w io.Writer) error) error {
	return f.SuccessWithWarnings(data, nil, render)
}

// SuccessWithWarnings is Success for results that carry warnings. Text
// output prints each warning on the error writer.
func (f *OutputFormatter) SuccessWithWarnings(data any, warnings []string, render func(w io.Writer) error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:   "ok",
			Data:     data,
			Warnings: warnings,
		})
	}

	for _, w := range warnings {
		fmt.Fprintf(f.GetErrWriter(), "warning: %s\n", w)
	}
	if render == nil {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	return render(f.Writer)
}

// Error outputs an error in the configured format.
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

	// Human-readable error
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return. CONFIG errors exit with ExitCommandError, every
// other failure with ExitFailure.
func (f *OutputFormatter) Fail(message string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return err
	}

	code := ExitFailure
	if dataerr.IsConfig(err) || (exitErr != nil && exitErr.Code == ExitCommandError) {
		code = ExitCommandError
	}

	var details any
	if de := asDataError(err); de != nil && (de.Table != "" || de.ID != "") {
		details = map[string]string{"table": de.Table, "id": de.ID}
	}
	_ = f.Error(errorCode(err), fmt.Sprintf("%s: %s", message, errorMessage(err)), details)

	return &ExitError{Code: code, Message: message, Err: err, Reported: true}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func asDataError(err error) *dataerr.Error {
	var de *dataerr.Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}

func errorCode(err error) string {
	if code := dataerr.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return "USAGE"
	}
	return "ERROR"
}

// errorMessage drops the leading code dataerr puts in front of its text,
// since the formatter prints the code separately.
func errorMessage(err error) string {
	msg := err.Error()
	if code := dataerr.CodeOf(err); code != "" {
		msg = strings.TrimPrefix(msg, string(code)+": ")
	}
	return msg
}
