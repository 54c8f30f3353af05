package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Check failure (scenario mismatches, plan resolution failures)
	ExitCommandError = 2 // Command error (bad paths, invalid manifests, bad flags)
)

// ExitError carries a specific exit code out of a command's RunE.
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

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// CLIResponse is the standard JSON response envelope.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" | "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the JSON error payload.
type CLIError struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter handles JSON vs text output for CLI commands.
// Verbose logs go to ErrWriter so they never corrupt JSON on stdout.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// VerboseLog writes a log line to ErrWriter when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose && f.ErrWriter != nil {
		fmt.Fprintf(f.ErrWriter, format+"\n", args...)
	}
}

// Success emits a success envelope in json mode. Text-mode rendering is
// command-specific, so callers handle it themselves.
func (f *OutputFormatter) Success(data any) error {
	return f.writeJSON(CLIResponse{Status: "ok", Data: data})
}

// Error emits an error payload in the active format.
func (f *OutputFormatter) Error(message string, details any) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "error", Error: &CLIError{Message: message, Details: details}})
	}
	_, err := fmt.Fprintf(f.Writer, "error: %s\n", message)
	return err
}

func (f *OutputFormatter) writeJSON(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
