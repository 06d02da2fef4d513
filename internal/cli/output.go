package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess = 0
	// ExitFailure: the run ended FAILED or a protocol is invalid.
	ExitFailure = 1
	// ExitCommandError: labrun itself could not do its job (config,
	// hardware, journal, unreadable protocol).
	ExitCommandError = 2
)

// Error codes reported in CLIError. Protocol load failures report their
// own P00x code instead.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeConfig   = "E002"
	ErrCodeJournal  = "E003"
	ErrCodeHardware = "E004"
	ErrCodeRun      = "E005"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope for every command's output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" | "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command output as text or as a CLIResponse.
type OutputFormatter struct {
	Format string
	Writer io.Writer
	// ErrWriter receives verbose diagnostics so they never mix with JSON
	// on Writer. Defaults to Writer.
	ErrWriter io.Writer
	Verbose   bool
}

// IsJSON reports whether output is JSON.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == "json"
}

// Success writes data. Text output prints data with %v.
func (f *OutputFormatter) Success(data any) error {
	if !f.IsJSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an error report. details are shown in text mode only with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under code and returns the ExitError for it.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exitCode, message, err)
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
