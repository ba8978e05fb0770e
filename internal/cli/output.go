package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/mdrepo/internal/repository"
)

// Process exit codes. A repository refusal is a clean answer and exits 1;
// anything that kept mdrepo from asking the repository exits 2.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // authorization, quota, missing entry, integrity, invalid seed, failed scenario
	ExitCommandError = 2 // bad arguments, unreadable config or seed, store failure
)

// ExitError carries the process exit code out of a command's RunE.
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

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps the error returned by Execute to a process exit code.
// Errors cobra raises itself (unknown flags, wrong arity) carry no code
// and count as command errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitCommandError
	}
}

// fail reports a repository error under its repository code (AUTHORIZATION,
// QUOTA_EXCEEDED, ...) and picks the exit code from its class.
func fail(f *OutputFormatter, message string, err error) error {
	code := string(repository.CodeOf(err))
	if code == "" {
		code = ErrCodeGeneric
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)

	if repository.IsPolicyError(err) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// OutputFormatter writes command results as text or as a JSON envelope.
// In JSON mode errors share stdout with results so that scripts read one
// document; in text mode they go to ErrWriter.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every --format json invocation.
type CLIResponse struct {
	Status string    `json:"status"` // ok | error
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError holds either a repository code (ENTRY_MISSING) or a seed
// loader code (E005).
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data: the envelope in JSON mode, its String form otherwise.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints "Error [CODE]: message", with details only under --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a progress line under --verbose. It never touches a
// JSON document when ErrWriter is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
