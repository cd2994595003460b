package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/config"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a store write or sync failed
	ExitCommandError = 2 // bad arguments, unreachable backend, invalid config
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeInvalidArgs = "E002"
	ErrCodeConfig      = "E003"
	ErrCodeBackend     = "E004" // store or broadcast unreachable
	ErrCodeNotFound    = "E005" // slot or row not found
	ErrCodeWriteFailed = "E006"
	ErrCodeRateLimited = "E007" // server asked us to back off
)

// ExitError carries the process exit code for a failed command. Kind, when
// set, fixes the JSON error code.
type ExitError struct {
	Code    int
	Kind    string
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

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// backendError reports a store or channel that could not be reached.
func backendError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Kind: ErrCodeBackend, Message: message, Err: err}
}

// GetExitCode returns the code of the outermost ExitError in err's chain,
// or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for JSON error output.
func ErrorCode(err error) string {
	if _, ok := board.IsRateLimited(err); ok {
		return ErrCodeRateLimited
	}
	var (
		cfgErr  *config.ValidationError
		exitErr *ExitError
	)
	switch {
	case board.IsNotFound(err):
		return ErrCodeNotFound
	case errors.As(err, &cfgErr):
		return ErrCodeConfig
	case !errors.As(err, &exitErr):
		return ErrCodeGeneric
	case exitErr.Kind != "":
		return exitErr.Kind
	case exitErr.Code == ExitCommandError:
		return ErrCodeInvalidArgs
	}
	return ErrCodeWriteFailed
}

// Response is the envelope for every JSON result.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error half of Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
	// ErrWriter receives diagnostics so they never mix with JSON output.
	// Defaults to Writer.
	ErrWriter io.Writer
	Verbose   bool
}

// Success writes data. Text output prints data with its default format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Details appear in text output only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
