package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (store unavailable, drain error, ...)
	ExitCommandError = 2 // Bad arguments or settings
)

// ExitError carries an exit code alongside an error.
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
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
	ErrWriter io.Writer // Verbose output; keeps JSON on Writer clean
	Verbose   bool
}

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EventView is the printable form of a cached record.
type EventView struct {
	Name       string         `json:"eventName"`
	Parameters map[string]any `json:"eventParameters"`
}

// EventsResult is the payload of inspect, drain and watch.
type EventsResult struct {
	Store  string      `json:"store"`
	Count  int         `json:"count"`
	Events []EventView `json:"events"`
}

// Success prints data. Text output uses fmt's default formatting unless
// data is an EventsResult.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}

	if res, ok := data.(EventsResult); ok {
		fmt.Fprintf(f.Writer, "%s: %d event(s)\n", res.Store, res.Count)
		for _, e := range res.Events {
			fmt.Fprintln(f.Writer, formatEvent(e))
		}
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints err and returns it wrapped with code.
func (f *OutputFormatter) Error(code int, message string, err error) error {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: fmt.Sprintf("%s: %v", message, err)})
	}
	return WrapExitError(code, message, err)
}

// VerboseLog writes to ErrWriter when verbose output is on.
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

func viewsOf(list event.List) []EventView {
	views := make([]EventView, 0, len(list))
	for _, r := range list {
		params := r.Parameters()
		if params == nil {
			params = map[string]any{}
		}
		views = append(views, EventView{Name: r.Name(), Parameters: params})
	}
	return views
}

func formatEvent(e EventView) string {
	var b strings.Builder
	b.WriteString(e.Name)
	for _, k := range slices.Sorted(maps.Keys(e.Parameters)) {
		fmt.Fprintf(&b, " %s=%v", k, e.Parameters[k])
	}
	return b.String()
}
