package iocsh

import (
	"fmt"

	"github.com/ioctools/recwalk/pkg/diag"
)

// CommandError records a failure raised while executing one script line.
// Failures are contained to the line; interpretation always continues.
type CommandError struct {
	// Class is a short machine-readable failure class, such as
	// "file-not-found" or "already-initialized". Panics use class "panic".
	Class   string
	Message string
	// Trace is set for panics only and holds the recovered stack.
	Trace string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// classedError carries an explicit failure class from command
// implementations to the line result.
type classedError struct {
	class string
	err   error
}

func (e *classedError) Error() string { return e.err.Error() }
func (e *classedError) Unwrap() error { return e.err }

func errClass(class, format string, args ...any) error {
	return &classedError{class: class, err: fmt.Errorf(format, args...)}
}

// LineResult is the outcome of interpreting one script line.
type LineResult struct {
	// Line is the raw line before macro expansion.
	Line string
	// Context traces where the line came from: the startup script, plus
	// every redirected file on the way, innermost last.
	Context diag.FullLoadContext

	// Command and Args are the parsed invocation after macro expansion.
	// Command is empty for blank and comment lines.
	Command string
	Args    []string

	// Notes are human-readable outputs produced by the command.
	Notes []string
	// Metadata holds structured command outputs, including metadata
	// contributed by lifecycle hooks at iocInit.
	Metadata map[string]string

	// Unhandled marks commands with no registered implementation. The
	// invocation is still recorded.
	Unhandled bool

	// Error is set when the command failed; nil means success.
	Error *CommandError
}

func (r *LineResult) notef(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

func (r *LineResult) setMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}
