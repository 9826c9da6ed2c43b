package epics

import (
	"fmt"

	"github.com/ioctools/recwalk/pkg/diag"
)

// LintMessage is a single linter finding. Name is a short machine-readable
// identifier; Message is the human-readable explanation.
type LintMessage struct {
	Name    string
	Message string
	Context diag.FullLoadContext
}

func (m LintMessage) String() string {
	return fmt.Sprintf("%s: %s (%s)", m.Name, m.Message, m.Context)
}

// LintResult accumulates linter findings. Errors make the result
// unsuccessful but never abort a walk; warnings are informational.
type LintResult struct {
	Errors   []LintMessage
	Warnings []LintMessage
}

// Success reports whether linting found no errors. Warnings do not affect
// success.
func (r *LintResult) Success() bool {
	return len(r.Errors) == 0
}

// Errorf records a lint error.
func (r *LintResult) Errorf(ctx diag.FullLoadContext, name, format string, args ...any) {
	r.Errors = append(r.Errors,
		LintMessage{Name: name, Message: fmt.Sprintf(format, args...), Context: ctx})
}

// Warnf records a lint warning.
func (r *LintResult) Warnf(ctx diag.FullLoadContext, name, format string, args ...any) {
	r.Warnings = append(r.Warnings,
		LintMessage{Name: name, Message: fmt.Sprintf(format, args...), Context: ctx})
}
