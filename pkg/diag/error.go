package diag

import (
	"fmt"
	"strings"
)

// Error represents an error with a source context that can be shown.
type Error struct {
	Type    string
	Message string
	Context Context
}

// Error returns a plain text representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s",
		e.Type, e.Context.LoadContext(), e.Message)
}

// Range returns the range of the error.
func (e *Error) Range() Ranging {
	return e.Context.Range()
}

// Show shows the error, with the type and message on a header line followed
// by the source context.
func (e *Error) Show(indent string) string {
	header := fmt.Sprintf("%s: %s%s%s\n", title(e.Type),
		messageStart, e.Message, messageEnd)
	return header + e.Context.ShowCompact(indent+"  ")
}

var (
	messageStart = "\033[31;1m"
	messageEnd   = "\033[m"
)

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
