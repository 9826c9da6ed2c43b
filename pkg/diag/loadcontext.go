package diag

import (
	"fmt"
	"strings"
)

// LoadContext identifies a single line of a loaded source: a file name (or
// other source designation such as a startup script) and a 1-based line
// number. It is immutable; derive new values instead of mutating.
type LoadContext struct {
	Source string
	Line   int
}

// NewLoadContext returns a LoadContext for the given source and line.
func NewLoadContext(source string, line int) LoadContext {
	return LoadContext{Source: source, Line: line}
}

// String renders the canonical "<source>:<line>" form used in diagnostics.
func (c LoadContext) String() string {
	return fmt.Sprintf("%s:%d", c.Source, c.Line)
}

// FullLoadContext is the include stack active when an entity was defined,
// outermost source first. The zero value is an empty stack.
type FullLoadContext []LoadContext

// With returns a new FullLoadContext with c appended. The receiver is not
// modified; the result shares no backing storage with it.
func (f FullLoadContext) With(c LoadContext) FullLoadContext {
	out := make(FullLoadContext, len(f)+1)
	copy(out, f)
	out[len(f)] = c
	return out
}

// Extend returns the receiver with all contexts of other appended, skipping
// entries already present at the end of the receiver.
func (f FullLoadContext) Extend(other FullLoadContext) FullLoadContext {
	out := f
	for _, c := range other {
		if n := len(out); n > 0 && out[n-1] == c {
			continue
		}
		out = append(out[:len(out):len(out)], c)
	}
	return out
}

// Last returns the innermost LoadContext, or a zero value for an empty stack.
func (f FullLoadContext) Last() LoadContext {
	if len(f) == 0 {
		return LoadContext{}
	}
	return f[len(f)-1]
}

// String renders the stack outermost first, separated by " -> ".
func (f FullLoadContext) String() string {
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.String()
	}
	return strings.Join(parts, " -> ")
}

// LineContext converts a byte offset within source code to a LoadContext
// with the 1-based line number of that offset.
func LineContext(name, code string, offset int) LoadContext {
	if offset > len(code) {
		offset = len(code)
	}
	return LoadContext{Source: name, Line: strings.Count(code[:offset], "\n") + 1}
}
