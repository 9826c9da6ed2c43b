// Package macro implements EPICS-style macro expansion, the $(NAME) and
// ${NAME} substitutions used throughout IOC startup scripts, database text
// and substitution files.
package macro

import (
	"os"
	"strings"
)

// Context holds an ordered set of macro definitions and controls how
// references are expanded.
type Context struct {
	names  []string
	values map[string]string

	// UseEnviron makes expansion fall back to the process environment for
	// names with no explicit definition.
	UseEnviron bool
	// Strict leaves undefined references in place as literals instead of
	// expanding them to the empty string.
	Strict bool
	// Annotate appends ",undefined" or ",recursive" inside surviving
	// placeholders, for debugging expansion problems.
	Annotate bool
}

// New returns an empty Context.
func New() *Context {
	return &Context{values: make(map[string]string)}
}

// NewPairs returns a Context populated from a comma-separated definition
// string such as "P=IOC:1,R=temp".
func NewPairs(pairs string) *Context {
	c := New()
	c.DefinePairs(pairs)
	return c
}

// Define sets the value of a macro. Redefinition keeps the original position
// in the definition order.
func (c *Context) Define(name, value string) {
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

// DefinePairs defines macros from a comma-separated "A=1,B=2" string.
// Values may be single- or double-quoted; quotes are stripped. Items without
// an equals sign are ignored.
func (c *Context) DefinePairs(pairs string) {
	for _, item := range splitTopLevel(pairs, ',') {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		c.Define(strings.TrimSpace(name), unquote(strings.TrimSpace(value)))
	}
}

// Get returns the value of a macro and whether it is defined. The process
// environment is consulted when UseEnviron is set.
func (c *Context) Get(name string) (string, bool) {
	if v, ok := c.values[name]; ok {
		return v, true
	}
	if c.UseEnviron {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
	}
	return "", false
}

// Names returns the macro names in definition order.
func (c *Context) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Definitions returns name=value pairs in definition order.
func (c *Context) Definitions() map[string]string {
	out := make(map[string]string, len(c.values))
	for name, value := range c.values {
		out[name] = value
	}
	return out
}

// Scoped runs f with the given definitions overlaid on the context. The
// previous definitions are restored when f returns, including when f panics.
func (c *Context) Scoped(overrides map[string]string, f func()) {
	type saved struct {
		name    string
		value   string
		existed bool
	}
	savedDefs := make([]saved, 0, len(overrides))
	savedNames := len(c.names)
	for name, value := range overrides {
		old, existed := c.values[name]
		savedDefs = append(savedDefs, saved{name, old, existed})
		c.Define(name, value)
	}
	defer func() {
		for _, s := range savedDefs {
			if s.existed {
				c.values[s.name] = s.value
			} else {
				delete(c.values, s.name)
			}
		}
		c.names = c.names[:savedNames]
	}()
	f()
}

// Expand expands all macro references in text. Undefined references expand
// to the empty string, or are left as literals when Strict is set; circular
// references never loop. See the Annotate field for the diagnostic forms.
func (c *Context) Expand(text string) string {
	return c.expand(text, make(map[string]bool))
}

func (c *Context) expand(text string, busy map[string]bool) string {
	var sb strings.Builder
	for i := 0; i < len(text); {
		if text[i] != '$' || i+1 >= len(text) {
			sb.WriteByte(text[i])
			i++
			continue
		}
		var closer byte
		switch text[i+1] {
		case '(':
			closer = ')'
		case '{':
			closer = '}'
		default:
			sb.WriteByte(text[i])
			i++
			continue
		}
		inner, next, ok := matchReference(text, i+1, closer)
		if !ok {
			sb.WriteString(text[i:])
			break
		}
		sb.WriteString(c.expandReference(inner, busy))
		i = next
	}
	return sb.String()
}

// matchReference scans from the opening bracket at open to the matching
// closer, returning the inner text and the position just past the closer.
func matchReference(text string, open int, closer byte) (string, int, bool) {
	opener := text[open]
	depth := 1
	for i := open + 1; i < len(text); i++ {
		switch text[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[open+1 : i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// expandReference expands the inner text of one $(...) reference. The inner
// text is the name, optionally followed by a "=default" clause and by
// comma-separated scoped definitions: $(NAME=DEFAULT,ARG=VALUE,...).
func (c *Context) expandReference(inner string, busy map[string]bool) string {
	// Nested references in the name or arguments expand first.
	inner = c.expand(inner, busy)

	items := splitTopLevel(inner, ',')
	nameSpec := items[0]
	name, def, hasDefault := strings.Cut(nameSpec, "=")

	args := make(map[string]string)
	for _, item := range items[1:] {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(k)] = unquote(v)
	}

	if busy[name] {
		return c.placeholder(name, "recursive")
	}

	value, found := args[name]
	if !found {
		value, found = c.Get(name)
	}
	if found {
		busy[name] = true
		defer delete(busy, name)
		if len(args) == 0 {
			return c.expand(value, busy)
		}
		scoped := c.overlay(args)
		return scoped.expand(value, busy)
	}
	if hasDefault {
		return def
	}
	return c.placeholder(name, "undefined")
}

func (c *Context) placeholder(name, problem string) string {
	if c.Annotate {
		return "$(" + name + "," + problem + ")"
	}
	if c.Strict || problem == "recursive" {
		return "$(" + name + ")"
	}
	return ""
}

// overlay returns a copy of the context with extra definitions applied.
func (c *Context) overlay(defs map[string]string) *Context {
	out := &Context{
		names:      c.names,
		values:     make(map[string]string, len(c.values)+len(defs)),
		UseEnviron: c.UseEnviron,
		Strict:     c.Strict,
		Annotate:   c.Annotate,
	}
	for name, value := range c.values {
		out.values[name] = value
	}
	for name, value := range defs {
		out.values[name] = value
	}
	return out
}

// splitTopLevel splits s on sep, ignoring separators inside parentheses,
// braces and quotes.
func splitTopLevel(s string, sep byte) []string {
	var items []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '(' || ch == '{':
			depth++
		case ch == ')' || ch == '}':
			depth--
		case ch == sep && depth == 0:
			items = append(items, s[start:i])
			start = i + 1
		}
	}
	return append(items, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
