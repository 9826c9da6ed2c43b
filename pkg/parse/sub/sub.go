// Package sub implements the grammar for EPICS substitution files, both the
// pattern form
//
//	file "template.db" { pattern {a, b} {v1, v2} }
//
// and the legacy form with named macros per row
//
//	global {g=1}
//	file "template.db" { {a=v1, b=v2} }
package sub

import (
	"errors"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// File is the parse tree of a substitution file.
type File struct {
	Source    parse.Source
	Templates []*Template
}

// Template is one file "..." { ... } group.
type Template struct {
	diag.Ranging
	// Name is the template database file to expand.
	Name string
	// Rows are the macro bindings, one per expansion, in document order.
	// Global definitions active at the row are already folded in.
	Rows []*Row
}

// Row is one expansion of the template: an ordered macro binding.
type Row struct {
	diag.Ranging
	Macros [][2]string
}

// Context returns the load context of the row.
func (r *Row) Context(src parse.Source) diag.LoadContext {
	return diag.LineContext(src.Name, src.Code, r.From)
}

var (
	errShouldBeTemplate = errors.New("should be a template file name")
	errShouldBeLBrace   = errors.New("should be '{'")
	errShouldBeRBrace   = errors.New("should be '}'")
	errShouldBeRow      = errors.New("should be a '{...}' row or 'pattern'")
	errShouldBeMacro    = errors.New("should be a macro name")
	errRowTooLong       = errors.New("row has more values than the pattern has names")
)

// Parse parses substitution file text.
func Parse(src parse.Source) (*File, error) {
	ps := parse.NewParser(src)
	f := &File{Source: src}
	// Globals apply to every row that follows them.
	var globals [][2]string
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			break
		}
		keyword, r := ps.Bareword()
		switch keyword {
		case "global":
			defs, ok := parseNamedRow(ps)
			if ok {
				globals = mergePairs(globals, defs)
			}
		case "file":
			if t := parseTemplate(ps, r, globals); t != nil {
				f.Templates = append(f.Templates, t)
			}
		case "":
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.RestOfLine()
		default:
			ps.Errorp(r, errors.New("unknown declaration "+keyword))
			ps.RestOfLine()
		}
	}
	return f, ps.AssembleError()
}

func parseTemplate(ps *parse.Parser, r diag.Ranging, globals [][2]string) *Template {
	ps.SkipSpaces()
	name, _, ok := ps.Token()
	if !ok {
		ps.Error(errShouldBeTemplate)
		return nil
	}
	t := &Template{Ranging: r, Name: name}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		ps.Error(errShouldBeLBrace)
		return t
	}
	ps.Next()

	// Local globals and the active pattern names.
	locals := globals
	var pattern []string
	for {
		ps.SkipSpaces()
		begin := ps.Pos
		switch ps.Peek() {
		case '}':
			ps.Next()
			t.To = ps.Pos
			return t
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return t
		case '{':
			if pattern == nil {
				// Legacy named row: {a=1, b=2}.
				defs, ok := parseNamedRow(ps)
				if !ok {
					continue
				}
				t.Rows = append(t.Rows, &Row{
					Ranging: diag.Ranging{From: begin, To: ps.Pos},
					Macros:  mergePairs(locals, defs),
				})
			} else {
				values, ok := parseValueRow(ps)
				if !ok {
					continue
				}
				if len(values) > len(pattern) {
					ps.Error(errRowTooLong)
					values = values[:len(pattern)]
				}
				defs := make([][2]string, len(values))
				for i, v := range values {
					defs[i] = [2]string{pattern[i], v}
				}
				t.Rows = append(t.Rows, &Row{
					Ranging: diag.Ranging{From: begin, To: ps.Pos},
					Macros:  mergePairs(locals, defs),
				})
			}
		default:
			keyword, kr := ps.Bareword()
			switch keyword {
			case "pattern":
				names, ok := parseValueRow(ps)
				if ok {
					pattern = names
				}
			case "global":
				defs, ok := parseNamedRow(ps)
				if ok {
					locals = mergePairs(locals, defs)
				}
			default:
				ps.Errorp(kr, errShouldBeRow)
				ps.RestOfLine()
			}
		}
	}
}

// parseNamedRow parses {a=1, b="2"}.
func parseNamedRow(ps *parse.Parser) ([][2]string, bool) {
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		ps.Error(errShouldBeLBrace)
		return nil, false
	}
	ps.Next()
	var defs [][2]string
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return defs, true
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return defs, false
		case ',':
			ps.Next()
			continue
		}
		name, _, ok := ps.Token()
		if !ok {
			ps.Error(errShouldBeMacro)
			return defs, false
		}
		ps.SkipSpaces()
		value := ""
		if ps.Peek() == '=' {
			ps.Next()
			ps.SkipSpaces()
			value, _, _ = ps.Token()
		}
		defs = append(defs, [2]string{name, value})
	}
}

// parseValueRow parses {v1, v2, ...}.
func parseValueRow(ps *parse.Parser) ([]string, bool) {
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		ps.Error(errShouldBeLBrace)
		return nil, false
	}
	ps.Next()
	var values []string
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return values, true
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return values, false
		case ',':
			ps.Next()
			continue
		}
		v, _, ok := ps.Token()
		if !ok {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		values = append(values, v)
	}
}

// mergePairs overlays defs onto base, keeping base order for names defined
// in both.
func mergePairs(base, defs [][2]string) [][2]string {
	out := make([][2]string, 0, len(base)+len(defs))
	seen := make(map[string]int)
	for _, p := range base {
		seen[p[0]] = len(out)
		out = append(out, p)
	}
	for _, p := range defs {
		if i, ok := seen[p[0]]; ok {
			out[i] = p
		} else {
			seen[p[0]] = len(out)
			out = append(out, p)
		}
	}
	return out
}
