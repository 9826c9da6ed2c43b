// Package autosave implements the grammar for autosave restore (.sav)
// files: one "<record>.<field> value" entry per line, array values in
// "@array@ { ... }" form, and the trailing <END> marker that distinguishes
// a complete snapshot from a truncated one.
package autosave

import (
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// RestoreValue is one saved field value.
type RestoreValue struct {
	Record  string
	Field   string
	Value   string
	IsArray bool
	// Elements holds the array elements when IsArray is set.
	Elements []string
	Context  diag.LoadContext
}

// RestoreFile is the parsed form of a .sav file.
type RestoreFile struct {
	Source parse.Source
	// Values maps record name to field name to the saved value.
	Values map[string]map[string]*RestoreValue
	// Disconnected lists channels reported as not connected in save-time
	// error markers.
	Disconnected []string
	// Complete reports whether the <END> marker was present.
	Complete bool
}

// Parse parses autosave restore file text.
func Parse(src parse.Source) (*RestoreFile, error) {
	ps := parse.NewParser(src)
	f := &RestoreFile{
		Source: src,
		Values: make(map[string]map[string]*RestoreValue),
	}
	for {
		ps.SkipInlineSpaces()
		switch ps.Peek() {
		case parse.EOF:
			return f, ps.AssembleError()
		case '\n':
			ps.Next()
			continue
		case '#':
			ps.RestOfLine()
			continue
		case '!':
			// Error marker: "! <n> channel(s) not connected" followed by
			// the channel names, one per comment line, in some dialects
			// inline. Keep the raw text.
			ps.Next()
			f.Disconnected = append(f.Disconnected, ps.RestOfLine())
			continue
		}
		begin := ps.Pos
		pv, _ := ps.Bareword()
		if pv == "<END>" {
			f.Complete = true
			ps.RestOfLine()
			continue
		}
		if pv == "" {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.RestOfLine()
			continue
		}
		record, field := splitPV(pv)
		value := &RestoreValue{
			Record:  record,
			Field:   field,
			Context: ps.LoadContext(begin),
		}
		ps.SkipInlineSpaces()
		if ps.HasPrefix("@array@") {
			for range "@array@" {
				ps.Next()
			}
			value.IsArray = true
			value.Elements = parseArray(ps)
			value.Value = strings.Join(value.Elements, " ")
		} else {
			value.Value = ps.RestOfLine()
		}
		fields, ok := f.Values[record]
		if !ok {
			fields = make(map[string]*RestoreValue)
			f.Values[record] = fields
		}
		fields[field] = value
	}
}

// splitPV splits "record.field" at the last dot; a missing field part
// defaults to VAL.
func splitPV(pv string) (string, string) {
	if i := strings.LastIndexByte(pv, '.'); i >= 0 {
		return pv[:i], pv[i+1:]
	}
	return pv, "VAL"
}

// parseArray parses the "{ "el" "el" }" form following @array@.
func parseArray(ps *parse.Parser) []string {
	ps.SkipInlineSpaces()
	if ps.Peek() != '{' {
		ps.Errorf("should be '{' after @array@")
		return nil
	}
	ps.Next()
	var elements []string
	for {
		ps.SkipInlineSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return elements
		case parse.EOF, '\n':
			ps.Errorf("array value not terminated")
			return elements
		}
		el, _, ok := ps.Token()
		if !ok {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		elements = append(elements, el)
	}
}
