// Package graph builds the bidirectional PV dependency graph between record
// instances, following input, output and forward link fields.
package graph

import (
	"strconv"
	"strings"
)

// Link is a parsed record link value: the target it references and the link
// modifier flags that follow it.
type Link struct {
	// Record is the target record name; Field is the explicit ".FIELD"
	// part, empty when the value names only a record.
	Record string
	Field  string
	// Modifiers are the trailing flags, e.g. "CPP", "MS".
	Modifiers []string
}

// ParseLink parses a link field value. It reports false for values that do
// not reference a record: empty values, numeric constants, and hardware or
// instio addresses. A non-reference value is not an error.
func ParseLink(value string) (Link, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Link{}, false
	}
	switch value[0] {
	case '#', '@':
		// Hardware (#C0 S1 ...) and instio (@...) addresses.
		return Link{}, false
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		// Constant link.
		return Link{}, false
	}
	if value[0] == '[' || value[0] == '{' {
		// Constant array and JSON link forms.
		return Link{}, false
	}

	fields := strings.Fields(value)
	var link Link
	if len(fields) > 1 {
		link.Modifiers = fields[1:]
	}
	target := fields[0]
	// A trailing '$' requests long-string access; it is not part of the
	// field name.
	target = strings.TrimSuffix(target, "$")
	if i := strings.LastIndexByte(target, '.'); i >= 0 && isFieldName(target[i+1:]) {
		link.Record = target[:i]
		link.Field = target[i+1:]
	} else {
		link.Record = target
	}
	if link.Record == "" {
		return Link{}, false
	}
	return link, true
}

// isFieldName reports whether s looks like a field name (uppercase
// alphanumeric, as generated by the database tools).
func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// Link field classification, used when the record type definition is not
// available to give the authoritative DBF types.
var heuristicLinkFields = map[string]bool{
	"INP": true, "DOL": true, "SELL": true, "SDIS": true, "TSEL": true,
	"OUT": true, "FLNK": true,
}

// linkKind classifies a field as a link, given its resolved dtype if known
// and its name otherwise. forward reports a forward link.
func linkKind(name, dtype string) (isLink, forward bool) {
	switch dtype {
	case "DBF_INLINK", "DBF_OUTLINK":
		return true, false
	case "DBF_FWDLINK":
		return true, true
	case "":
	default:
		return false, false
	}
	// No dtype: fall back to conventional names.
	if name == "FLNK" {
		return true, true
	}
	if heuristicLinkFields[name] {
		return true, false
	}
	// INPA..INPL, OUTA.., LNK1..LNK9 and friends.
	for _, prefix := range []string{"INP", "OUT", "LNK"} {
		if strings.HasPrefix(name, prefix) && len(name) == len(prefix)+1 {
			return true, prefix == "LNK"
		}
	}
	return false, false
}
