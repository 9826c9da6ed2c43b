package epics

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ioctools/recwalk/pkg/diag"
)

// PVAFieldReference is a pseudo-field of a PVA group, pointing back at the
// (record, field) pair that contributes the member, plus the remaining
// "+key" annotations from the Q:group node.
type PVAFieldReference struct {
	// Name is the member path inside the group structure.
	Name string
	// RecordName and FieldName identify the contributing channel. FieldName
	// comes from the "+channel" annotation and may be empty for structural
	// members.
	RecordName string
	FieldName  string
	Metadata   map[string]string
	Context    diag.FullLoadContext
}

// PVAGroup is a pseudo-record aggregated from info(Q:group, ...) nodes
// scattered across one or more V3 records. Group names are unique across
// all contributing records.
type PVAGroup struct {
	Name    string
	Fields  map[string]*PVAFieldReference
	Context diag.FullLoadContext
}

// UpdateFrom merges members of another definition of the same group.
func (g *PVAGroup) UpdateFrom(other *PVAGroup) {
	for name, ref := range other.Fields {
		g.Fields[name] = ref
	}
	g.Context = g.Context.Extend(other.Context)
}

// BuildPVAGroups scans all record instances for info(Q:group, ...) nodes
// and aggregates them into PVA group pseudo-records on db. This is a
// build-after-parse step: it can only run once the instances exist.
func BuildPVAGroups(db *Database, lint *LintResult) {
	for _, recName := range sortedKeys(db.Records) {
		rec := db.Records[recName]
		raw, ok := rec.Info["Q:group"]
		if !ok {
			continue
		}
		value, err := parseRelaxedJSON(raw)
		if err != nil {
			lint.Errorf(rec.Context, "invalid-q-group",
				"record %q: cannot parse Q:group node: %v", rec.Name, err)
			continue
		}
		groups, ok := value.(map[string]any)
		if !ok {
			lint.Errorf(rec.Context, "invalid-q-group",
				"record %q: Q:group node is not an object", rec.Name)
			continue
		}
		for _, groupName := range sortedAnyKeys(groups) {
			group, ok := db.PVAGroups[groupName]
			if !ok {
				group = &PVAGroup{
					Name:    groupName,
					Fields:  make(map[string]*PVAFieldReference),
					Context: rec.Context,
				}
				db.PVAGroups[groupName] = group
			} else {
				group.Context = group.Context.Extend(rec.Context)
			}
			members, ok := groups[groupName].(map[string]any)
			if !ok {
				lint.Warnf(rec.Context, "invalid-q-group",
					"record %q: group %q is not an object", rec.Name, groupName)
				continue
			}
			addGroupMembers(group, rec, members, lint)
		}
	}
}

func addGroupMembers(group *PVAGroup, rec *RecordInstance, members map[string]any, lint *LintResult) {
	for _, member := range sortedAnyKeys(members) {
		ref := &PVAFieldReference{
			Name:       member,
			RecordName: rec.Name,
			Metadata:   make(map[string]string),
			Context:    rec.Context,
		}
		switch v := members[member].(type) {
		case string:
			// A bare string member is shorthand for {+channel: v}.
			ref.FieldName = v
		case map[string]any:
			for _, key := range sortedAnyKeys(v) {
				text, ok := v[key].(string)
				if !ok {
					text = fmt.Sprint(v[key])
				}
				if key == "+channel" {
					ref.FieldName = text
				} else {
					ref.Metadata[key] = text
				}
			}
		default:
			lint.Warnf(rec.Context, "invalid-q-group",
				"record %q: group %q member %q has unsupported shape",
				rec.Name, group.Name, member)
			continue
		}
		if existing, ok := group.Fields[member]; ok && existing.RecordName != rec.Name {
			lint.Warnf(rec.Context, "pva-group-conflict",
				"group %q member %q contributed by both %q and %q",
				group.Name, member, existing.RecordName, rec.Name)
		}
		group.Fields[member] = ref
	}
}

func sortedAnyKeys(m map[string]any) []string {
	return sortedKeys(m)
}

// parseRelaxedJSON parses the JSON-like syntax accepted inside info nodes:
// objects, arrays and strings, where both keys and scalar values may be
// unquoted barewords (including "+channel" style keys).
func parseRelaxedJSON(s string) (any, error) {
	p := &relaxedParser{src: s}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing text at offset %d", p.pos)
	}
	return v, nil
}

type relaxedParser struct {
	src string
	pos int
}

var errUnexpectedEnd = errors.New("unexpected end of input")

func (p *relaxedParser) skipSpaces() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *relaxedParser) value() (any, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, errUnexpectedEnd
	}
	switch p.src[p.pos] {
	case '{':
		return p.object()
	case '[':
		return p.array()
	case '"':
		return p.quoted()
	default:
		return p.bareword()
	}
}

func (p *relaxedParser) object() (map[string]any, error) {
	p.pos++ // consume '{'
	out := make(map[string]any)
	for {
		p.skipSpaces()
		if p.pos >= len(p.src) {
			return nil, errUnexpectedEnd
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return out, nil
		}
		key, err := p.value()
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string at offset %d", p.pos)
		}
		p.skipSpaces()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", p.pos)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[keyStr] = v
		p.skipSpaces()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *relaxedParser) array() ([]any, error) {
	p.pos++ // consume '['
	var out []any
	for {
		p.skipSpaces()
		if p.pos >= len(p.src) {
			return nil, errUnexpectedEnd
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpaces()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *relaxedParser) quoted() (string, error) {
	p.pos++ // consume '"'
	var sb strings.Builder
	for p.pos < len(p.src) {
		switch ch := p.src[p.pos]; ch {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos < len(p.src) {
				sb.WriteByte(p.src[p.pos])
				p.pos++
			}
		default:
			sb.WriteByte(ch)
			p.pos++
		}
	}
	return "", errUnexpectedEnd
}

func (p *relaxedParser) bareword() (string, error) {
	begin := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("{}[]:,\" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == begin {
		return "", fmt.Errorf("unexpected character %q at offset %d", p.src[begin], begin)
	}
	return p.src[begin:p.pos], nil
}
