package graph

import (
	"sort"

	"github.com/ioctools/recwalk/pkg/epics"
)

// FieldPair is one directed view of a link edge: the field on this record,
// the field on the other record, and the link modifiers.
type FieldPair struct {
	Field      string
	OtherField string
	Modifiers  []string
}

// Relations is the bidirectional PV dependency graph:
// record name -> record name -> field pairs. By construction an entry
// relations[a][b] always has a mirrored relations[b][a] entry with the
// field roles swapped.
type Relations map[string]map[string][]FieldPair

// add inserts the mirrored pair of adjacency entries for one link.
func (r Relations) add(a, b, fieldA, fieldB string, modifiers []string) {
	insert := func(x, y, fx, fy string) {
		m, ok := r[x]
		if !ok {
			m = make(map[string][]FieldPair)
			r[x] = m
		}
		pair := FieldPair{Field: fx, OtherField: fy, Modifiers: modifiers}
		for _, p := range m[y] {
			if p.Field == fx && p.OtherField == fy && equalModifiers(p.Modifiers, modifiers) {
				return
			}
		}
		m[y] = append(m[y], pair)
	}
	insert(a, b, fieldA, fieldB)
	insert(b, a, fieldB, fieldA)
}

func equalModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Build computes the link graph for all record instances of database. When
// dbd is non-nil its record types give the authoritative link-field types;
// otherwise field names are classified heuristically. A link to a record
// that is not (yet) in the database still produces an edge, so that merging
// another IOC's graph can reconcile it later.
func Build(database, dbd *epics.Database) Relations {
	relations := make(Relations)
	for _, name := range sortedRecordNames(database) {
		rec := database.Records[name]
		var rt *epics.RecordType
		if dbd != nil {
			rt = dbd.RecordTypes[rec.RecordType]
		}
		for _, fieldName := range sortedFieldNames(rec) {
			field := rec.Fields[fieldName]
			dtype := field.Dtype
			if dtype == "" {
				if def := rt.FieldByName(fieldName); def != nil {
					dtype = def.Type
				}
			}
			isLink, forward := linkKind(fieldName, dtype)
			if !isLink {
				continue
			}
			link, ok := ParseLink(field.Value)
			if !ok {
				continue
			}
			target := database.CanonicalName(link.Record)
			targetField := link.Field
			if targetField == "" {
				if forward {
					targetField = "PROC"
				} else {
					targetField = "VAL"
				}
			}
			// Unknown targets get a placeholder field so the edge exists
			// either way; it is reconciled if the record appears later.
			if targetRec, ok := database.Records[target]; ok {
				if _, ok := targetRec.Fields[targetField]; !ok {
					targetRec.SetField(&epics.RecordField{
						Name:    targetField,
						Dtype:   "unknown",
						Context: targetRec.Context,
					})
				}
			}
			relations.add(rec.Name, target, fieldName, targetField, link.Modifiers)
		}
	}
	return relations
}

// Combine merges independently built graphs into dest, folding alias names
// onto canonical record names using the aliases map. It returns dest.
func Combine(dest Relations, aliases map[string]string, others ...Relations) Relations {
	resolve := func(name string) string {
		for i := 0; i < 16; i++ {
			canonical, ok := aliases[name]
			if !ok || canonical == name {
				break
			}
			name = canonical
		}
		return name
	}
	for _, other := range others {
		for a, edges := range other {
			for b, pairs := range edges {
				ra, rb := resolve(a), resolve(b)
				for _, p := range pairs {
					// Each source graph carries both mirrored entries; add
					// only the canonical direction to avoid re-mirroring.
					if a < b || (a == b && p.Field <= p.OtherField) {
						dest.add(ra, rb, p.Field, p.OtherField, p.Modifiers)
					}
				}
			}
		}
	}
	return dest
}

func sortedRecordNames(database *epics.Database) []string {
	names := make([]string, 0, len(database.Records))
	for name := range database.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedFieldNames(rec *epics.RecordInstance) []string {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
