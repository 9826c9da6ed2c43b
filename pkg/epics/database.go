package epics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
)

// Database is the aggregate produced by parsing one database or database
// definition file. The interpreter merges successive Databases into its
// running state.
type Database struct {
	RecordTypes map[string]*RecordType
	Records     map[string]*RecordInstance
	PVAGroups   map[string]*PVAGroup
	Menus       map[string]*Menu
	Devices     []*Device
	Drivers     []NamedDecl
	LinkTypes   []NamedDecl
	Registrars  []NamedDecl
	Functions   []NamedDecl
	Variables   []*Variable
	Breaktables map[string]*Breaktable

	// Aliases maps alias name to canonical record name, from both inline
	// alias("...") bodies and standalone alias(record, alias) declarations.
	Aliases map[string]string

	// Paths and AddPaths are the path/addpath directives seen, in order.
	Paths    []string
	AddPaths []string

	// Deferred holds record(*, "name") bodies whose target instance was not
	// yet known at parse time.
	Deferred []*RecordInstance
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{
		RecordTypes: make(map[string]*RecordType),
		Records:     make(map[string]*RecordInstance),
		PVAGroups:   make(map[string]*PVAGroup),
		Menus:       make(map[string]*Menu),
		Breaktables: make(map[string]*Breaktable),
		Aliases:     make(map[string]string),
	}
}

// AddRecord adds a record instance. A repeated name merges field-by-field
// into the existing instance; a "*" record type defers resolution until the
// target instance is seen (possibly in a later file).
func (db *Database) AddRecord(r *RecordInstance) {
	if existing, ok := db.Records[r.Name]; ok {
		existing.UpdateFrom(r)
		return
	}
	if r.RecordType == "*" {
		db.Deferred = append(db.Deferred, r)
		return
	}
	db.Records[r.Name] = r
}

// AddAlias registers an alias for a record name. The owning instance's
// alias list is extended when the instance is known.
func (db *Database) AddAlias(record, alias string, ctx diag.FullLoadContext, lint *LintResult) {
	if canonical, ok := db.Aliases[alias]; ok && canonical != record {
		lint.Warnf(ctx, "duplicate-alias",
			"alias %q already points to %q, now %q", alias, canonical, record)
	}
	db.Aliases[alias] = record
	if inst, ok := db.Records[record]; ok {
		inst.AddAlias(alias)
	}
}

// ResolveDeferred folds deferred record(*, ...) bodies onto their target
// instances. Bodies whose target never appeared are reported to the linter
// and dropped.
func (db *Database) ResolveDeferred(lint *LintResult) {
	for _, r := range db.Deferred {
		if existing, ok := db.Records[r.Name]; ok {
			existing.UpdateFrom(r)
		} else {
			lint.Errorf(r.Context, "unresolved-record",
				"record(*, %q) never matched an instance", r.Name)
		}
	}
	db.Deferred = nil
}

// MergeFrom merges another Database into db. Record instances merge
// field-by-field; other declarations accumulate, with same-name record
// types, menus and breaktables replaced by the newer definition.
func (db *Database) MergeFrom(other *Database) {
	for _, name := range sortedKeys(other.RecordTypes) {
		db.RecordTypes[name] = other.RecordTypes[name]
	}
	for _, name := range sortedKeys(other.Records) {
		db.AddRecord(other.Records[name])
	}
	for _, name := range sortedKeys(other.PVAGroups) {
		if existing, ok := db.PVAGroups[name]; ok {
			existing.UpdateFrom(other.PVAGroups[name])
		} else {
			db.PVAGroups[name] = other.PVAGroups[name]
		}
	}
	for _, name := range sortedKeys(other.Menus) {
		db.Menus[name] = other.Menus[name]
	}
	db.Devices = append(db.Devices, other.Devices...)
	db.Drivers = append(db.Drivers, other.Drivers...)
	db.LinkTypes = append(db.LinkTypes, other.LinkTypes...)
	db.Registrars = append(db.Registrars, other.Registrars...)
	db.Functions = append(db.Functions, other.Functions...)
	db.Variables = append(db.Variables, other.Variables...)
	for _, name := range sortedKeys(other.Breaktables) {
		db.Breaktables[name] = other.Breaktables[name]
	}
	for alias, record := range other.Aliases {
		db.Aliases[alias] = record
		if inst, ok := db.Records[record]; ok {
			inst.AddAlias(alias)
		}
	}
	db.Paths = append(db.Paths, other.Paths...)
	db.AddPaths = append(db.AddPaths, other.AddPaths...)
	db.Deferred = append(db.Deferred, other.Deferred...)
}

// CanonicalName resolves an alias to its canonical record name; a name that
// is not an alias resolves to itself.
func (db *Database) CanonicalName(name string) string {
	seen := 0
	for {
		canonical, ok := db.Aliases[name]
		if !ok || canonical == name {
			return name
		}
		name = canonical
		// Alias chains are short; bail out on cycles.
		if seen++; seen > 16 {
			return name
		}
	}
}

// Lint cross-checks record instances against the record types of dbd
// (usually the loaded database definition, possibly db itself), resolving
// field dtypes in place. Unknown record types and fields are warnings;
// parsing always proceeds.
func (db *Database) Lint(dbd *Database) *LintResult {
	lint := &LintResult{}
	db.ResolveDeferred(lint)
	for _, name := range sortedKeys(db.Records) {
		rec := db.Records[name]
		var rt *RecordType
		if dbd != nil {
			rt = dbd.RecordTypes[rec.RecordType]
		}
		if rt == nil {
			lint.Warnf(rec.Context, "unknown-record-type",
				"record %q has unknown record type %q", rec.Name, rec.RecordType)
			continue
		}
		for _, fname := range sortedKeys(rec.Fields) {
			field := rec.Fields[fname]
			def := rt.FieldByName(fname)
			if def == nil {
				lint.Warnf(field.Context, "unknown-field",
					"record %q (%s) has no field %q", rec.Name, rec.RecordType, fname)
				continue
			}
			field.Dtype = def.Type
		}
	}
	return lint
}

// Render re-serializes the record instances (with their aliases and info
// nodes) as database text. Parsing the output yields an equal instance set.
func (db *Database) Render() string {
	var sb strings.Builder
	for _, name := range sortedKeys(db.Records) {
		rec := db.Records[name]
		fmt.Fprintf(&sb, "record(%s, %q) {\n", rec.RecordType, rec.Name)
		for _, alias := range rec.Aliases {
			fmt.Fprintf(&sb, "    alias(%q)\n", alias)
		}
		for _, fname := range sortedKeys(rec.Fields) {
			fmt.Fprintf(&sb, "    field(%s, %q)\n", fname, rec.Fields[fname].Value)
		}
		for _, key := range sortedKeys(rec.Info) {
			fmt.Fprintf(&sb, "    info(%s, %q)\n", key, rec.Info[key])
		}
		sb.WriteString("}\n\n")
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
