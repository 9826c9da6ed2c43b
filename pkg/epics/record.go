// Package epics defines the typed model of parsed EPICS database content:
// record types, record instances, fields, menus and the surrounding
// declarations, along with the linter that cross-checks instances against
// their record types.
package epics

import "github.com/ioctools/recwalk/pkg/diag"

// RecordField is one field of a record instance.
type RecordField struct {
	// Name is the field name, e.g. "INP".
	Name string
	// Dtype is the DBF type from the record type definition, e.g.
	// "DBF_INLINK". It is empty until cross-referenced with a loaded
	// database definition.
	Dtype string
	// Value is the field value text, after macro expansion.
	Value string
	// Context is the include stack where the field was set.
	Context diag.FullLoadContext
}

// FieldDefinition describes one field of a record type, from a database
// definition file.
type FieldDefinition struct {
	Name string
	// Type is the DBF type, e.g. "DBF_DOUBLE" or "DBF_INLINK".
	Type string
	// Attrs holds the body attributes (prompt, promptgroup, initial, menu,
	// special, ...) as written.
	Attrs   map[string]string
	Doc     string
	Context diag.FullLoadContext
}

// Menu returns the menu referenced by the field definition, if any.
func (d *FieldDefinition) Menu() string {
	return d.Attrs["menu"]
}

// Device is a device() support declaration from a database definition.
type Device struct {
	RecordType   string
	LinkType     string
	DsetName     string
	ChoiceString string
	Context      diag.FullLoadContext
}

// Variable is a variable() declaration from a database definition.
type Variable struct {
	Name    string
	Type    string
	Context diag.FullLoadContext
}

// NamedDecl is a declaration that only carries a name, such as registrar()
// and function().
type NamedDecl struct {
	Name    string
	Context diag.FullLoadContext
}

// Menu is a menu declaration, mapping choice identifiers to choice strings
// in declaration order.
type Menu struct {
	Name    string
	Choices [][2]string
	Doc     string
	Context diag.FullLoadContext
}

// Breaktable is a breakpoint table: a flat list of values.
type Breaktable struct {
	Name    string
	Values  []string
	Context diag.FullLoadContext
}

// RecordType is a record type definition (from a .dbd file).
type RecordType struct {
	Name    string
	Fields  map[string]*FieldDefinition
	Devices []*Device
	// Info holds info(K, V) nodes on the record type.
	Info map[string]string
	// CDefs holds the %-prefixed C declaration snippets in body order.
	CDefs   []string
	Doc     string
	Context diag.FullLoadContext
}

// FieldByName returns the definition of the named field, or nil.
func (t *RecordType) FieldByName(name string) *FieldDefinition {
	if t == nil {
		return nil
	}
	return t.Fields[name]
}

// Annotation is a piece of metadata attached to a record instance by a
// shell sub-handler, keyed by the handler's name.
type Annotation struct {
	// Handler is the name of the sub-handler that produced the annotation.
	Handler string
	// Kind distinguishes annotation flavors within one handler.
	Kind string
	// Data holds the annotation payload.
	Data map[string]string
}

// RecordInstance is a named record with concrete field values, or a
// synthesized PVA group pseudo-record.
type RecordInstance struct {
	Name       string
	RecordType string
	Fields     map[string]*RecordField
	Aliases    []string
	// Info holds info(K, V) nodes, with raw (unparsed) values.
	Info map[string]string
	// Owner identifies the IOC that loaded the record; empty until the
	// interpreter claims the database.
	Owner       string
	Annotations []Annotation
	IsPVA       bool
	Doc         string
	Context     diag.FullLoadContext
}

// NewRecordInstance returns an empty instance of the given type.
func NewRecordInstance(name, recordType string, ctx diag.FullLoadContext) *RecordInstance {
	return &RecordInstance{
		Name:       name,
		RecordType: recordType,
		Fields:     make(map[string]*RecordField),
		Info:       make(map[string]string),
		Context:    ctx,
	}
}

// SetField sets or overwrites a field value.
func (r *RecordInstance) SetField(f *RecordField) {
	r.Fields[f.Name] = f
}

// UpdateFrom merges another definition of the same record name into r:
// fields are merged (later definitions win per field), aliases and info
// nodes accumulate, and the context is extended. The instance itself is
// never replaced.
func (r *RecordInstance) UpdateFrom(other *RecordInstance) {
	if other.RecordType != "" && other.RecordType != "*" {
		r.RecordType = other.RecordType
	}
	for name, f := range other.Fields {
		r.Fields[name] = f
	}
	for _, alias := range other.Aliases {
		r.AddAlias(alias)
	}
	for k, v := range other.Info {
		r.Info[k] = v
	}
	if other.Doc != "" {
		r.Doc = other.Doc
	}
	r.Context = r.Context.Extend(other.Context)
}

// AddAlias registers an alias name for the record, ignoring duplicates.
func (r *RecordInstance) AddAlias(alias string) {
	for _, a := range r.Aliases {
		if a == alias {
			return
		}
	}
	r.Aliases = append(r.Aliases, alias)
}

// Annotate attaches handler metadata to the record.
func (r *RecordInstance) Annotate(a Annotation) {
	r.Annotations = append(r.Annotations, a)
}
