package epics

import (
	"strings"
	"testing"

	"github.com/ioctools/recwalk/pkg/diag"
)

func ctxAt(source string, line int) diag.FullLoadContext {
	return diag.FullLoadContext{{Source: source, Line: line}}
}

func newRec(name, recordType string) *RecordInstance {
	return NewRecordInstance(name, recordType, ctxAt("test.db", 1))
}

func TestAddRecordMergesDuplicates(t *testing.T) {
	db := NewDatabase()
	first := newRec("X:a", "ai")
	first.SetField(&RecordField{Name: "EGU", Value: "V"})
	db.AddRecord(first)

	second := newRec("X:a", "ai")
	second.SetField(&RecordField{Name: "EGU", Value: "mV"})
	second.SetField(&RecordField{Name: "PREC", Value: "3"})
	second.Context = ctxAt("other.db", 9)
	db.AddRecord(second)

	if len(db.Records) != 1 {
		t.Fatalf("records = %v", db.Records)
	}
	merged := db.Records["X:a"]
	if merged.Fields["EGU"].Value != "mV" {
		t.Errorf("later field value did not win: %q", merged.Fields["EGU"].Value)
	}
	if merged.Fields["PREC"].Value != "3" {
		t.Errorf("new field missing")
	}
	if len(merged.Context) != 2 {
		t.Errorf("contexts were not chained: %v", merged.Context)
	}
}

func TestDeferredFieldSetRecords(t *testing.T) {
	db := NewDatabase()

	// record("*", ...) before the target exists is deferred.
	patch := newRec("X:late", "*")
	patch.SetField(&RecordField{Name: "PREC", Value: "2"})
	db.AddRecord(patch)
	if len(db.Deferred) != 1 {
		t.Fatalf("deferred = %v", db.Deferred)
	}

	db.AddRecord(newRec("X:late", "ai"))
	lint := &LintResult{}
	db.ResolveDeferred(lint)
	if !lint.Success() {
		t.Fatalf("lint = %v", lint.Errors)
	}
	rec := db.Records["X:late"]
	if rec.RecordType != "ai" {
		t.Errorf("wildcard overwrote the record type: %q", rec.RecordType)
	}
	if rec.Fields["PREC"].Value != "2" {
		t.Errorf("deferred field not applied: %v", rec.Fields)
	}

	// A patch that never finds its record is a lint error.
	db.AddRecord(newRec("X:never", "*"))
	lint = &LintResult{}
	db.ResolveDeferred(lint)
	if lint.Success() {
		t.Errorf("unresolved wildcard record produced no error")
	}
}

func TestDuplicateAliasWarns(t *testing.T) {
	db := NewDatabase()
	lint := &LintResult{}
	db.AddAlias("X:a", "X:nick", ctxAt("a.db", 1), lint)
	db.AddAlias("X:b", "X:nick", ctxAt("b.db", 2), lint)
	if len(lint.Warnings) == 0 {
		t.Errorf("conflicting alias produced no warning")
	}
	if len(lint.Errors) != 0 {
		t.Errorf("alias conflict should not be fatal: %v", lint.Errors)
	}
}

func TestCanonicalName(t *testing.T) {
	db := NewDatabase()
	db.Aliases["X:nick"] = "X:mid"
	db.Aliases["X:mid"] = "X:real"
	if got := db.CanonicalName("X:nick"); got != "X:real" {
		t.Errorf("CanonicalName = %q, want X:real", got)
	}
	if got := db.CanonicalName("X:unknown"); got != "X:unknown" {
		t.Errorf("CanonicalName of unaliased name = %q", got)
	}
	// A cycle terminates.
	db.Aliases["X:loop"] = "X:loop2"
	db.Aliases["X:loop2"] = "X:loop"
	_ = db.CanonicalName("X:loop")
}

func TestLintAgainstDefinition(t *testing.T) {
	dbd := NewDatabase()
	dbd.RecordTypes["ai"] = &RecordType{
		Name: "ai",
		Fields: map[string]*FieldDefinition{
			"VAL": {Name: "VAL", Type: "DBF_DOUBLE"},
			"INP": {Name: "INP", Type: "DBF_INLINK"},
		},
	}

	db := NewDatabase()
	good := newRec("X:good", "ai")
	good.SetField(&RecordField{Name: "INP", Value: "X:other"})
	db.AddRecord(good)
	bad := newRec("X:badtype", "waveform")
	db.AddRecord(bad)
	badField := newRec("X:badfield", "ai")
	badField.SetField(&RecordField{Name: "NOPE", Value: "1"})
	db.AddRecord(badField)

	lint := db.Lint(dbd)
	var names []string
	for _, w := range lint.Warnings {
		names = append(names, w.Name)
	}
	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "unknown-record-type") {
		t.Errorf("missing unknown-record-type warning: %v", names)
	}
	if !strings.Contains(joined, "unknown-field") {
		t.Errorf("missing unknown-field warning: %v", names)
	}
	// Field types get resolved onto the instances.
	if got := good.Fields["INP"].Dtype; got != "DBF_INLINK" {
		t.Errorf("INP Dtype = %q", got)
	}
}

func TestMergeFromKeepsOwnersAndAliases(t *testing.T) {
	a := NewDatabase()
	recA := newRec("X:a", "ai")
	recA.Owner = "ioc1"
	a.AddRecord(recA)
	a.Aliases["X:alias"] = "X:a"

	b := NewDatabase()
	recB := newRec("X:b", "ai")
	recB.Owner = "ioc2"
	b.AddRecord(recB)

	a.MergeFrom(b)
	if len(a.Records) != 2 {
		t.Fatalf("records = %v", a.Records)
	}
	if a.Records["X:b"].Owner != "ioc2" {
		t.Errorf("owner lost in merge")
	}
	if a.Aliases["X:alias"] != "X:a" {
		t.Errorf("alias lost in merge")
	}
}

func TestBuildPVAGroups(t *testing.T) {
	db := NewDatabase()
	rec1 := newRec("X:volt", "ai")
	rec1.Info["Q:group"] = `{"X:psu": {"voltage": {"+channel": "VAL", "+type": "plain"}}}`
	db.AddRecord(rec1)
	rec2 := newRec("X:curr", "ai")
	rec2.Info["Q:group"] = `{"X:psu": {"current": "VAL"}}`
	db.AddRecord(rec2)

	lint := &LintResult{}
	BuildPVAGroups(db, lint)
	if !lint.Success() {
		t.Fatalf("lint = %v", lint.Errors)
	}
	group := db.PVAGroups["X:psu"]
	if group == nil {
		t.Fatal("group X:psu missing")
	}
	if len(group.Fields) != 2 {
		t.Fatalf("fields = %v", group.Fields)
	}
	voltage := group.Fields["voltage"]
	if voltage.RecordName != "X:volt" || voltage.FieldName != "VAL" {
		t.Errorf("voltage = %+v", voltage)
	}
	if voltage.Metadata["+type"] != "plain" {
		t.Errorf("metadata = %v", voltage.Metadata)
	}
	// The bare-string shorthand is +channel.
	if current := group.Fields["current"]; current.FieldName != "VAL" {
		t.Errorf("current = %+v", current)
	}
}

func TestPVAGroupConflictWarns(t *testing.T) {
	db := NewDatabase()
	rec1 := newRec("X:one", "ai")
	rec1.Info["Q:group"] = `{"X:grp": {"value": "VAL"}}`
	db.AddRecord(rec1)
	rec2 := newRec("X:two", "ai")
	rec2.Info["Q:group"] = `{"X:grp": {"value": "VAL"}}`
	db.AddRecord(rec2)

	lint := &LintResult{}
	BuildPVAGroups(db, lint)
	found := false
	for _, w := range lint.Warnings {
		if w.Name == "pva-group-conflict" {
			found = true
		}
	}
	if !found {
		t.Errorf("conflicting members produced no warning: %v", lint.Warnings)
	}
}
