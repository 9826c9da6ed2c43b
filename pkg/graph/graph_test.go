package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/tt"
)

func TestParseLink(t *testing.T) {
	parse := func(value string) (string, string, []string, bool) {
		link, ok := ParseLink(value)
		return link.Record, link.Field, link.Modifiers, ok
	}
	tt.Test(t, tt.Fn("ParseLink", parse), tt.Table{
		tt.Args("X:other").Rets("X:other", "", []string(nil), true),
		tt.Args("X:other.SEVR").Rets("X:other", "SEVR", []string(nil), true),
		tt.Args("X:other CPP MS").Rets("X:other", "", []string{"CPP", "MS"}, true),
		tt.Args("X:other.VAL PP").Rets("X:other", "VAL", []string{"PP"}, true),

		// Record names may themselves contain dots; only an all-caps tail
		// is a field.
		tt.Args("X:dev.sub:name").Rets("X:dev.sub:name", "", []string(nil), true),

		// Constants and hardware addresses are not PV links.
		tt.Args("").Rets("", "", []string(nil), false),
		tt.Args("42").Rets("", "", []string(nil), false),
		tt.Args("-1.5").Rets("", "", []string(nil), false),
		tt.Args("#C0 S1").Rets("", "", []string(nil), false),
		tt.Args("@asyn(NET,0)VOLT").Rets("", "", []string(nil), false),
		tt.Args(`{"const": 3}`).Rets("", "", []string(nil), false),
	})
}

func buildTestDatabase() *epics.Database {
	db := epics.NewDatabase()
	a := epics.NewRecordInstance("A", "calc", nil)
	a.SetField(&epics.RecordField{Name: "INP", Value: "B CPP MS", Dtype: "DBF_INLINK"})
	db.AddRecord(a)
	b := epics.NewRecordInstance("B", "ai", nil)
	b.SetField(&epics.RecordField{Name: "FLNK", Value: "C", Dtype: "DBF_FWDLINK"})
	db.AddRecord(b)
	c := epics.NewRecordInstance("C", "calc", nil)
	db.AddRecord(c)
	return db
}

func TestBuild(t *testing.T) {
	db := buildTestDatabase()
	relations := Build(db, nil)

	want := []FieldPair{{Field: "INP", OtherField: "VAL", Modifiers: []string{"CPP", "MS"}}}
	if diff := cmp.Diff(want, relations["A"]["B"]); diff != "" {
		t.Errorf("A->B (-want +got):\n%s", diff)
	}
	// Every edge is mirrored with the fields swapped.
	wantBack := []FieldPair{{Field: "VAL", OtherField: "INP", Modifiers: []string{"CPP", "MS"}}}
	if diff := cmp.Diff(wantBack, relations["B"]["A"]); diff != "" {
		t.Errorf("B->A (-want +got):\n%s", diff)
	}

	// Forward links target PROC.
	if got := relations["B"]["C"]; len(got) != 1 || got[0].OtherField != "PROC" {
		t.Errorf("B->C = %v, want FLNK->PROC", got)
	}

	// Link targets get placeholder fields when the record exists but
	// lacks the field.
	if f := db.Records["B"].Fields["VAL"]; f == nil || f.Dtype != "unknown" {
		t.Errorf("placeholder VAL on B = %v", f)
	}
}

func TestBuildLinkToAbsentRecord(t *testing.T) {
	db := epics.NewDatabase()
	a := epics.NewRecordInstance("A", "ai", nil)
	a.SetField(&epics.RecordField{Name: "INP", Value: "GHOST", Dtype: "DBF_INLINK"})
	db.AddRecord(a)

	relations := Build(db, nil)
	if len(relations["A"]["GHOST"]) != 1 {
		t.Errorf("edge to absent record missing: %v", relations)
	}
	if _, ok := db.Records["GHOST"]; ok {
		t.Errorf("absent record was materialized")
	}
}

func TestBuildResolvesAliases(t *testing.T) {
	db := epics.NewDatabase()
	a := epics.NewRecordInstance("A", "ai", nil)
	a.SetField(&epics.RecordField{Name: "INP", Value: "NICK", Dtype: "DBF_INLINK"})
	db.AddRecord(a)
	db.AddRecord(epics.NewRecordInstance("REAL", "ai", nil))
	db.Aliases["NICK"] = "REAL"

	relations := Build(db, nil)
	if len(relations["A"]["REAL"]) != 1 {
		t.Errorf("alias target not canonicalized: %v", relations)
	}
	if relations["A"]["NICK"] != nil {
		t.Errorf("edge kept the alias name")
	}
}

func TestCombine(t *testing.T) {
	// Two IOCs referencing each other's records, one via an alias.
	ioc1 := make(Relations)
	ioc1.add("A", "B:alias", "INP", "VAL", nil)
	ioc2 := make(Relations)
	ioc2.add("B", "A", "FLNK", "PROC", nil)

	combined := Combine(make(Relations), map[string]string{"B:alias": "B"}, ioc1, ioc2)

	if len(combined["A"]["B"]) != 2 {
		t.Fatalf("A<->B = %v, want INP/VAL and PROC/FLNK", combined["A"]["B"])
	}
	if len(combined["B"]["A"]) != 2 {
		t.Errorf("combined graph not mirrored: %v", combined["B"]["A"])
	}
	if combined["A"]["B:alias"] != nil {
		t.Errorf("alias name survived combination")
	}

	// Combining the same graph twice does not duplicate edges.
	again := Combine(make(Relations), nil, ioc1, ioc1)
	if len(again["A"]["B:alias"]) != 1 {
		t.Errorf("duplicate edges after re-combination: %v", again["A"]["B:alias"])
	}
}
