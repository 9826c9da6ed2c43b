package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/testutil"
)

func src(name, code string) parse.Source {
	return parse.Source{Name: name, Code: testutil.Dedent(code)}
}

// loadWith loads code through a Loader whose includes resolve from files.
func loadWith(t *testing.T, opts Options, code string, files map[string]string) (*epics.Database, *epics.LintResult, error) {
	t.Helper()
	ld := &Loader{Opts: opts, Resolve: func(name string) (parse.Source, error) {
		if text, ok := files[name]; ok {
			return src(name, text), nil
		}
		return parse.Source{}, fmt.Errorf("no such file %q", name)
	}}
	lint := &epics.LintResult{}
	database, err := ld.Load(src("test.db", code), nil, lint)
	return database, lint, err
}

func TestLoadRecords(t *testing.T) {
	database, lint, err := loadWith(t, Options{}, `
		# Temperature readback.
		record(ai, "X:temp") {
			field(INP, "X:raw CPP MS")
			field(EGU, degC)
			info(autosaveFields, "VAL")
			alias("X:temperature")
		}
		record(calc, "X:avg") {
		}
		`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !lint.Success() {
		t.Fatalf("lint = %v", lint.Errors)
	}

	rec := database.Records["X:temp"]
	if rec == nil {
		t.Fatal("X:temp missing")
	}
	if rec.RecordType != "ai" {
		t.Errorf("type = %q", rec.RecordType)
	}
	if rec.Fields["INP"].Value != "X:raw CPP MS" {
		t.Errorf("INP = %q", rec.Fields["INP"].Value)
	}
	if rec.Fields["EGU"].Value != "degC" {
		t.Errorf("bareword value EGU = %q", rec.Fields["EGU"].Value)
	}
	if rec.Info["autosaveFields"] != "VAL" {
		t.Errorf("info = %v", rec.Info)
	}
	if rec.Doc == "" {
		t.Errorf("leading comment was not attached as doc")
	}
	if database.Aliases["X:temperature"] != "X:temp" {
		t.Errorf("aliases = %v", database.Aliases)
	}
	if got := rec.Context.Last().Source; got != "test.db" {
		t.Errorf("context = %v", rec.Context)
	}
}

func TestLoadRecordTypes(t *testing.T) {
	database, lint, err := loadWith(t, Options{}, `
		recordtype(ai) {
			include "dbCommon.dbd"
			field(VAL, DBF_DOUBLE) {
				prompt("Current EGU Value")
				asl(ASL0)
			}
			field(INP, DBF_INLINK)
			%#include "aiRecord.h"
			info(rtinfo, "x")
		}
		device(ai, INST_IO, devAiAsyn, "asynInt32")
		driver(drvXy)
		registrar(xyRegister)
		variable(xyDebug, int)
		menu(menuYesNo) {
			choice(menuYesNoNO, "NO")
			choice(menuYesNoYES, "YES")
		}
		breaktable(typeKdegC) {
			0.0 0.0
			365.0 67.0
		}
		`, map[string]string{
		"dbCommon.dbd": `field(NAME, DBF_STRING)` + "\n" + `field(FLNK, DBF_FWDLINK)`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !lint.Success() {
		t.Fatalf("lint = %v", lint.Errors)
	}

	rt := database.RecordTypes["ai"]
	if rt == nil {
		t.Fatal("recordtype ai missing")
	}
	// Fields from the include fragment are folded in.
	for _, name := range []string{"VAL", "INP", "NAME", "FLNK"} {
		if rt.Fields[name] == nil {
			t.Errorf("field %s missing: %v", name, rt.Fields)
		}
	}
	if rt.Fields["VAL"].Attrs["prompt"] != "Current EGU Value" {
		t.Errorf("VAL attrs = %v", rt.Fields["VAL"].Attrs)
	}
	if len(rt.CDefs) != 1 || !strings.Contains(rt.CDefs[0], "aiRecord.h") {
		t.Errorf("cdefs = %v", rt.CDefs)
	}
	if len(rt.Devices) != 1 || rt.Devices[0].ChoiceString != "asynInt32" {
		t.Errorf("devices = %v", rt.Devices)
	}
	if len(database.Drivers) != 1 || len(database.Registrars) != 1 {
		t.Errorf("drivers/registrars = %v, %v", database.Drivers, database.Registrars)
	}
	if menu := database.Menus["menuYesNo"]; menu == nil || len(menu.Choices) != 2 {
		t.Errorf("menu = %v", menu)
	}
	// Breaktable values are a flat list: two raw/engineering pairs here.
	if bt := database.Breaktables["typeKdegC"]; bt == nil || len(bt.Values) != 4 {
		t.Errorf("breaktable = %v", bt)
	}
}

func TestMissingIncludeIsLocal(t *testing.T) {
	database, lint, err := loadWith(t, Options{}, `
		include "gone.dbd"
		record(ai, "X:survivor") {
		}
		`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if lint.Success() {
		t.Errorf("missing include produced no lint error")
	}
	if database.Records["X:survivor"] == nil {
		t.Errorf("declarations after the missing include were dropped")
	}
}

func TestIncludeCycle(t *testing.T) {
	_, lint, err := loadWith(t, Options{}, `
		include "a.dbd"
		`, map[string]string{
		"a.dbd": `include "a.dbd"`,
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, msg := range lint.Errors {
		if msg.Name == "include-cycle" {
			found = true
		}
	}
	if !found {
		t.Errorf("no include-cycle error: %v", lint.Errors)
	}
}

func TestV3Gating(t *testing.T) {
	// JSON field values and standalone aliases are 7.0 grammar.
	code := `
		record(ai, "X:a") {
			info(Q:group, {"X:grp": {"value": {"+channel": "VAL"}}})
		}
		alias("X:a", "X:b")
		`
	if _, _, err := loadWith(t, Options{}, code, nil); err != nil {
		t.Errorf("7.0 grammar rejected JSON: %v", err)
	}
	_, _, err := loadWith(t, Options{V3: true}, code, nil)
	if err == nil {
		t.Fatalf("V3 grammar accepted JSON values and standalone alias")
	}
	for _, want := range []string{errJSONValueInV3.Error(), errStandaloneAliasV3.Error()} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestMissingArgumentComma(t *testing.T) {
	database, _, err := loadWith(t, Options{}, `
		record(ai "X:bare") {
		}
		record(ai, "X:after") {
		}
		`, nil)
	if err == nil {
		t.Fatalf("missing argument comma produced no error")
	}
	if database.Records["X:after"] == nil {
		t.Errorf("parser did not recover after the bad declaration")
	}
}

func TestParseErrorRecovery(t *testing.T) {
	database, _, err := loadWith(t, Options{}, `
		bogus(xyz)
		record(ai, "X:after") {
		}
		`, nil)
	if err == nil {
		t.Fatalf("unknown declaration produced no error")
	}
	if database.Records["X:after"] == nil {
		t.Errorf("parser did not recover after the bad declaration")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	database, _, err := loadWith(t, Options{}, `
		record(ai, "X:temp") {
			field(INP, "X:raw CPP MS")
			alias("X:temperature")
			info(description, "thermocouple")
		}
		`, nil)
	if err != nil {
		t.Fatal(err)
	}
	again, lint, err := loadWith(t, Options{}, database.Render(), nil)
	if err != nil || !lint.Success() {
		t.Fatalf("rendered text does not parse back: %v, %v", err, lint.Errors)
	}
	rec := again.Records["X:temp"]
	if rec == nil || rec.Fields["INP"].Value != "X:raw CPP MS" {
		t.Errorf("round trip lost fields: %v", rec)
	}
	if again.Aliases["X:temperature"] != "X:temp" {
		t.Errorf("round trip lost aliases: %v", again.Aliases)
	}
	if again.Records["X:temp"].Info["description"] != "thermocouple" {
		t.Errorf("round trip lost info: %v", rec.Info)
	}
}
