package sub

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/testutil"
)

func parseText(t *testing.T, code string) *File {
	t.Helper()
	f, err := Parse(parse.Source{Name: "test.substitutions", Code: testutil.Dedent(code)})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func rowMacros(f *File, template, row int) [][2]string {
	return f.Templates[template].Rows[row].Macros
}

func TestPatternForm(t *testing.T) {
	f := parseText(t, `
		file "thermo.template" {
			pattern {P, N}
			{"A:", 1}
			{"B:", 2}
		}
		`)
	if len(f.Templates) != 1 || f.Templates[0].Name != "thermo.template" {
		t.Fatalf("templates = %v", f.Templates)
	}
	want := [][2]string{{"P", "A:"}, {"N", "1"}}
	if diff := cmp.Diff(want, rowMacros(f, 0, 0)); diff != "" {
		t.Errorf("row 0 (-want +got):\n%s", diff)
	}
	if got := rowMacros(f, 0, 1); got[0][1] != "B:" {
		t.Errorf("row 1 = %v", got)
	}
}

func TestNamedRowForm(t *testing.T) {
	f := parseText(t, `
		file motor.template {
			{P="X:", M=m1}
			{P="Y:", M=m2}
		}
		`)
	want := [][2]string{{"P", "X:"}, {"M", "m1"}}
	if diff := cmp.Diff(want, rowMacros(f, 0, 0)); diff != "" {
		t.Errorf("row 0 (-want +got):\n%s", diff)
	}
}

func TestGlobalsFoldIntoRows(t *testing.T) {
	f := parseText(t, `
		global {IOC="ioc1"}
		file a.template {
			pattern {P}
			{"A:"}
		}
		file b.template {
			global {EXTRA="x"}
			{P="B:", IOC="override"}
		}
		`)
	want := [][2]string{{"IOC", "ioc1"}, {"P", "A:"}}
	if diff := cmp.Diff(want, rowMacros(f, 0, 0)); diff != "" {
		t.Errorf("template a row (-want +got):\n%s", diff)
	}
	// A row overriding a global keeps the global's position.
	want = [][2]string{{"IOC", "override"}, {"EXTRA", "x"}, {"P", "B:"}}
	if diff := cmp.Diff(want, rowMacros(f, 1, 0)); diff != "" {
		t.Errorf("template b row (-want +got):\n%s", diff)
	}
}

func TestRowTooLong(t *testing.T) {
	_, err := Parse(parse.Source{Name: "bad", Code: testutil.Dedent(`
		file a.template {
			pattern {P}
			{"A:", "extra"}
		}
		`)})
	if err == nil {
		t.Errorf("over-long row produced no error")
	}
}
