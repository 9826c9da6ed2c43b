package inspect

import (
	"strings"
	"testing"

	"github.com/ioctools/recwalk/pkg/prog/progtest"
	"github.com/ioctools/recwalk/pkg/testutil"
)

var dbText = testutil.Dedent(`
	record(ai, "DEMO:temp") {
		field(INP, "DEMO:raw")
	}
	record(ai, "DEMO:raw") {
	}
	`)

func setupIOC(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{
		"demo.dbd": testutil.Dedent(`
			recordtype(ai) {
				field(VAL, DBF_DOUBLE)
				field(INP, DBF_INLINK)
			}
			`),
		"demo.db": dbText,
		"st.cmd": testutil.Dedent(`
			dbLoadDatabase("demo.dbd")
			dbLoadRecords("demo.db")
			iocInit
			`),
		"demo.substitutions": testutil.Dedent(`
			file "temp.db" {
				{ P=A }
				{ P=B }
			}
			`),
		"demo.pvlist": testutil.Dedent(`
			EVALUATION ORDER DENY, ALLOW
			DEMO:.* ALLOW
			`),
	})
}

func TestParseDatabase(t *testing.T) {
	setupIOC(t)
	out := progtest.Run(t, Program, "parse", "demo.db")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !strings.Contains(out.Stdout, `record(ai, "DEMO:temp")`) {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestParseDatabase_BadFile(t *testing.T) {
	setupIOC(t)
	testutil.ApplyDir(testutil.Dir{"bad.db": "record(ai \"X\") {}"})
	out := progtest.Run(t, Program, "parse", "bad.db")
	if out.Exit != 1 {
		t.Errorf("exit = %d", out.Exit)
	}
	if out.Stderr == "" {
		t.Errorf("no error output")
	}
}

func TestParseSubstitutions(t *testing.T) {
	setupIOC(t)
	out := progtest.Run(t, Program, "parse", "demo.substitutions")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !progtest.ContainsLine(out.Stdout, `file "temp.db": 2 rows`) {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestParsePVList(t *testing.T) {
	setupIOC(t)
	out := progtest.Run(t, Program, "parse", "demo.pvlist")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !progtest.ContainsLine(out.Stdout, "evaluation order: DENY, ALLOW") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestInterpret(t *testing.T) {
	setupIOC(t)
	out := progtest.Run(t, Program, "interpret", "st.cmd")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !strings.Contains(out.Stdout, "[ok] iocInit") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestInterpret_FailingLineExitsNonzero(t *testing.T) {
	setupIOC(t)
	testutil.ApplyDir(testutil.Dir{"bad.cmd": testutil.Dedent(`
		dbLoadDatabase("demo.dbd")
		dbLoadRecords("absent.db")
		`)})
	out := progtest.Run(t, Program, "interpret", "bad.cmd")
	if out.Exit != 1 {
		t.Errorf("exit = %d", out.Exit)
	}
	if !strings.Contains(out.Stdout, "[file-not-found]") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestGraph(t *testing.T) {
	setupIOC(t)
	out := progtest.Run(t, Program, "graph", "st.cmd")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !progtest.ContainsLine(out.Stdout, "DEMO:raw.VAL -- DEMO:temp.INP") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestUnknownSubcommand(t *testing.T) {
	out := progtest.Run(t, Program, "frobnicate")
	if out.Exit != 2 {
		t.Errorf("exit = %d", out.Exit)
	}
}
