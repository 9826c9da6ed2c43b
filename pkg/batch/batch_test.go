package batch

import (
	"strings"
	"testing"

	"github.com/ioctools/recwalk/pkg/prog/progtest"
	"github.com/ioctools/recwalk/pkg/testutil"
)

func setupFleet(t *testing.T) {
	testutil.InTempDir(t)
	dbd := testutil.Dedent(`
		recordtype(ai) {
			field(VAL, DBF_DOUBLE)
			field(INP, DBF_INLINK)
		}
		`)
	stCmd := testutil.Dedent(`
		dbLoadDatabase("../common/soft.dbd")
		dbLoadRecords("../common/dev.db", "P=$(P)")
		iocInit
		`)
	testutil.ApplyDir(testutil.Dir{
		"common": testutil.Dir{
			"soft.dbd": dbd,
			"dev.db": testutil.Dedent(`
				record(ai, "$(P):temp") {
					field(INP, "$(P):raw")
				}
				record(ai, "$(P):raw") {
				}
				`),
		},
		"ioc1": testutil.Dir{"st.cmd": stCmd},
		"ioc2": testutil.Dir{"st.cmd": stCmd},
		"iocs.yaml": testutil.Dedent(`
			- name: ioc1
			  script: ioc1/st.cmd
			  macros: P=ONE
			- name: ioc2
			  script: ioc2/st.cmd
			  macros: P=TWO
			`),
	})
}

func TestBatch(t *testing.T) {
	setupFleet(t)
	out := progtest.Run(t, Program, "batch", "iocs.yaml")
	if out.Exit != 0 {
		t.Fatalf("exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !progtest.ContainsLine(out.Stdout, "ioc1: 2 records, 3 files, 0 lint errors") {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if !progtest.ContainsLine(out.Stdout, "total: 4 records, 0 aliases, 4 graph nodes, 0 failed IOCs") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestBatch_FailedIOCExitsNonzero(t *testing.T) {
	setupFleet(t)
	testutil.ApplyDir(testutil.Dir{
		"iocs.yaml": testutil.Dedent(`
			- name: ioc1
			  script: ioc1/st.cmd
			  macros: P=ONE
			- name: broken
			  script: missing/st.cmd
			`),
	})
	out := progtest.Run(t, Program, "batch", "iocs.yaml")
	if out.Exit != 1 {
		t.Errorf("exit = %d", out.Exit)
	}
	if !strings.Contains(out.Stdout, "broken: failed:") {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if !strings.Contains(out.Stdout, "1 failed IOCs") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestBatch_CacheFlag(t *testing.T) {
	setupFleet(t)
	out := progtest.Run(t, Program, "-cache", "results.db", "batch", "iocs.yaml")
	if out.Exit != 0 {
		t.Fatalf("first run: exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	out = progtest.Run(t, Program, "-cache", "results.db", "batch", "iocs.yaml")
	if out.Exit != 0 {
		t.Fatalf("second run: exit = %d, stderr %q", out.Exit, out.Stderr)
	}
	if !strings.Contains(out.Stdout, "(cached)") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestBadDescriptorFile(t *testing.T) {
	setupFleet(t)
	out := progtest.Run(t, Program, "batch", "nothing.yaml")
	if out.Exit != 2 {
		t.Errorf("exit = %d", out.Exit)
	}
}

func TestNotSuitable(t *testing.T) {
	out := progtest.Run(t, Program, "frobnicate")
	if out.Exit != 2 {
		t.Errorf("exit = %d", out.Exit)
	}
}
