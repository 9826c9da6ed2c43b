package iocsh

import (
	"testing"

	"github.com/ioctools/recwalk/pkg/tt"
)

func versionString(base string) string {
	v := inferBaseVersion(base)
	if v == nil {
		return ""
	}
	return v.String()
}

func TestInferBaseVersion(t *testing.T) {
	tt.Test(t, tt.Fn("inferBaseVersion", versionString), tt.Table{
		tt.Args("/opt/epics/base-7.0.6.1").Rets("7.0.6"),
		tt.Args("/opt/epics/base-3.15.9").Rets("3.15.9"),
		tt.Args("/epics/base-R3.14.12.7").Rets("3.14.12"),
		tt.Args("/usr/local/epics/R7.0").Rets("7.0.0"),
		tt.Args("/opt/epics/base").Rets(""),
		tt.Args("").Rets(""),
	})
}

func TestEnvHooks(t *testing.T) {
	st := NewShellState("testioc")

	for _, line := range []string{
		`epicsEnvSet("EPICS_BASE", "/opt/epics/base-3.15.9")`,
		`epicsEnvSet("EPICS_DB_INCLUDE_PATH", "/ioc/dbd:/ioc/db")`,
		`epicsEnvSet("STREAM_PROTOCOL_PATH", "proto:more/proto")`,
		`putenv("ENGINEER=someone")`,
	} {
		for _, res := range st.interpretLine(line, 0) {
			if res.Error != nil {
				t.Fatalf("%s -> %v", line, res.Error)
			}
		}
	}

	if st.BaseVersion == nil || st.BaseVersion.Major() != 3 {
		t.Errorf("BaseVersion = %v, want 3.15.9", st.BaseVersion)
	}
	if !st.grammarV3() {
		t.Errorf("3.15 base did not select the V3 grammar")
	}
	if len(st.DatabasePaths) != 2 {
		t.Errorf("DatabasePaths = %v, want two entries", st.DatabasePaths)
	}
	h := streamHandler(st)
	if len(h.ProtocolPath) != 2 || h.ProtocolPath[0] != "proto" {
		t.Errorf("ProtocolPath = %v", h.ProtocolPath)
	}
	if st.Variables["ENGINEER"] != "someone" {
		t.Errorf("putenv did not set ENGINEER: %v", st.Variables)
	}
	// Variables become macros for later lines.
	if got := st.Macros.Expand("$(ENGINEER)"); got != "someone" {
		t.Errorf("macro expansion of ENGINEER = %q", got)
	}
}
