package buildinfo

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/ioctools/recwalk/pkg/prog/progtest"
)

func TestVersionFlag(t *testing.T) {
	out := progtest.Run(t, Program, "-version")
	if out.Exit != 0 {
		t.Errorf("exit = %d", out.Exit)
	}
	if want := Version + VersionSuffix + "\n"; out.Stdout != want {
		t.Errorf("stdout = %q, want %q", out.Stdout, want)
	}
}

func TestBuildInfoFlag(t *testing.T) {
	out := progtest.Run(t, Program, "-buildinfo")
	if !progtest.ContainsLine(out.Stdout, "Version: "+Version+VersionSuffix) {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if !progtest.ContainsLine(out.Stdout, "Go version: "+runtime.Version()) {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestBuildInfoFlag_JSON(t *testing.T) {
	out := progtest.Run(t, Program, "-buildinfo", "-json")
	want := fmt.Sprintf(`{"version":"%s","goversion":"%s"}`+"\n",
		Version+VersionSuffix, runtime.Version())
	if out.Stdout != want {
		t.Errorf("stdout = %q, want %q", out.Stdout, want)
	}
}

func TestNotSuitableWithoutFlags(t *testing.T) {
	out := progtest.Run(t, Program, "something")
	if out.Exit != 2 {
		t.Errorf("exit = %d", out.Exit)
	}
}
