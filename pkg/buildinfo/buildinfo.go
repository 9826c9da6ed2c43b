// Package buildinfo contains build information.
//
// Build information should be set during compilation by passing
// -ldflags "-X github.com/ioctools/recwalk/pkg/buildinfo.Var=value" to
// "go build".
package buildinfo

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ioctools/recwalk/pkg/prog"
)

// Version identifies the version of recwalk. On development commits, it
// identifies the next release.
const Version = "v0.4.0"

// VersionSuffix is appended to Version in the output of "recwalk -version"
// and "recwalk -buildinfo" to build the full version string. This can be
// overridden when building.
var VersionSuffix = "-dev.unknown"

// Program is the buildinfo subprogram.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, _ []string) error {
	if !f.Version && !f.BuildInfo {
		return prog.ErrNotSuitable
	}
	fullVersion := Version + VersionSuffix
	if f.Version {
		fmt.Fprintln(fds[1], fullVersion)
		return nil
	}
	if f.JSON {
		fmt.Fprintf(fds[1],
			`{"version":%s,"goversion":%s}`+"\n",
			quoteJSON(fullVersion), quoteJSON(runtime.Version()))
	} else {
		fmt.Fprintln(fds[1], "Version:", fullVersion)
		fmt.Fprintln(fds[1], "Go version:", runtime.Version())
	}
	return nil
}

func quoteJSON(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
