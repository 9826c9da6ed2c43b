// Recwalk analyzes EPICS IOC configuration: it parses database and support
// files, replays startup scripts, and builds the PV relationship graph
// across a fleet of IOCs.
package main

import (
	"os"

	"github.com/ioctools/recwalk/pkg/batch"
	"github.com/ioctools/recwalk/pkg/buildinfo"
	"github.com/ioctools/recwalk/pkg/inspect"
	"github.com/ioctools/recwalk/pkg/prog"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(buildinfo.Program, inspect.Program, batch.Program)))
}
