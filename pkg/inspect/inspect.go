// Package inspect implements the single-input subprograms: parse, interpret
// and graph.
package inspect

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/graph"
	"github.com/ioctools/recwalk/pkg/iocsh"
	"github.com/ioctools/recwalk/pkg/prog"
)

// Program is the inspect subprogram.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) == 0 {
		return prog.ErrNotSuitable
	}
	switch args[0] {
	case "parse":
		if len(args) != 2 {
			return prog.BadUsage("parse requires exactly one file")
		}
		return runParse(fds, f, args[1])
	case "interpret":
		if len(args) != 2 {
			return prog.BadUsage("interpret requires exactly one startup script")
		}
		_, err := runInterpret(fds, f, args[1], true)
		return err
	case "graph":
		if len(args) != 2 {
			return prog.BadUsage("graph requires exactly one startup script")
		}
		return runGraph(fds, f, args[1])
	}
	return prog.ErrNotSuitable
}

// runInterpret replays a startup script and prints the per-line results.
func runInterpret(fds [3]*os.File, f *prog.Flags, script string, print bool) (*iocsh.ShellState, error) {
	name := f.Name
	if name == "" {
		name = script
	}
	var opts []iocsh.Option
	if f.Macros != "" {
		opts = append(opts, iocsh.WithMacros(f.Macros))
	}
	st := iocsh.NewShellState(name, opts...)
	results, err := st.InterpretFile(script)
	if err != nil {
		return nil, err
	}
	st.Finalize()

	failed := false
	for _, res := range results {
		if res.Command == "" {
			continue
		}
		if print {
			printResult(fds[1], res)
		}
		if res.Error != nil {
			failed = true
		}
	}
	printLint(fds[2], st.Lint)
	if failed || !st.Lint.Success() {
		return st, prog.Exit(1)
	}
	return st, nil
}

func printResult(out *os.File, res *iocsh.LineResult) {
	status := "ok"
	switch {
	case res.Unhandled:
		status = "unhandled"
	case res.Error != nil:
		status = res.Error.Class
	}
	fmt.Fprintf(out, "%s: [%s] %s\n", res.Context.String(), status, strings.TrimSpace(res.Line))
	for _, note := range res.Notes {
		fmt.Fprintf(out, "    %s\n", note)
	}
	if res.Error != nil {
		fmt.Fprintf(out, "    error: %s\n", res.Error.Message)
	}
}

// runGraph replays a startup script, builds the PV relationship graph and
// prints one line per directed edge.
func runGraph(fds [3]*os.File, f *prog.Flags, script string) error {
	st, err := runInterpret(fds, f, script, false)
	if st == nil {
		return err
	}
	relations := graph.Build(st.Database, st.DatabaseDefinition)

	records := make([]string, 0, len(relations))
	for name := range relations {
		records = append(records, name)
	}
	sort.Strings(records)
	for _, a := range records {
		peers := make([]string, 0, len(relations[a]))
		for b := range relations[a] {
			peers = append(peers, b)
		}
		sort.Strings(peers)
		for _, b := range peers {
			for _, pair := range relations[a][b] {
				// Entries are mirrored; print each edge once.
				if a > b || (a == b && pair.Field > pair.OtherField) {
					continue
				}
				mods := ""
				if len(pair.Modifiers) > 0 {
					mods = " [" + strings.Join(pair.Modifiers, " ") + "]"
				}
				fmt.Fprintf(fds[1], "%s.%s -- %s.%s%s\n", a, pair.Field, b, pair.OtherField, mods)
			}
		}
	}
	return err
}

func printLint(out *os.File, lint *epics.LintResult) {
	for _, msg := range lint.Errors {
		fmt.Fprintln(out, "error:", msg.String())
	}
	for _, msg := range lint.Warnings {
		fmt.Fprintln(out, "warning:", msg.String())
	}
}
