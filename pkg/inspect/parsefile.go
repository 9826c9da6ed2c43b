package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/parse/acf"
	"github.com/ioctools/recwalk/pkg/parse/autosave"
	"github.com/ioctools/recwalk/pkg/parse/db"
	"github.com/ioctools/recwalk/pkg/parse/gateway"
	"github.com/ioctools/recwalk/pkg/parse/snl"
	"github.com/ioctools/recwalk/pkg/parse/streamproto"
	"github.com/ioctools/recwalk/pkg/parse/sub"
	"github.com/ioctools/recwalk/pkg/prog"
)

// runParse parses one file standalone and prints its parsed form. The
// grammar is chosen by file extension; anything unrecognized is treated as a
// record database.
func runParse(fds [3]*os.File, f *prog.Flags, path string) error {
	src, err := parse.SourceFromFile(path)
	if err != nil {
		return err
	}
	var parseErr error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".substitutions", ".sub":
		parseErr = parseSubstitutions(fds[1], src)
	case ".req", ".sav":
		parseErr = parseRestore(fds[1], src)
	case ".acf":
		parseErr = parseAccess(fds[1], src)
	case ".proto", ".protocol":
		parseErr = parseProtocol(fds[1], src)
	case ".pvlist":
		parseErr = parsePVList(fds[1], src)
	case ".st", ".stt":
		parseErr = parseSequencer(fds[1], src)
	default:
		return parseDatabase(fds, src)
	}
	if parseErr != nil {
		fmt.Fprintln(fds[2], parseErr)
		return prog.Exit(1)
	}
	return nil
}

func parseDatabase(fds [3]*os.File, src parse.Source) error {
	loader := &db.Loader{}
	lint := &epics.LintResult{}
	database, parseErr := loader.Load(src, nil, lint)
	if parseErr != nil {
		fmt.Fprintln(fds[2], parseErr)
	}
	fmt.Fprint(fds[1], database.Render())
	printLint(fds[2], lint)
	if parseErr != nil || !lint.Success() {
		return prog.Exit(1)
	}
	return nil
}

func parseSubstitutions(out *os.File, src parse.Source) error {
	file, err := sub.Parse(src)
	for _, tmpl := range file.Templates {
		fmt.Fprintf(out, "file %q: %d rows\n", tmpl.Name, len(tmpl.Rows))
		for _, row := range tmpl.Rows {
			pairs := make([]string, len(row.Macros))
			for i, m := range row.Macros {
				pairs[i] = m[0] + "=" + m[1]
			}
			fmt.Fprintf(out, "    {%s}\n", strings.Join(pairs, ", "))
		}
	}
	return err
}

func parseRestore(out *os.File, src parse.Source) error {
	file, err := autosave.Parse(src)
	records := sortedKeys(file.Values)
	for _, rec := range records {
		for _, field := range sortedKeys(file.Values[rec]) {
			v := file.Values[rec][field]
			if v.IsArray {
				fmt.Fprintf(out, "%s.%s = [%s]\n", rec, field, strings.Join(v.Elements, ", "))
			} else {
				fmt.Fprintf(out, "%s.%s = %q\n", rec, field, v.Value)
			}
		}
	}
	for _, pv := range file.Disconnected {
		fmt.Fprintf(out, "disconnected: %s\n", pv)
	}
	if !file.Complete {
		fmt.Fprintln(out, "missing <END> marker")
	}
	return err
}

func parseAccess(out *os.File, src parse.Source) error {
	config, err := acf.Parse(src)
	for _, name := range sortedKeys(config.UserGroups) {
		fmt.Fprintf(out, "UAG %s: %s\n", name, strings.Join(config.UserGroups[name], ", "))
	}
	for _, name := range sortedKeys(config.HostGroups) {
		fmt.Fprintf(out, "HAG %s: %s\n", name, strings.Join(config.HostGroups[name], ", "))
	}
	for _, name := range sortedKeys(config.Groups) {
		group := config.Groups[name]
		fmt.Fprintf(out, "ASG %s: %d rules\n", name, len(group.Rules))
		for _, rule := range group.Rules {
			extra := ""
			if len(rule.UserGroups) > 0 {
				extra += " UAG(" + strings.Join(rule.UserGroups, ",") + ")"
			}
			if len(rule.HostGroups) > 0 {
				extra += " HAG(" + strings.Join(rule.HostGroups, ",") + ")"
			}
			if rule.Calc != "" {
				extra += fmt.Sprintf(" CALC(%q)", rule.Calc)
			}
			fmt.Fprintf(out, "    RULE(%d, %s)%s\n", rule.Level, rule.Access, extra)
		}
	}
	return err
}

func parseProtocol(out *os.File, src parse.Source) error {
	file, err := streamproto.Parse(src)
	for _, name := range sortedKeys(file.Variables) {
		fmt.Fprintf(out, "%s = %q\n", name, file.Variables[name])
	}
	for _, name := range sortedKeys(file.Protocols) {
		proto := file.Protocols[name]
		fmt.Fprintf(out, "protocol %s: %d commands\n", name, len(proto.Commands))
		for _, cmd := range proto.Commands {
			fmt.Fprintf(out, "    %s %s\n", cmd.Name, strings.Join(cmd.Args, " "))
		}
		for _, hname := range sortedKeys(proto.Handlers) {
			fmt.Fprintf(out, "    @%s: %d commands\n", hname, len(proto.Handlers[hname].Commands))
		}
	}
	return err
}

func parsePVList(out *os.File, src parse.Source) error {
	list, err := gateway.Parse(src)
	if list.EvaluationOrder != "" {
		fmt.Fprintf(out, "evaluation order: %s\n", list.EvaluationOrder)
	}
	for _, rule := range list.Rules {
		line := rule.Pattern + " " + rule.Command
		if rule.Alias != "" {
			line += " " + rule.Alias
		}
		if len(rule.Hosts) > 0 {
			line += " FROM " + strings.Join(rule.Hosts, " ")
		}
		if rule.AccessGroup != "" {
			line += " " + rule.AccessGroup + " " + rule.AccessLevel
		}
		fmt.Fprintln(out, line)
	}
	return err
}

func parseSequencer(out *os.File, src parse.Source) error {
	program, err := snl.Parse(src)
	fmt.Fprintf(out, "program %s\n", program.Name)
	if program.Params != "" {
		fmt.Fprintf(out, "    params %q\n", program.Params)
	}
	for _, opt := range program.Options {
		fmt.Fprintf(out, "    option %s\n", opt)
	}
	monitored := make(map[string]bool, len(program.Monitored))
	for _, v := range program.Monitored {
		monitored[v] = true
	}
	for _, a := range program.Assignments {
		suffix := ""
		if monitored[a.Variable] {
			suffix = " (monitored)"
		}
		fmt.Fprintf(out, "    assign %s to %q%s\n", a.Variable, a.PV, suffix)
	}
	return err
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
