package iocsh

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

func init() {
	addCommands(map[string]cmdFunc{
		"epicsEnvSet":  epicsEnvSet,
		"epicsEnvShow": epicsEnvShow,
		"putenv":       putenv,
	})
}

// envHooks are invoked when a well-known environment variable is set, so
// the matching part of the shell state tracks the script.
var envHooks = map[string]func(st *ShellState, value string){
	"EPICS_BASE": func(st *ShellState, value string) {
		if v := inferBaseVersion(value); v != nil {
			st.BaseVersion = v
			logger.Printf("EPICS base version %s inferred from %q", v, value)
		}
	},
	"EPICS_DB_INCLUDE_PATH": func(st *ShellState, value string) {
		for _, dir := range strings.Split(value, ":") {
			if dir != "" {
				st.DatabasePaths = append(st.DatabasePaths, st.ResolvePath(dir))
			}
		}
	},
	"STREAM_PROTOCOL_PATH": func(st *ShellState, value string) {
		if h, ok := st.handlerNamed("stream").(*StreamHandler); ok {
			h.ProtocolPath = strings.Split(value, ":")
		}
	},
}

func epicsEnvSet(st *ShellState, res *LineResult) error {
	if len(res.Args) < 2 {
		return errClass("bad-arguments", "epicsEnvSet requires a name and a value")
	}
	st.setEnv(res.Args[0], res.Args[1])
	return nil
}

// putenv takes a single "NAME=value" argument.
func putenv(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "putenv requires NAME=value")
	}
	name, value, ok := strings.Cut(res.Args[0], "=")
	if !ok {
		return errClass("bad-arguments", "putenv argument %q is not NAME=value", res.Args[0])
	}
	st.setEnv(name, value)
	return nil
}

func (st *ShellState) setEnv(name, value string) {
	st.Variables[name] = value
	st.Macros.Define(name, value)
	if hook, ok := envHooks[name]; ok {
		hook(st, value)
	}
}

func epicsEnvShow(st *ShellState, res *LineResult) error {
	names := make([]string, 0, len(st.Variables))
	for name := range st.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res.notef("%s=%s", name, st.Variables[name])
	}
	return nil
}

// baseVersionPattern matches version components in EPICS_BASE paths such as
// /opt/epics/base-7.0.6.1 or .../R3.15.9.
var baseVersionPattern = regexp.MustCompile(`R?(\d+)[.-](\d+)(?:[.-](\d+))?(?:[.-]\d+)*$`)

// inferBaseVersion extracts a semantic version from an EPICS_BASE path.
func inferBaseVersion(base string) *semver.Version {
	for _, part := range []string{filepath.Base(base), base} {
		m := baseVersionPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		patch := m[3]
		if patch == "" {
			patch = "0"
		}
		v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
		if err == nil {
			return v
		}
	}
	return nil
}
