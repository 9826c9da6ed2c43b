package iocsh

import (
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse/acf"
)

func init() {
	addCommands(map[string]cmdFunc{
		"asSetFilename":      asSetFilename,
		"asSetSubstitutions": asSetSubstitutions,
	})
}

// AccessHandler tracks access security configuration. The configuration
// file is registered during the script and parsed at iocInit, matching when
// the real IOC reads it.
type AccessHandler struct {
	Filename      string
	Substitutions string
	Config        *acf.AccessConfig
}

func newAccessHandler() *AccessHandler {
	return &AccessHandler{}
}

func (h *AccessHandler) Name() string { return "access" }

// PreIOCInit parses the registered access security file.
func (h *AccessHandler) PreIOCInit(st *ShellState) (map[string]string, error) {
	if h.Filename == "" {
		return nil, nil
	}
	src, err := st.ReadFile(h.Filename)
	if err != nil {
		return nil, errClass("file-not-found", "access security file %q: %v", h.Filename, err)
	}
	if h.Substitutions != "" {
		pairs := subPairs(h.Substitutions)
		st.Macros.Scoped(pairs, func() {
			src.Code = st.Macros.Expand(src.Code)
		})
	}
	config, parseErr := acf.Parse(src)
	if parseErr != nil {
		st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, parseErr)
	}
	h.Config = config
	return map[string]string{"groups": itoa(len(config.Groups))}, nil
}

func (h *AccessHandler) PostIOCInit(st *ShellState) (map[string]string, error) {
	return nil, nil
}

// AnnotateRecord marks records assigned to a defined access security group
// through their ASG field.
func (h *AccessHandler) AnnotateRecord(st *ShellState, rec *epics.RecordInstance) {
	if h.Config == nil {
		return
	}
	asg, ok := rec.Fields["ASG"]
	if !ok || asg.Value == "" {
		return
	}
	group, ok := h.Config.Groups[asg.Value]
	if !ok {
		st.Lint.Warnf(asg.Context, "unknown-access-group",
			"record %q references undefined access group %q", rec.Name, asg.Value)
		return
	}
	rec.Annotate(epics.Annotation{
		Handler: h.Name(),
		Kind:    "access-group",
		Data: map[string]string{
			"group": asg.Value,
			"rules": itoa(len(group.Rules)),
		},
	})
}

func asSetFilename(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "asSetFilename requires a file")
	}
	h, _ := st.handlerNamed("access").(*AccessHandler)
	h.Filename = res.Args[0]
	return nil
}

func asSetSubstitutions(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "asSetSubstitutions requires macro pairs")
	}
	h, _ := st.handlerNamed("access").(*AccessHandler)
	h.Substitutions = res.Args[0]
	return nil
}
