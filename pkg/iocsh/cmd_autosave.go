package iocsh

import (
	"fmt"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse/autosave"
)

func init() {
	addCommands(map[string]cmdFunc{
		"set_savefile_path":     setSavefilePath,
		"set_requestfile_path":  setRequestfilePath,
		"create_monitor_set":    createMonitorSet,
		"set_pass0_restoreFile": setRestoreFile(0),
		"set_pass1_restoreFile": setRestoreFile(1),
	})
}

// MonitorSet is one create_monitor_set registration.
type MonitorSet struct {
	RequestFile string
	Period      string
	Macros      string
	Context     diag.FullLoadContext
}

// AutosaveHandler tracks autosave configuration and, at iocInit, parses the
// registered restore files.
type AutosaveHandler struct {
	SavePath     string
	RequestPaths []string
	MonitorSets  []*MonitorSet
	// RestoreFiles holds the registered file names per pass (0 and 1).
	RestoreFiles [2][]string
	// Restored holds the parsed restore files by name, populated at
	// iocInit.
	Restored map[string]*autosave.RestoreFile
}

func newAutosaveHandler() *AutosaveHandler {
	return &AutosaveHandler{Restored: make(map[string]*autosave.RestoreFile)}
}

func (h *AutosaveHandler) Name() string { return "autosave" }

// PreIOCInit parses the pass 0 restore files.
func (h *AutosaveHandler) PreIOCInit(st *ShellState) (map[string]string, error) {
	return h.restorePass(st, 0)
}

// PostIOCInit parses the pass 1 restore files.
func (h *AutosaveHandler) PostIOCInit(st *ShellState) (map[string]string, error) {
	return h.restorePass(st, 1)
}

func (h *AutosaveHandler) restorePass(st *ShellState, pass int) (map[string]string, error) {
	var firstErr error
	restored := 0
	for _, name := range h.RestoreFiles[pass] {
		path := name
		if h.SavePath != "" {
			path = h.SavePath + "/" + name
		}
		src, err := st.ReadFile(path)
		if err != nil {
			if firstErr == nil {
				firstErr = errClass("file-not-found", "restore file %q: %v", name, err)
			}
			continue
		}
		rf, err := autosave.Parse(src)
		if err != nil {
			st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, err)
		}
		h.Restored[name] = rf
		restored++
	}
	return map[string]string{
		fmt.Sprintf("pass%d_restored", pass): itoa(restored),
	}, firstErr
}

// AnnotateRecord marks records that have values restored from a save file.
func (h *AutosaveHandler) AnnotateRecord(st *ShellState, rec *epics.RecordInstance) {
	for name, rf := range h.Restored {
		fields, ok := rf.Values[rec.Name]
		if !ok {
			continue
		}
		for field, value := range fields {
			rec.Annotate(epics.Annotation{
				Handler: h.Name(),
				Kind:    "restored",
				Data: map[string]string{
					"file":  name,
					"field": field,
					"value": value.Value,
				},
			})
		}
	}
}

func autosaveHandler(st *ShellState) *AutosaveHandler {
	h, _ := st.handlerNamed("autosave").(*AutosaveHandler)
	return h
}

func setSavefilePath(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "set_savefile_path requires a directory")
	}
	h := autosaveHandler(st)
	h.SavePath = st.ResolvePath(res.Args[0])
	return nil
}

func setRequestfilePath(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "set_requestfile_path requires a directory")
	}
	h := autosaveHandler(st)
	dir := st.ResolvePath(res.Args[0])
	if len(res.Args) >= 2 {
		dir = st.ResolvePath(res.Args[0] + "/" + res.Args[1])
	}
	h.RequestPaths = append(h.RequestPaths, dir)
	return nil
}

func createMonitorSet(st *ShellState, res *LineResult) error {
	if len(res.Args) < 2 {
		return errClass("bad-arguments", "create_monitor_set requires a request file and period")
	}
	h := autosaveHandler(st)
	set := &MonitorSet{
		RequestFile: res.Args[0],
		Period:      res.Args[1],
		Context:     append(diag.FullLoadContext(nil), st.LoadContext...),
	}
	if len(res.Args) >= 3 {
		set.Macros = res.Args[2]
	}
	h.MonitorSets = append(h.MonitorSets, set)
	return nil
}

func setRestoreFile(pass int) cmdFunc {
	return func(st *ShellState, res *LineResult) error {
		if len(res.Args) < 1 {
			return errClass("bad-arguments", "restore file registration requires a file")
		}
		h := autosaveHandler(st)
		h.RestoreFiles[pass] = append(h.RestoreFiles[pass], res.Args[0])
		return nil
	}
}
