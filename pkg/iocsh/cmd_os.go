package iocsh

import (
	"os"
)

func init() {
	addCommands(map[string]cmdFunc{
		"cd":      chdir,
		"chdir":   chdir,
		"pwd":     pwd,
		"iocInit": iocInit,
		"iocshRegisterVariable": func(st *ShellState, res *LineResult) error {
			return nil
		},
		"var": setVar,
	})
}

// chdir changes the simulated working directory. The directory must exist
// after standin rewriting; a missing directory fails the line only.
func chdir(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "cd requires a directory")
	}
	dir := st.ResolvePath(res.Args[0])
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errClass("not-a-directory", "%s is not a directory", dir)
	}
	st.WorkingDirectory = dir
	res.setMeta("cwd", dir)
	return nil
}

func pwd(st *ShellState, res *LineResult) error {
	res.Notes = append(res.Notes, st.WorkingDirectory)
	return nil
}

// setVar records a registered-variable assignment.
func setVar(st *ShellState, res *LineResult) error {
	if len(res.Args) == 2 {
		st.Variables[res.Args[0]] = res.Args[1]
	}
	return nil
}

// iocInit transitions the IOC to its terminal initialized phase. It runs
// the lifecycle hooks of every handler and merges their metadata into the
// line result. A second call fails without side effects.
func iocInit(st *ShellState, res *LineResult) error {
	if st.IOCInitialized {
		return errClass("already-initialized", "iocInit already called")
	}

	var hookErr error
	runHooks := func(run func(LifecycleHook) (map[string]string, error)) {
		for _, h := range st.handlers {
			hook, ok := h.(LifecycleHook)
			if !ok {
				continue
			}
			meta, err := run(hook)
			for k, v := range meta {
				res.setMeta(h.Name()+"."+k, v)
			}
			if err != nil && hookErr == nil {
				hookErr = err
			}
		}
	}

	runHooks(func(h LifecycleHook) (map[string]string, error) { return h.PreIOCInit(st) })
	st.IOCInitialized = true
	st.Phase = Initialized
	st.Database.ResolveDeferred(st.Lint)
	runHooks(func(h LifecycleHook) (map[string]string, error) { return h.PostIOCInit(st) })

	res.notef("iocInit: %d records", len(st.Database.Records))
	return hookErr
}
