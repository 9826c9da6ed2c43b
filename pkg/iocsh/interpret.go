package iocsh

import (
	"errors"
	"io/fs"
	"runtime/debug"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// cmdFunc implements one shell command. Failures are returned and captured
// on the line result; they never abort interpretation.
type cmdFunc func(st *ShellState, res *LineResult) error

// commands is the closed dispatch table. Each cmd_*.go file registers its
// commands from an init function.
var commands = make(map[string]cmdFunc)

func addCommands(m map[string]cmdFunc) {
	for name, fn := range m {
		if _, ok := commands[name]; ok {
			panic("duplicate command " + name)
		}
		commands[name] = fn
	}
}

// maxRedirectDepth bounds nested "< file" script inclusion.
const maxRedirectDepth = 20

// InterpretFile reads and interprets a startup script.
func (st *ShellState) InterpretFile(path string) ([]*LineResult, error) {
	src, err := st.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return st.Interpret(src), nil
}

// Interpret replays the script line by line, producing one result per line
// in order. Lines pulled in through "< file" redirects appear after the
// redirect line itself.
func (st *ShellState) Interpret(src parse.Source) []*LineResult {
	return st.interpretSource(src, 0)
}

func (st *ShellState) interpretSource(src parse.Source, depth int) []*LineResult {
	var results []*LineResult
	lines := strings.Split(src.Code, "\n")
	for i, line := range lines {
		ctx := diag.LoadContext{Source: src.Name, Line: i + 1}
		st.LoadContext = st.LoadContext.With(ctx)
		results = append(results, st.interpretLine(line, depth)...)
		st.LoadContext = st.LoadContext[:len(st.LoadContext)-1]
	}
	return results
}

func (st *ShellState) interpretLine(raw string, depth int) []*LineResult {
	res := &LineResult{
		Line:    raw,
		Context: append(diag.FullLoadContext(nil), st.LoadContext...),
	}

	expanded := st.Macros.Expand(raw)
	name, args := splitLine(expanded)
	res.Command, res.Args = name, args
	if name == "" {
		return []*LineResult{res}
	}

	if name == "<" || strings.HasPrefix(name, "<") {
		return st.interpretRedirect(res, name, args, depth)
	}

	fn, ok := commands[name]
	if !ok {
		res.Unhandled = true
		return []*LineResult{res}
	}
	st.run(fn, res)
	return []*LineResult{res}
}

// interpretRedirect handles "< script" lines by interpreting the referenced
// file inline, in the current shell state.
func (st *ShellState) interpretRedirect(res *LineResult, name string, args []string, depth int) []*LineResult {
	path := strings.TrimPrefix(name, "<")
	if path == "" {
		if len(args) == 0 {
			res.Error = &CommandError{Class: "bad-arguments", Message: "redirect requires a file"}
			return []*LineResult{res}
		}
		path = args[0]
	}
	if depth >= maxRedirectDepth {
		res.Error = &CommandError{Class: "redirect-depth", Message: "script inclusion too deep"}
		return []*LineResult{res}
	}
	src, err := st.ReadFile(path)
	if err != nil {
		res.Error = toCommandError(err)
		return []*LineResult{res}
	}
	res.notef("interpreting %s", src.Name)
	return append([]*LineResult{res}, st.interpretSource(src, depth+1)...)
}

// run invokes fn with panic containment; a panic is converted into a line
// error carrying the recovered stack.
func (st *ShellState) run(fn cmdFunc, res *LineResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("panic in %s: %v", res.Command, r)
			res.Error = &CommandError{
				Class:   "panic",
				Message: describePanic(r),
				Trace:   string(debug.Stack()),
			}
		}
	}()
	if err := fn(st, res); err != nil {
		res.Error = toCommandError(err)
	}
}

func describePanic(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unexpected panic"
}

func toCommandError(err error) *CommandError {
	var classed *classedError
	if errors.As(err, &classed) {
		return &CommandError{Class: classed.class, Message: classed.err.Error()}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return &CommandError{Class: "file-not-found", Message: err.Error()}
	}
	return &CommandError{Class: "error", Message: err.Error()}
}
