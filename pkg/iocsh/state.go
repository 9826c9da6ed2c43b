// Package iocsh interprets EPICS IOC startup scripts. It replays a script
// command by command against a simulated IOC environment: working
// directory, macros, loaded databases and the registries kept by the
// pluggable sub-handlers (asyn ports, motor controllers, autosave, device
// protocols, access security).
package iocsh

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/logutil"
	"github.com/ioctools/recwalk/pkg/macro"
	"github.com/ioctools/recwalk/pkg/parse"
)

var logger = logutil.GetLogger("[iocsh] ")

// Phase is the lifecycle phase of the simulated IOC.
type Phase int

const (
	// Uninitialized is the phase before any database is loaded.
	Uninitialized Phase = iota
	// Loading is the phase after the database definition is loaded and
	// before iocInit.
	Loading
	// Initialized is the terminal phase after iocInit; no further
	// record or database mutation is permitted.
	Initialized
)

// ShellState is the mutable simulation state of one IOC. It is created once
// per IOC load, mutated strictly sequentially during interpretation, and
// discarded (or cached) afterwards.
type ShellState struct {
	// IOCName identifies the IOC; it becomes the Owner of every loaded
	// record.
	IOCName string
	Prompt  string
	Phase   Phase

	// Variables holds shell variables set by epicsEnvSet.
	Variables map[string]string
	// Macros is the macro context used to pre-process every line and to
	// expand loaded database text.
	Macros *macro.Context

	// WorkingDirectory is the simulated working directory. The process
	// working directory is never changed.
	WorkingDirectory string
	// StandinDirectories rewrites absolute path prefixes, for analyzing
	// scripts whose paths exist elsewhere on the analyzing host.
	StandinDirectories map[string]string

	// LoadedFiles is the ledger of every file read, absolute resolved path
	// to SHA-256 content hash.
	LoadedFiles map[string]string

	// Database accumulates the loaded record instances; PVA groups live on
	// it as well. DatabaseDefinition holds the record types from the
	// dbLoadDatabase call.
	Database           *epics.Database
	DatabaseDefinition *epics.Database
	// DatabasePaths is the search path for database files and includes,
	// seeded from addpath directives in the database definition.
	DatabasePaths []string

	// BaseVersion is inferred from EPICS_BASE when possible and gates the
	// 7.0 grammar features.
	BaseVersion *semver.Version

	// Lint accumulates linter findings from every load on this IOC.
	Lint *epics.LintResult

	// LoadContext is the stack of active load contexts: the startup script
	// and any files being interpreted through redirects.
	LoadContext diag.FullLoadContext

	IOCInitialized bool

	handlers []Handler
}

// Option configures a ShellState.
type Option func(*ShellState)

// WithMacros seeds the macro context from comma-separated pairs.
func WithMacros(pairs string) Option {
	return func(st *ShellState) { st.Macros.DefinePairs(pairs) }
}

// WithWorkingDirectory sets the initial simulated working directory.
func WithWorkingDirectory(dir string) Option {
	return func(st *ShellState) { st.WorkingDirectory = dir }
}

// WithStandinDirectories sets the absolute path rewrite table.
func WithStandinDirectories(dirs map[string]string) Option {
	return func(st *ShellState) {
		for from, to := range dirs {
			st.StandinDirectories[from] = to
		}
	}
}

// WithHandler registers an additional sub-handler.
func WithHandler(h Handler) Option {
	return func(st *ShellState) { st.handlers = append(st.handlers, h) }
}

// NewShellState returns a ShellState for the named IOC with the default
// sub-handlers registered.
func NewShellState(iocName string, opts ...Option) *ShellState {
	st := &ShellState{
		IOCName:            iocName,
		Prompt:             "epics>",
		Variables:          make(map[string]string),
		Macros:             macro.New(),
		StandinDirectories: make(map[string]string),
		LoadedFiles:        make(map[string]string),
		Database:           epics.NewDatabase(),
		Lint:               &epics.LintResult{},
	}
	st.Macros.UseEnviron = true
	st.handlers = []Handler{
		newAsynHandler(),
		newMotorHandler(),
		newAutosaveHandler(),
		newStreamHandler(),
		newAccessHandler(),
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.WorkingDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			st.WorkingDirectory = wd
		}
	}
	return st
}

// Handlers returns the registered sub-handlers in registration order.
func (st *ShellState) Handlers() []Handler {
	return st.handlers
}

// handlerNamed returns the registered handler with the given name, or nil.
func (st *ShellState) handlerNamed(name string) Handler {
	for _, h := range st.handlers {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// ResolvePath resolves a path against the standin-directory table and the
// simulated working directory.
func (st *ShellState) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		for from, to := range st.StandinDirectories {
			if rest, ok := strings.CutPrefix(path, from); ok {
				return filepath.Join(to, rest)
			}
		}
		return filepath.Clean(path)
	}
	return filepath.Join(st.WorkingDirectory, path)
}

// ReadFile reads the file at path (resolved against the simulated state),
// recording its content hash in the loaded-file ledger.
func (st *ShellState) ReadFile(path string) (parse.Source, error) {
	resolved := st.ResolvePath(path)
	src, err := parse.SourceFromFile(resolved)
	if err != nil {
		return parse.Source{}, err
	}
	sum := sha256.Sum256([]byte(src.Code))
	st.LoadedFiles[resolved] = hex.EncodeToString(sum[:])
	return src, nil
}

// SearchDatabaseFile looks for a database file by name: absolute and
// cwd-relative paths first, then the database search path.
func (st *ShellState) SearchDatabaseFile(name string) (parse.Source, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range st.DatabasePaths {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	var firstErr error
	for _, candidate := range candidates {
		src, err := st.ReadFile(candidate)
		if err == nil {
			return src, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return parse.Source{}, fmt.Errorf("cannot find %q: %w", name, firstErr)
}

// GrammarOptions returns the database grammar options appropriate for the
// inferred base version.
func (st *ShellState) grammarV3() bool {
	return st.BaseVersion != nil && st.BaseVersion.Major() < 7
}

// Finalize runs the post-load steps once all scripts for the IOC have been
// interpreted: cross-check the database against the database definition,
// and offer every record to every sub-handler's annotate hook.
func (st *ShellState) Finalize() {
	lint := st.Database.Lint(st.DatabaseDefinition)
	st.Lint.Errors = append(st.Lint.Errors, lint.Errors...)
	st.Lint.Warnings = append(st.Lint.Warnings, lint.Warnings...)
	for _, rec := range st.Database.Records {
		rec.Owner = st.IOCName
		for _, h := range st.handlers {
			if annotator, ok := h.(RecordAnnotator); ok {
				annotator.AnnotateRecord(st, rec)
			}
		}
	}
	logger.Printf("finalized IOC %s: %d records, %d lint errors",
		st.IOCName, len(st.Database.Records), len(st.Lint.Errors))
}
