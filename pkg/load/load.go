package load

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/ioctools/recwalk/pkg/cache"
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/iocsh"
	"github.com/ioctools/recwalk/pkg/logutil"
)

var logger = logutil.GetLogger("[load] ")

// cacheVersion is the schema version of cached load results.
const cacheVersion = 1

// Options configures a batch load.
type Options struct {
	// Concurrency bounds the number of IOCs loaded at once. Zero means
	// one worker per CPU.
	Concurrency int
	// Cache, when set, short-circuits loads whose input files are
	// unchanged since a previous run.
	Cache *cache.Store
}

// Result is the outcome of loading one IOC. A failed load still yields a
// Result; Err records why it failed.
type Result struct {
	Name string `yaml:"name"`
	// Lines are the per-line interpretation results of the startup script.
	Lines []*iocsh.LineResult `yaml:"lines"`
	// Database holds the records the IOC loaded.
	Database *epics.Database `yaml:"database"`
	// LoadedFiles maps every file the load read to its content hash.
	LoadedFiles map[string]string `yaml:"loaded_files"`
	Lint        *epics.LintResult `yaml:"lint"`
	// FromCache is true when the result was served from the cache.
	FromCache bool `yaml:"-"`

	// Err records why the load failed. It does not serialize; the failure
	// is also rendered as a synthetic line in Lines (see failedResult).
	Err error `yaml:"-"`
}

// LoadBatch loads every descriptor with bounded concurrency. The returned
// slice is parallel to descs. A failing IOC never fails the batch; its
// Result carries the error. The context cancels IOCs not yet started.
func LoadBatch(ctx context.Context, descs []*Descriptor, opts Options) []*Result {
	results := make([]*Result, len(descs))

	g, ctx := errgroup.WithContext(ctx)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	g.SetLimit(concurrency)

	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failedResult(desc.Name, desc.Script, err)
				return nil
			}
			results[i] = LoadOne(desc, opts.Cache)
			return nil
		})
	}
	g.Wait()
	return results
}

// LoadOne loads a single IOC, consulting the cache first when one is given.
// Panics anywhere in the load are contained and reported on the Result.
func LoadOne(desc *Descriptor, store *cache.Store) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("panic loading %s: %v", desc.Name, r)
			result = failedResult(desc.Name, desc.Script,
				&iocsh.CommandError{Class: "panic", Message: describe(r), Trace: string(debug.Stack())})
		}
	}()

	if store != nil {
		if cached := lookupCached(desc, store); cached != nil {
			logger.Printf("%s: served from cache", desc.Name)
			return cached
		}
	}

	result = interpret(desc)
	if store != nil && result.Err == nil {
		if err := storeCached(desc, store, result); err != nil {
			logger.Printf("%s: cache write failed: %v", desc.Name, err)
		}
	}
	return result
}

func interpret(desc *Descriptor) *Result {
	opts := []iocsh.Option{}
	if desc.Macros != "" {
		opts = append(opts, iocsh.WithMacros(desc.Macros))
	}
	// The script path is relative to the invoker, not to the simulated
	// working directory of the IOC.
	script := desc.Script
	if abs, err := filepath.Abs(script); err == nil {
		script = abs
	}
	wd := desc.WorkingDirectory
	if wd == "" {
		wd = filepath.Dir(script)
	}
	opts = append(opts, iocsh.WithWorkingDirectory(wd))
	if len(desc.StandinDirectories) > 0 {
		opts = append(opts, iocsh.WithStandinDirectories(desc.StandinDirectories))
	}

	st := iocsh.NewShellState(desc.Name, opts...)
	lines, err := st.InterpretFile(script)
	if err != nil {
		return failedResult(desc.Name, script, err)
	}
	st.Finalize()
	return &Result{
		Name:        desc.Name,
		Lines:       lines,
		Database:    st.Database,
		LoadedFiles: st.LoadedFiles,
		Lint:        st.Lint,
	}
}

// failedResult renders a failed load as a degenerate result whose single
// line carries the error class, message and trace. Err is skipped when the
// result is serialized; the synthetic line is what survives.
func failedResult(name, script string, err error) *Result {
	cmdErr := &iocsh.CommandError{Class: "error", Message: err.Error()}
	var classed *iocsh.CommandError
	switch {
	case errors.As(err, &classed):
		cmdErr = classed
	case errors.Is(err, fs.ErrNotExist):
		cmdErr.Class = "file-not-found"
	}
	return &Result{
		Name:  name,
		Lines: []*iocsh.LineResult{{Line: script, Error: cmdErr}},
		Err:   err,
	}
}

func describe(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unexpected panic"
}
