package iocsh

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/macro"
	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/parse/db"
	"github.com/ioctools/recwalk/pkg/parse/sub"
)

func init() {
	addCommands(map[string]cmdFunc{
		"dbLoadDatabase": dbLoadDatabase,
		"dbLoadRecords":  dbLoadRecords,
		"dbLoadTemplate": dbLoadTemplate,
		"dbl":            dbList,
	})
}

// dbLoadDatabase loads the database definition. Only the first call takes
// effect; repeated calls are reported but not fatal.
func dbLoadDatabase(st *ShellState, res *LineResult) error {
	if st.IOCInitialized {
		return errClass("load-after-init", "dbLoadDatabase after iocInit")
	}
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "dbLoadDatabase requires a file")
	}
	if st.DatabaseDefinition != nil {
		return errClass("already-loaded", "database definition already loaded")
	}
	// The optional second argument is a colon-separated search path.
	if len(res.Args) >= 2 && res.Args[1] != "" {
		for _, dir := range strings.Split(res.Args[1], ":") {
			st.DatabasePaths = append(st.DatabasePaths, st.ResolvePath(dir))
		}
	}
	src, err := st.SearchDatabaseFile(res.Args[0])
	if err != nil {
		return err
	}
	loader := st.databaseLoader()
	var pairs map[string]string
	if len(res.Args) >= 3 && res.Args[2] != "" {
		pairs = subPairs(res.Args[2])
	}
	var dbd *epics.Database
	var loadErr error
	st.Macros.Scoped(pairs, func() {
		src = parse.Source{Name: src.Name, Code: st.Macros.Expand(src.Code), IsFile: src.IsFile}
		dbd, loadErr = loader.Load(src, st.LoadContext, st.Lint)
	})
	if loadErr != nil {
		st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, loadErr)
	}
	st.DatabaseDefinition = dbd
	// addpath directives were already appended, resolved, by the loader
	// callback; only path directives remain to be taken over here.
	for _, dir := range dbd.Paths {
		st.DatabasePaths = append(st.DatabasePaths, st.ResolvePath(dir))
	}
	if st.Phase == Uninitialized {
		st.Phase = Loading
	}
	res.notef("loaded %d record types from %s", len(dbd.RecordTypes), src.Name)
	res.setMeta("record_types", itoa(len(dbd.RecordTypes)))
	return nil
}

// dbLoadRecords loads record instances from a database file, applying the
// optional macro substitutions from the second argument.
func dbLoadRecords(st *ShellState, res *LineResult) error {
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "dbLoadRecords requires a file")
	}
	var pairs map[string]string
	if len(res.Args) >= 2 && res.Args[1] != "" {
		pairs = subPairs(res.Args[1])
	}
	count, err := st.loadRecords(res.Args[0], pairs)
	if err != nil {
		return err
	}
	res.notef("loaded %d records from %s", count, res.Args[0])
	res.setMeta("records", itoa(count))
	return nil
}

// dbLoadTemplate expands a substitution file: one effective record load per
// row, with the row's macros scoped over the shell macros.
func dbLoadTemplate(st *ShellState, res *LineResult) error {
	if st.IOCInitialized {
		return errClass("load-after-init", "record load after iocInit")
	}
	if st.DatabaseDefinition == nil {
		return errClass("no-database-definition", "dbLoadDatabase has not been called")
	}
	if len(res.Args) < 1 {
		return errClass("bad-arguments", "dbLoadTemplate requires a file")
	}
	src, err := st.ReadFile(res.Args[0])
	if err != nil {
		return err
	}
	var global map[string]string
	if len(res.Args) >= 2 && res.Args[1] != "" {
		global = subPairs(res.Args[1])
	}
	f, parseErr := sub.Parse(src)
	if parseErr != nil {
		st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, parseErr)
	}
	total := 0
	for _, tmpl := range f.Templates {
		for _, row := range tmpl.Rows {
			pairs := make(map[string]string, len(global)+len(row.Macros))
			for k, v := range global {
				pairs[k] = v
			}
			for _, kv := range row.Macros {
				pairs[kv[0]] = kv[1]
			}
			count, err := st.loadRecords(tmpl.Name, pairs)
			if err != nil {
				st.Lint.Errorf(st.LoadContext.With(row.Context(src)),
					"template-load", "%s: %v", tmpl.Name, err)
				continue
			}
			total += count
		}
		res.notef("expanded %s: %d rows", tmpl.Name, len(tmpl.Rows))
	}
	res.setMeta("records", itoa(total))
	return nil
}

func dbList(st *ShellState, res *LineResult) error {
	names := make([]string, 0, len(st.Database.Records))
	for name := range st.Database.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	res.Notes = append(res.Notes, names...)
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

// loadRecords loads one database file under the given macro overlay and
// merges the result into the running database.
func (st *ShellState) loadRecords(name string, pairs map[string]string) (int, error) {
	if st.IOCInitialized {
		return 0, errClass("load-after-init", "record load after iocInit")
	}
	if st.DatabaseDefinition == nil {
		return 0, errClass("no-database-definition", "dbLoadDatabase has not been called")
	}
	src, err := st.SearchDatabaseFile(name)
	if err != nil {
		return 0, err
	}
	loader := st.databaseLoader()
	var loaded *epics.Database
	var loadErr error
	st.Macros.Scoped(pairs, func() {
		src = parse.Source{Name: src.Name, Code: st.Macros.Expand(src.Code), IsFile: src.IsFile}
		loaded, loadErr = loader.Load(src, st.LoadContext, st.Lint)
	})
	if loadErr != nil {
		st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, loadErr)
	}
	count := len(loaded.Records)
	st.Database.MergeFrom(loaded)
	return count, nil
}

func (st *ShellState) databaseLoader() *db.Loader {
	return &db.Loader{
		Opts:    db.Options{V3: st.grammarV3()},
		Resolve: st.SearchDatabaseFile,
		AddPath: func(dir string) {
			st.DatabasePaths = append(st.DatabasePaths, st.ResolvePath(dir))
		},
	}
}

// subPairs parses "A=1,B=2" style substitutions into a map.
func subPairs(s string) map[string]string {
	ctx := macro.NewPairs(s)
	return ctx.Definitions()
}
