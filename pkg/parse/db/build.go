package db

import (
	"fmt"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Loader drives parsing and reduction of database files, following include
// directives through the caller-provided resolver.
type Loader struct {
	Opts Options
	// Resolve maps an include or load name to a Source, typically by
	// searching the database path. Required for includes; a nil Resolve
	// makes any include fail.
	Resolve func(name string) (parse.Source, error)
	// AddPath, if set, is called for every addpath directive so the caller
	// can extend its search path mid-load.
	AddPath func(dir string)

	loading map[string]bool
}

// Load parses src and reduces it into a fresh Database. Parse errors are
// returned but do not discard the declarations that did parse; includes
// that fail to resolve are lint errors local to the include.
func (ld *Loader) Load(src parse.Source, base diag.FullLoadContext, lint *epics.LintResult) (*epics.Database, error) {
	database := epics.NewDatabase()
	err := ld.loadInto(database, src, base, lint)
	epics.BuildPVAGroups(database, lint)
	return database, err
}

func (ld *Loader) loadInto(database *epics.Database, src parse.Source, base diag.FullLoadContext, lint *epics.LintResult) error {
	if ld.loading == nil {
		ld.loading = make(map[string]bool)
	}
	if ld.loading[src.Name] {
		lint.Errorf(base, "include-cycle", "file %q includes itself", src.Name)
		return nil
	}
	ld.loading[src.Name] = true
	defer delete(ld.loading, src.Name)

	file, parseErr := Parse(src, ld.Opts)
	ld.reduce(database, file, base, lint)
	return parseErr
}

// reduce folds the parse tree into the Database, attaching a LoadContext
// built from each declaration's position.
func (ld *Loader) reduce(database *epics.Database, file *File, base diag.FullLoadContext, lint *epics.LintResult) {
	ctxAt := func(r diag.Ranger) diag.FullLoadContext {
		return base.With(diag.LineContext(file.Source.Name, file.Source.Code, r.Range().From))
	}

	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *RecordDecl:
			ld.reduceRecord(database, file, decl, base, lint)
		case *RecordTypeDecl:
			ld.reduceRecordType(database, file, decl, base, lint)
		case *MenuDecl:
			database.Menus[decl.Name] = &epics.Menu{
				Name:    decl.Name,
				Choices: decl.Choices,
				Doc:     decl.Doc,
				Context: ctxAt(decl),
			}
		case *DeviceDecl:
			device := &epics.Device{
				RecordType:   decl.RecordType,
				LinkType:     decl.LinkType,
				DsetName:     decl.DsetName,
				ChoiceString: decl.ChoiceString,
				Context:      ctxAt(decl),
			}
			database.Devices = append(database.Devices, device)
			if rt, ok := database.RecordTypes[decl.RecordType]; ok {
				rt.Devices = append(rt.Devices, device)
			}
		case *NamedDecl:
			named := epics.NamedDecl{Name: decl.Name, Context: ctxAt(decl)}
			switch decl.Keyword {
			case "driver":
				database.Drivers = append(database.Drivers, named)
			case "link":
				named.Name = decl.Name + " " + decl.Extra
				database.LinkTypes = append(database.LinkTypes, named)
			case "registrar":
				database.Registrars = append(database.Registrars, named)
			case "function":
				database.Functions = append(database.Functions, named)
			}
		case *VariableDecl:
			database.Variables = append(database.Variables, &epics.Variable{
				Name: decl.Name, Type: decl.Type, Context: ctxAt(decl)})
		case *BreaktableDecl:
			database.Breaktables[decl.Name] = &epics.Breaktable{
				Name: decl.Name, Values: decl.Values, Context: ctxAt(decl)}
		case *AliasDecl:
			database.AddAlias(decl.Record, decl.Alias, ctxAt(decl), lint)
		case *IncludeDecl:
			ld.reduceInclude(database, decl, ctxAt(decl), lint)
		case *PathDecl:
			if decl.Add {
				database.AddPaths = append(database.AddPaths, decl.Path)
				if ld.AddPath != nil {
					ld.AddPath(decl.Path)
				}
			} else {
				database.Paths = append(database.Paths, decl.Path)
			}
		}
	}
}

func (ld *Loader) reduceRecord(database *epics.Database, file *File, decl *RecordDecl, base diag.FullLoadContext, lint *epics.LintResult) {
	ctx := base.With(diag.LineContext(file.Source.Name, file.Source.Code, decl.From))
	if decl.Name == "" {
		lint.Errorf(ctx, "empty-record-name", "record of type %q has an empty name", decl.Type)
		return
	}
	inst := epics.NewRecordInstance(decl.Name, decl.Type, ctx)
	inst.Doc = decl.Doc
	for _, item := range decl.Body {
		itemCtx := base.With(diag.LineContext(file.Source.Name, file.Source.Code, item.Range().From))
		switch item := item.(type) {
		case *FieldItem:
			inst.SetField(&epics.RecordField{
				Name:    item.Name,
				Value:   item.Value,
				Context: itemCtx,
			})
		case *InfoItem:
			inst.Info[item.Key] = item.Value
		case *AliasItem:
			inst.AddAlias(item.Name)
		}
	}
	database.AddRecord(inst)
	// Register inline aliases against the merged instance.
	for _, alias := range inst.Aliases {
		database.AddAlias(decl.Name, alias, ctx, lint)
	}
}

func (ld *Loader) reduceRecordType(database *epics.Database, file *File, decl *RecordTypeDecl, base diag.FullLoadContext, lint *epics.LintResult) {
	ctx := base.With(diag.LineContext(file.Source.Name, file.Source.Code, decl.From))
	rt := &epics.RecordType{
		Name:    decl.Name,
		Fields:  make(map[string]*epics.FieldDefinition),
		Info:    make(map[string]string),
		Doc:     decl.Doc,
		Context: ctx,
	}
	ld.reduceRecordTypeItems(rt, file.Source, decl.Body, base, lint)
	database.RecordTypes[decl.Name] = rt
}

func (ld *Loader) reduceRecordTypeItems(rt *epics.RecordType, src parse.Source, items []RecordTypeItem, base diag.FullLoadContext, lint *epics.LintResult) {
	for _, item := range items {
		ctx := base.With(diag.LineContext(src.Name, src.Code, item.Range().From))
		switch item := item.(type) {
		case *FieldDefItem:
			def := &epics.FieldDefinition{
				Name:    item.Name,
				Type:    item.Type,
				Attrs:   make(map[string]string, len(item.Attrs)),
				Doc:     item.Doc,
				Context: ctx,
			}
			for _, attr := range item.Attrs {
				def.Attrs[attr[0]] = attr[1]
			}
			rt.Fields[item.Name] = def
		case *CDefItem:
			rt.CDefs = append(rt.CDefs, item.Code)
		case *RTInfoItem:
			rt.Info[item.Key] = item.Value
		case *RTIncludeItem:
			included, err := ld.resolve(item.Name)
			if err != nil {
				lint.Errorf(ctx, "missing-include", "recordtype %q: %v", rt.Name, err)
				continue
			}
			fragment, parseErr := ParseFragment(included, ld.Opts)
			if parseErr != nil {
				lint.Errorf(ctx, "invalid-include",
					"recordtype %q include %q: %v", rt.Name, item.Name, parseErr)
			}
			ld.reduceRecordTypeItems(rt, included, fragment, ctx, lint)
		}
	}
}

func (ld *Loader) reduceInclude(database *epics.Database, decl *IncludeDecl, ctx diag.FullLoadContext, lint *epics.LintResult) {
	src, err := ld.resolve(decl.Name)
	if err != nil {
		// A missing include terminates only this include chain.
		lint.Errorf(ctx, "missing-include", "%v", err)
		return
	}
	if err := ld.loadInto(database, src, ctx, lint); err != nil {
		lint.Errorf(ctx, "invalid-include", "include %q: %v", decl.Name, err)
	}
}

func (ld *Loader) resolve(name string) (parse.Source, error) {
	if ld.Resolve == nil {
		return parse.Source{}, fmt.Errorf("cannot resolve %q: no search path", name)
	}
	return ld.Resolve(name)
}
