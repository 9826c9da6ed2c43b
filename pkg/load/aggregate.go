package load

import (
	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/graph"
)

// Aggregate is the fleet-wide view built from per-IOC results: the union
// database, the merged PV relationship graph, and the union file ledger.
type Aggregate struct {
	Database *epics.Database
	// Relations is the bidirectional PV graph across all IOCs.
	Relations graph.Relations
	// LoadedFiles is the union ledger; a file loaded by several IOCs
	// appears once.
	LoadedFiles map[string]string
	Lint        *epics.LintResult
	// Failed lists the results that produced no database.
	Failed []*Result
}

// Merge folds per-IOC results into one Aggregate. Failed results are
// collected but do not poison the merge. Record annotations and aliases
// survive, and the per-IOC graphs are combined with aliases folded onto
// canonical names.
func Merge(results []*Result) *Aggregate {
	agg := &Aggregate{
		Database:    epics.NewDatabase(),
		LoadedFiles: make(map[string]string),
		Lint:        &epics.LintResult{},
	}

	var graphs []graph.Relations
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil || r.Database == nil {
			agg.Failed = append(agg.Failed, r)
			continue
		}
		agg.Database.MergeFrom(r.Database)
		for path, hash := range r.LoadedFiles {
			agg.LoadedFiles[path] = hash
		}
		if r.Lint != nil {
			agg.Lint.Errors = append(agg.Lint.Errors, r.Lint.Errors...)
			agg.Lint.Warnings = append(agg.Lint.Warnings, r.Lint.Warnings...)
		}
		graphs = append(graphs, graph.Build(r.Database, nil))
	}

	agg.Relations = make(graph.Relations)
	graph.Combine(agg.Relations, agg.Database.Aliases, graphs...)
	return agg
}
