// Package batch implements the fleet subprograms: batch and watch.
package batch

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ioctools/recwalk/pkg/cache"
	"github.com/ioctools/recwalk/pkg/load"
	"github.com/ioctools/recwalk/pkg/prog"
)

// Program is the batch subprogram.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) == 0 {
		return prog.ErrNotSuitable
	}
	switch args[0] {
	case "batch", "watch":
	default:
		return prog.ErrNotSuitable
	}
	if len(args) != 2 {
		return prog.BadUsage(args[0] + " requires exactly one descriptor file")
	}

	descs, err := load.ReadDescriptors(args[1])
	if err != nil {
		return err
	}
	opts := load.Options{Concurrency: f.Jobs}
	if f.Cache != "" {
		store, err := cache.Open(f.Cache)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Cache = store
	}

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := load.Watch(ctx, descs, opts, func(agg *load.Aggregate) {
			printAggregate(fds[1], agg)
		})
		if err == context.Canceled {
			return nil
		}
		return err
	}

	results := load.LoadBatch(context.Background(), descs, opts)
	agg := load.Merge(results)
	for _, r := range results {
		printResult(fds[1], r)
	}
	printAggregate(fds[1], agg)
	if len(agg.Failed) > 0 {
		return prog.Exit(1)
	}
	return nil
}

func printResult(out *os.File, r *load.Result) {
	if r.Err != nil {
		fmt.Fprintf(out, "%s: failed: %v\n", r.Name, r.Err)
		return
	}
	cached := ""
	if r.FromCache {
		cached = " (cached)"
	}
	fmt.Fprintf(out, "%s: %d records, %d files, %d lint errors%s\n",
		r.Name, len(r.Database.Records), len(r.LoadedFiles), len(r.Lint.Errors), cached)
}

func printAggregate(out *os.File, agg *load.Aggregate) {
	fmt.Fprintf(out, "total: %d records, %d aliases, %d graph nodes, %d failed IOCs\n",
		len(agg.Database.Records), len(agg.Database.Aliases), len(agg.Relations), len(agg.Failed))
}
