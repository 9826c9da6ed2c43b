package load

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long file events are batched before reloading, so that
// editors writing several files trigger one reload.
const watchSettle = 250 * time.Millisecond

// Watch loads the batch, calls onUpdate with the merged aggregate, then
// watches every file the batch read and reloads the affected IOCs whenever
// one changes. It returns when the context is canceled.
func Watch(ctx context.Context, descs []*Descriptor, opts Options, onUpdate func(*Aggregate)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	results := LoadBatch(ctx, descs, opts)
	onUpdate(Merge(results))

	// Watch directories rather than files: many editors replace files,
	// which drops file-level watches.
	watched := make(map[string]bool)
	fileOwners := make(map[string][]int)
	rewatch := func() {
		for i, r := range results {
			if r == nil {
				continue
			}
			for path := range r.LoadedFiles {
				fileOwners[path] = appendUnique(fileOwners[path], i)
				dir := filepath.Dir(path)
				if !watched[dir] {
					if err := watcher.Add(dir); err == nil {
						watched[dir] = true
					} else {
						logger.Printf("cannot watch %s: %v", dir, err)
					}
				}
			}
		}
	}
	rewatch()

	dirty := make(map[int]bool)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			owners, ok := fileOwners[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			for _, i := range owners {
				dirty[i] = true
			}
			settle = time.After(watchSettle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("watch error: %v", err)
		case <-settle:
			settle = nil
			for i := range dirty {
				logger.Printf("reloading %s", descs[i].Name)
				results[i] = LoadOne(descs[i], opts.Cache)
			}
			clear(dirty)
			fileOwners = make(map[string][]int)
			rewatch()
			onUpdate(Merge(results))
		}
	}
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
