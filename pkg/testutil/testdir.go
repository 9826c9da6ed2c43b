package testutil

import (
	"os"
	"path/filepath"

	"github.com/ioctools/recwalk/pkg/must"
)

// TempDir creates a temporary directory for the test to use, and arranges for
// it to be removed when the test finishes. Symlinks in the path are resolved
// so that the value is safe to compare against the working directory.
func TempDir(c Cleanuper) string {
	dir, err := os.MkdirTemp("", "recwalk-test")
	if err != nil {
		panic(err)
	}
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		panic(err)
	}
	c.Cleanup(func() {
		err := os.RemoveAll(dir)
		if err != nil {
			panic(err)
		}
	})
	return dir
}

// InTempDir is like TempDir, but also changes into the directory, restoring
// the original working directory when the test finishes.
func InTempDir(c Cleanuper) string {
	dir := TempDir(c)
	oldWd := must.OK1(os.Getwd())
	must.Chdir(dir)
	c.Cleanup(func() { must.Chdir(oldWd) })
	return dir
}

// Dir describes the layout of a directory. The keys of the map represent
// names of files or subdirectories. A string value gives the content of a
// file; a nested Dir value gives a subdirectory.
type Dir map[string]any

// ApplyDir creates the given filesystem layout in the current directory.
func ApplyDir(dir Dir) {
	applyDir(dir, "")
}

func applyDir(dir Dir, prefix string) {
	for name, file := range dir {
		path := filepath.Join(prefix, name)
		switch file := file.(type) {
		case string:
			must.OK(os.WriteFile(path, []byte(file), 0644))
		case Dir:
			must.OK(os.MkdirAll(path, 0700))
			applyDir(file, path)
		default:
			panic("file is neither string nor Dir")
		}
	}
}
