package load

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/ioctools/recwalk/pkg/cache"
)

// The cache is two-level. An index entry, keyed by the descriptor, records
// which files the last load read and their hashes. The payload entry is
// keyed by those hashes, so it is valid exactly as long as every input file
// is byte-identical.

func descriptorKey(desc *Descriptor) cache.Key {
	fields := map[string]string{
		"name":   desc.Name,
		"script": desc.Script,
		"macros": desc.Macros,
		"cwd":    desc.WorkingDirectory,
	}
	for from, to := range desc.StandinDirectories {
		fields["standin:"+from] = to
	}
	return cache.Key{Class: "ioc-index", Version: cacheVersion, Fields: fields}
}

func payloadKey(loadedFiles map[string]string) cache.Key {
	return cache.Key{Class: "ioc-load", Version: cacheVersion, Fields: loadedFiles}
}

// lookupCached returns the cached result for desc if every file the
// previous load read still hashes the same, else nil.
func lookupCached(desc *Descriptor, store *cache.Store) *Result {
	var loadedFiles map[string]string
	ok, err := store.Get(descriptorKey(desc), &loadedFiles)
	if err != nil || !ok {
		return nil
	}
	for path, want := range loadedFiles {
		if hashFile(path) != want {
			return nil
		}
	}
	var result Result
	ok, err = store.Get(payloadKey(loadedFiles), &result)
	if err != nil || !ok {
		return nil
	}
	result.FromCache = true
	return &result
}

func storeCached(desc *Descriptor, store *cache.Store, result *Result) error {
	if err := store.Put(payloadKey(result.LoadedFiles), result); err != nil {
		return err
	}
	return store.Put(descriptorKey(desc), result.LoadedFiles)
}

func hashFile(path string) string {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
