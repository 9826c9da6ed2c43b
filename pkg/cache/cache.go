// Package cache persists expensive analysis results keyed by content hashes,
// so reloading an unchanged IOC is a lookup instead of a re-parse.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/ioctools/recwalk/pkg/logutil"
)

var logger = logutil.GetLogger("[cache] ")

// Key identifies one cached entry. Two keys collide exactly when their
// class, schema version and every field agree, so a field set that includes
// the content hashes of all inputs makes the entry self-invalidating.
type Key struct {
	// Class groups entries of one kind, such as "ioc-load"; it becomes the
	// bucket name.
	Class string
	// Version is the schema version of the cached value. Bump it when the
	// stored shape changes to orphan stale entries.
	Version int
	// Fields are the identity inputs, typically file paths mapped to their
	// SHA-256 content hashes.
	Fields map[string]string
}

// Sum returns the digest that addresses the entry within its class bucket.
// The fields are folded in sorted order so the digest is deterministic.
func (k Key) Sum() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", k.Class, k.Version)
	names := make([]string, 0, len(k.Fields))
	for name := range k.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\x00", name, k.Fields[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store is a cache backed by a bolt database file. It is safe for
// concurrent use.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get looks up the entry for key and unmarshals it into out. The second
// return is false on a miss.
func (s *Store) Get(key Key, out any) (bool, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Class))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key.Sum())); v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || blob == nil {
		return false, err
	}
	if err := yaml.Unmarshal(blob, out); err != nil {
		// A corrupt entry is a miss, not a failure.
		logger.Printf("discarding unreadable cache entry %s/%s: %v", key.Class, key.Sum(), err)
		return false, nil
	}
	return true, nil
}

// Put stores value under key, overwriting any previous entry.
func (s *Store) Put(key Key, value any) error {
	blob, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Class))
		if err != nil {
			return err
		}
		return b.Put([]byte(key.Sum()), blob)
	})
}

// Delete removes the entry for key if present.
func (s *Store) Delete(key Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Class))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key.Sum()))
	})
}
