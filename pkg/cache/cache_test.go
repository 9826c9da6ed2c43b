package cache

import (
	"path/filepath"
	"testing"

	"github.com/ioctools/recwalk/pkg/testutil"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := testutil.TempDir(t)
	s, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type payload struct {
	Records int               `yaml:"records"`
	Files   map[string]string `yaml:"files"`
}

func TestKeySumIsDeterministic(t *testing.T) {
	k1 := Key{Class: "ioc-load", Version: 1, Fields: map[string]string{"a": "1", "b": "2"}}
	k2 := Key{Class: "ioc-load", Version: 1, Fields: map[string]string{"b": "2", "a": "1"}}
	if k1.Sum() != k2.Sum() {
		t.Errorf("field order changed the digest")
	}

	for _, other := range []Key{
		{Class: "other", Version: 1, Fields: k1.Fields},
		{Class: "ioc-load", Version: 2, Fields: k1.Fields},
		{Class: "ioc-load", Version: 1, Fields: map[string]string{"a": "1"}},
		{Class: "ioc-load", Version: 1, Fields: map[string]string{"a": "1", "b": "x"}},
	} {
		if other.Sum() == k1.Sum() {
			t.Errorf("key %+v collides with %+v", other, k1)
		}
	}
}

func TestPutGet(t *testing.T) {
	s := testStore(t)
	key := Key{Class: "ioc-load", Version: 1, Fields: map[string]string{"st.cmd": "abc"}}

	var missing payload
	if ok, err := s.Get(key, &missing); err != nil || ok {
		t.Fatalf("Get on empty store -> %v, %v", ok, err)
	}

	want := payload{Records: 3, Files: map[string]string{"a.db": "h1"}}
	if err := s.Put(key, want); err != nil {
		t.Fatal(err)
	}
	var got payload
	if ok, err := s.Get(key, &got); err != nil || !ok {
		t.Fatalf("Get after Put -> %v, %v", ok, err)
	}
	if got.Records != want.Records || got.Files["a.db"] != "h1" {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	key := Key{Class: "ioc-load", Version: 1, Fields: map[string]string{"x": "y"}}
	if err := s.Put(key, payload{Records: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(key); err != nil {
		t.Fatal(err)
	}
	var got payload
	if ok, _ := s.Get(key, &got); ok {
		t.Errorf("entry survived Delete")
	}
}
