// Package parse provides the machinery shared by the EPICS text-format
// grammars: a cursor-based parser over source text, positioned parse errors,
// and lexical helpers for the token shapes the formats have in common.
//
// Each supported format (database text, substitution files, autosave
// snapshots, access security rules, device protocols, gateway PV lists,
// sequencer headers) has its own grammar in a subpackage. A grammar produces
// a typed tree of declarations; a reduction pass in the consuming package
// folds the tree into the data model.
package parse

import (
	"errors"
	"os"
	"unicode/utf8"
)

// Source describes a piece of source text to parse.
type Source struct {
	// Name is the name of the source, usually a file path. It is used in
	// diagnostics and load contexts.
	Name string
	// Code is the full source text.
	Code string
	// IsFile reports whether the source originates from a file on disk.
	IsFile bool
}

var errSourceNotUTF8 = errors.New("source is not UTF-8")

// SourceFromFile reads the named file into a Source.
func SourceFromFile(name string) (Source, error) {
	bs, err := os.ReadFile(name)
	if err != nil {
		return Source{}, err
	}
	if !utf8.Valid(bs) {
		return Source{}, errSourceNotUTF8
	}
	return Source{Name: name, Code: string(bs), IsFile: true}, nil
}
