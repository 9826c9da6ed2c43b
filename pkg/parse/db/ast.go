// Package db implements the grammar for EPICS database and database
// definition text: record instances, record types, menus, device support
// and the other top-level declarations, for both supported grammar
// versions (the classic V3 syntax and the 7.0 syntax with JSON values).
package db

import (
	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Options selects the grammar version.
type Options struct {
	// V3 restricts the grammar to the classic syntax: no JSON values in
	// field or info nodes, no standalone alias declarations.
	V3 bool
}

// File is the parse tree of one database file: a flat list of typed
// declarations in document order.
type File struct {
	Source parse.Source
	Decls  []Decl
}

// Decl is a top-level declaration.
type Decl interface {
	diag.Ranger
	decl()
}

type declNode struct {
	diag.Ranging
	// Doc is the comment block immediately preceding the declaration.
	Doc string
}

func (declNode) decl() {}

// RecordDecl is record(TYPE, "NAME") { ... } or grecord(...). A Type of "*"
// refers to an existing instance of unknown type.
type RecordDecl struct {
	declNode
	Type string
	Name string
	Body []BodyItem
}

// BodyItem is an entry in a record body.
type BodyItem interface {
	diag.Ranger
	bodyItem()
}

type bodyNode struct{ diag.Ranging }

func (bodyNode) bodyItem() {}

// FieldItem is field(NAME, "VALUE").
type FieldItem struct {
	bodyNode
	Name  string
	Value string
}

// InfoItem is info(KEY, VALUE); Value keeps the raw text of JSON values.
type InfoItem struct {
	bodyNode
	Key   string
	Value string
}

// AliasItem is an inline alias("NAME").
type AliasItem struct {
	bodyNode
	Name string
}

// RecordTypeDecl is recordtype(TYPE) { ... }.
type RecordTypeDecl struct {
	declNode
	Name string
	Body []RecordTypeItem
}

// RecordTypeItem is an entry in a recordtype body.
type RecordTypeItem interface {
	diag.Ranger
	recordTypeItem()
}

type recordTypeNode struct{ diag.Ranging }

func (recordTypeNode) recordTypeItem() {}

// FieldDefItem is field(NAME, DBF_TYPE) { attr("value") ... }.
type FieldDefItem struct {
	recordTypeNode
	Name  string
	Type  string
	Attrs [][2]string
	Doc   string
}

// CDefItem is a %-prefixed C declaration line.
type CDefItem struct {
	recordTypeNode
	Code string
}

// RTInfoItem is info(KEY, VALUE) inside a recordtype body.
type RTInfoItem struct {
	recordTypeNode
	Key   string
	Value string
}

// RTIncludeItem is include "file" inside a recordtype body; the included
// file is a fragment of recordtype items.
type RTIncludeItem struct {
	recordTypeNode
	Name string
}

// MenuDecl is menu(NAME) { choice(ID, "label") ... }.
type MenuDecl struct {
	declNode
	Name    string
	Choices [][2]string
}

// DeviceDecl is device(recordtype, LINK_TYPE, dset, "choice").
type DeviceDecl struct {
	declNode
	RecordType   string
	LinkType     string
	DsetName     string
	ChoiceString string
}

// NamedDecl covers the one-argument declarations: driver(), registrar(),
// function(), link() (which has two arguments; the second is kept in Extra).
type NamedDecl struct {
	declNode
	Keyword string
	Name    string
	Extra   string
}

// VariableDecl is variable(name[, type]).
type VariableDecl struct {
	declNode
	Name string
	Type string
}

// BreaktableDecl is breaktable(NAME) { v v ... }.
type BreaktableDecl struct {
	declNode
	Name   string
	Values []string
}

// AliasDecl is a standalone alias("RECORD", "ALIAS").
type AliasDecl struct {
	declNode
	Record string
	Alias  string
}

// IncludeDecl is include "file" at the top level.
type IncludeDecl struct {
	declNode
	Name string
}

// PathDecl is path "..." or addpath "...".
type PathDecl struct {
	declNode
	Add  bool
	Path string
}
