package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/errutil"
)

// Parser maintains the mutable state of parsing: a cursor into the source
// text and accumulated errors. Grammars advance the cursor with Next, Peek
// and Backup, and record recoverable problems with Error and Errorp.
//
// The Src member is assumed to be valid UTF-8.
type Parser struct {
	SrcName string
	Src     string
	Pos     int

	overEOF         int
	errors          []*Error
	pendingComments []string
}

// Error is a parse error.
type Error = diag.Error

// NewParser returns a Parser over the given source.
func NewParser(src Source) *Parser {
	return &Parser{SrcName: src.Name, Src: src.Code}
}

// EOF is returned by Peek and Next when the cursor is at the end of source.
const EOF rune = -1

// Peek returns the rune under the cursor without advancing.
func (ps *Parser) Peek() rune {
	if ps.Pos == len(ps.Src) {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(ps.Src[ps.Pos:])
	return r
}

// HasPrefix reports whether the text under the cursor starts with prefix.
func (ps *Parser) HasPrefix(prefix string) bool {
	return strings.HasPrefix(ps.Src[ps.Pos:], prefix)
}

// Next returns the rune under the cursor and advances past it.
func (ps *Parser) Next() rune {
	if ps.Pos == len(ps.Src) {
		ps.overEOF++
		return EOF
	}
	r, s := utf8.DecodeRuneInString(ps.Src[ps.Pos:])
	ps.Pos += s
	return r
}

// Backup undoes the last Next.
func (ps *Parser) Backup() {
	if ps.overEOF > 0 {
		ps.overEOF--
		return
	}
	_, s := utf8.DecodeLastRuneInString(ps.Src[:ps.Pos])
	ps.Pos -= s
}

// Errorp records a parse error over the given range.
func (ps *Parser) Errorp(r diag.Ranger, e error) {
	err := &Error{
		Type:    "parse error",
		Message: e.Error(),
		Context: *diag.NewContext(ps.SrcName, ps.Src, r),
	}
	ps.errors = append(ps.errors, err)
}

// Error records a parse error at the cursor.
func (ps *Parser) Error(e error) {
	end := ps.Pos
	if end < len(ps.Src) {
		end++
	}
	ps.Errorp(diag.Ranging{From: ps.Pos, To: end}, e)
}

// Errorf records a parse error at the cursor with a formatted message.
func (ps *Parser) Errorf(format string, args ...any) {
	ps.Error(fmt.Errorf(format, args...))
}

// LoadContext returns the LoadContext of the given byte offset.
func (ps *Parser) LoadContext(pos int) diag.LoadContext {
	return diag.LineContext(ps.SrcName, ps.Src, pos)
}

// AssembleError returns the accumulated parse errors, combined into a single
// error value, or nil if there were none.
func (ps *Parser) AssembleError() error {
	errs := make([]error, len(ps.errors))
	for i, e := range ps.errors {
		errs[i] = e
	}
	return errutil.Multi(errs...)
}

// Errors returns the accumulated parse errors.
func (ps *Parser) Errors() []*Error {
	return ps.errors
}

// UnpackErrors returns the constituent parse errors if the given error
// contains one or more of them. Otherwise it returns nil.
func UnpackErrors(e error) []*Error {
	if pe, ok := e.(*Error); ok {
		return []*Error{pe}
	}
	var errs []*Error
	for _, sub := range errutil.Errors(e) {
		if pe, ok := sub.(*Error); ok {
			errs = append(errs, pe)
		}
	}
	return errs
}
