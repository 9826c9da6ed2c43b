package parse

import (
	"testing"

	"github.com/ioctools/recwalk/pkg/tt"
)

func parserOver(src string) *Parser {
	return NewParser(Source{Name: "[tty]", Code: src})
}

func TestQuoted(t *testing.T) {
	quoted := func(src string) (string, bool, int) {
		ps := parserOver(src)
		s, _, ok := ps.Quoted()
		return s, ok, len(ps.Errors())
	}
	tt.Test(t, tt.Fn("Quoted", quoted), tt.Table{
		tt.Args(`"hello"`).Rets("hello", true, 0),
		tt.Args(`"a\tb\nc"`).Rets("a\tb\nc", true, 0),
		tt.Args(`"say \"hi\""`).Rets(`say "hi"`, true, 0),
		tt.Args(`bare`).Rets("", false, 0),
		// Unterminated strings produce a value and an error.
		tt.Args(`"oops`).Rets("oops", true, 1),
		tt.Args("\"oops\nnext").Rets("oops", true, 1),
	})
}

func TestBareword(t *testing.T) {
	bareword := func(src string) string {
		ps := parserOver(src)
		s, _ := ps.Bareword()
		return s
	}
	tt.Test(t, tt.Fn("Bareword", bareword), tt.Table{
		tt.Args("DBF_DOUBLE rest").Rets("DBF_DOUBLE"),
		tt.Args("ai)").Rets("ai"),
		tt.Args("x22#c").Rets("x22"),
		tt.Args(`"quoted"`).Rets(""),
	})
}

func TestToken(t *testing.T) {
	token := func(src string) (string, bool) {
		ps := parserOver(src)
		s, _, ok := ps.Token()
		return s, ok
	}
	tt.Test(t, tt.Fn("Token", token), tt.Table{
		tt.Args(`"a b"`).Rets("a b", true),
		tt.Args("ab,").Rets("ab", true),
		tt.Args(",").Rets("", false),
		tt.Args("").Rets("", false),
	})
}

func TestBalancedBlock(t *testing.T) {
	block := func(src string) (string, bool, int) {
		ps := parserOver(src)
		s, _, ok := ps.BalancedBlock('{', '}')
		return s, ok, len(ps.Errors())
	}
	tt.Test(t, tt.Fn("BalancedBlock", block), tt.Table{
		tt.Args(`{a {b} c} tail`).Rets("{a {b} c}", true, 0),
		// Delimiters inside strings do not count.
		tt.Args(`{"}" x}`).Rets(`{"}" x}`, true, 0),
		tt.Args(`no block`).Rets("", false, 0),
		tt.Args(`{open`).Rets("{open", true, 1),
	})
}

func TestSkipSpaces_CommentAttachment(t *testing.T) {
	ps := parserOver("# doc line 1\n# doc line 2\nrecord")
	ps.SkipSpaces()
	if doc := ps.TakeComments(); doc != "doc line 1\ndoc line 2" {
		t.Errorf("TakeComments -> %q", doc)
	}
	if doc := ps.TakeComments(); doc != "" {
		t.Errorf("second TakeComments -> %q, want empty", doc)
	}
	if ps.Peek() != 'r' {
		t.Errorf("cursor at %q, want 'r'", ps.Peek())
	}

	// A blank line detaches the comment block from what follows.
	ps = parserOver("# stale\n\nrecord")
	ps.SkipSpaces()
	if doc := ps.TakeComments(); doc != "" {
		t.Errorf("comment across blank line -> %q, want empty", doc)
	}
}

func TestErrorReporting(t *testing.T) {
	ps := parserOver("field(NAME)")
	ps.Pos = 6
	ps.Errorf("unexpected %q", "NAME")

	err := ps.AssembleError()
	if err == nil {
		t.Fatal("AssembleError -> nil")
	}
	errs := UnpackErrors(err)
	if len(errs) != 1 {
		t.Fatalf("UnpackErrors -> %d errors", len(errs))
	}
	if errs[0].Context.Name != "[tty]" {
		t.Errorf("error source = %q", errs[0].Context.Name)
	}
	if from := errs[0].Context.Ranging.From; from != 6 {
		t.Errorf("error From = %d, want 6", from)
	}
}

func TestParserCursor(t *testing.T) {
	ps := parserOver("ab")
	if r := ps.Next(); r != 'a' {
		t.Errorf("Next -> %q", r)
	}
	if !ps.HasPrefix("b") {
		t.Errorf("HasPrefix(b) -> false")
	}
	ps.Next()
	if r := ps.Next(); r != EOF {
		t.Errorf("Next at end -> %q, want EOF", r)
	}
	// Backup after reading past the end restores the cursor exactly.
	ps.Backup()
	ps.Backup()
	if r := ps.Peek(); r != 'b' {
		t.Errorf("Peek after Backup -> %q", r)
	}
}
