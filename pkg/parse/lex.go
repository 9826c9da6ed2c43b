package parse

import (
	"errors"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
)

// Lexical helpers shared by the EPICS grammars. The formats agree on the
// basics: "#" comments running to end of line, double-quoted strings with
// backslash escapes, and barewords for everything else.

var (
	errStringUnterminated = errors.New("string not terminated")
	errBlockUnterminated  = errors.New("block not terminated")
)

// pendingComments accumulates the comment lines seen since the last blank
// line, so that a comment block immediately preceding a declaration can be
// attached to it as documentation.

// SkipSpaces skips whitespace, including newlines, and comments. Comment
// lines are remembered and can be claimed by TakeComments; a blank line
// detaches earlier comments from whatever follows.
func (ps *Parser) SkipSpaces() {
	sawNewline := false
	for {
		r := ps.Peek()
		switch {
		case r == '\n':
			if sawNewline {
				ps.pendingComments = nil
			}
			sawNewline = true
			ps.Next()
		case r == ' ' || r == '\t' || r == '\r':
			ps.Next()
		case r == '#':
			ps.pendingComments = append(ps.pendingComments, ps.commentLine())
			sawNewline = false
		default:
			return
		}
	}
}

// SkipInlineSpaces skips spaces and tabs but not newlines or comments.
func (ps *Parser) SkipInlineSpaces() {
	for {
		r := ps.Peek()
		if r != ' ' && r != '\t' {
			return
		}
		ps.Next()
	}
}

// commentLine consumes a "#..." comment up to but not including the
// newline, returning the trimmed comment text.
func (ps *Parser) commentLine() string {
	begin := ps.Pos
	for {
		r := ps.Peek()
		if r == EOF || r == '\n' {
			break
		}
		ps.Next()
	}
	return strings.TrimLeft(strings.TrimPrefix(ps.Src[begin:ps.Pos], "#"), " \t")
}

// TakeComments claims the comment block immediately preceding the cursor,
// clearing it. Lines are joined with newlines.
func (ps *Parser) TakeComments() string {
	if len(ps.pendingComments) == 0 {
		return ""
	}
	doc := strings.Join(ps.pendingComments, "\n")
	ps.pendingComments = nil
	return doc
}

// RestOfLine consumes and returns the text up to but not including the next
// newline, with surrounding whitespace trimmed.
func (ps *Parser) RestOfLine() string {
	begin := ps.Pos
	for {
		r := ps.Peek()
		if r == EOF || r == '\n' {
			break
		}
		ps.Next()
	}
	return strings.TrimSpace(ps.Src[begin:ps.Pos])
}

// Quoted parses a double-quoted string at the cursor, handling backslash
// escapes. It reports whether a quoted string was present.
func (ps *Parser) Quoted() (string, diag.Ranging, bool) {
	begin := ps.Pos
	if ps.Peek() != '"' {
		return "", diag.PointRanging(begin), false
	}
	ps.Next()
	var sb strings.Builder
	for {
		switch r := ps.Next(); r {
		case EOF, '\n':
			ps.Backup()
			ps.Errorp(diag.Ranging{From: begin, To: ps.Pos}, errStringUnterminated)
			return sb.String(), diag.Ranging{From: begin, To: ps.Pos}, true
		case '"':
			return sb.String(), diag.Ranging{From: begin, To: ps.Pos}, true
		case '\\':
			switch e := ps.Next(); e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case EOF:
				ps.Backup()
			default:
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

// barewordStop lists the runes that terminate a bareword in the
// brace-and-paren grammars.
const barewordStop = " \t\r\n\"#(){},;="

// Bareword parses a run of non-delimiter runes at the cursor.
func (ps *Parser) Bareword() (string, diag.Ranging) {
	begin := ps.Pos
	for {
		r := ps.Peek()
		if r == EOF || strings.ContainsRune(barewordStop, r) {
			break
		}
		ps.Next()
	}
	return ps.Src[begin:ps.Pos], diag.Ranging{From: begin, To: ps.Pos}
}

// Token parses a quoted string or a bareword at the cursor. The empty
// second form means there was no token.
func (ps *Parser) Token() (string, diag.Ranging, bool) {
	if s, r, ok := ps.Quoted(); ok {
		return s, r, true
	}
	s, r := ps.Bareword()
	return s, r, s != ""
}

// BalancedBlock parses a brace- or bracket-balanced block starting at the
// cursor, returning the raw text including the delimiters. Quotes are
// respected so that delimiters inside strings do not count.
func (ps *Parser) BalancedBlock(open, close rune) (string, diag.Ranging, bool) {
	begin := ps.Pos
	if ps.Peek() != open {
		return "", diag.PointRanging(begin), false
	}
	depth := 0
	for {
		switch r := ps.Next(); r {
		case EOF:
			ps.Backup()
			ps.Errorp(diag.Ranging{From: begin, To: ps.Pos}, errBlockUnterminated)
			return ps.Src[begin:ps.Pos], diag.Ranging{From: begin, To: ps.Pos}, true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return ps.Src[begin:ps.Pos], diag.Ranging{From: begin, To: ps.Pos}, true
			}
		case '"':
			ps.Backup()
			ps.Quoted()
		}
	}
}
