// Package streamproto implements the grammar for StreamDevice protocol
// (.proto) files: global variable assignments, protocol definitions with
// command lists, and exception handlers.
package streamproto

import (
	"errors"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Command is one command of a protocol, e.g. out "VOLT %f;".
type Command struct {
	Name    string
	Args    []string
	Context diag.LoadContext
}

// Handler is an exception handler block such as @mismatch { ... }.
type Handler struct {
	Name     string
	Commands []*Command
	Context  diag.LoadContext
}

// Protocol is one named protocol definition.
type Protocol struct {
	Name string
	// Variables holds variable assignments local to the protocol, with the
	// globals active at definition folded in.
	Variables map[string]string
	Commands  []*Command
	Handlers  map[string]*Handler
	Context   diag.LoadContext
}

// ProtocolFile is the parsed form of a .proto file.
type ProtocolFile struct {
	Source parse.Source
	// Variables holds the global variable assignments.
	Variables map[string]string
	Protocols map[string]*Protocol
}

var (
	errShouldBeRBrace = errors.New("should be '}'")
	errShouldBeValue  = errors.New("should be a value")
)

// Parse parses protocol file text.
func Parse(src parse.Source) (*ProtocolFile, error) {
	ps := parse.NewParser(src)
	f := &ProtocolFile{
		Source:    src,
		Variables: make(map[string]string),
		Protocols: make(map[string]*Protocol),
	}
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			return f, ps.AssembleError()
		}
		begin := ps.Pos
		name, r := ps.Bareword()
		if name == "" {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.RestOfLine()
			continue
		}
		ps.SkipSpaces()
		switch ps.Peek() {
		case '=':
			ps.Next()
			value, ok := parseValue(ps)
			if !ok {
				continue
			}
			f.Variables[name] = value
		case '{':
			p := parseProtocol(ps, name, ps.LoadContext(begin), f.Variables)
			f.Protocols[p.Name] = p
		default:
			ps.Errorp(r, errors.New("should be a variable assignment or protocol"))
			ps.RestOfLine()
		}
	}
}

// parseValue parses the right-hand side of an assignment or a command
// argument list, up to the terminating semicolon or newline.
func parseValue(ps *parse.Parser) (string, bool) {
	ps.SkipInlineSpaces()
	var parts []string
	for {
		switch ps.Peek() {
		case ';':
			ps.Next()
			return strings.Join(parts, " "), true
		case '\n', '}', parse.EOF:
			return strings.Join(parts, " "), true
		case ' ', '\t', '\r':
			ps.Next()
		case '#':
			ps.RestOfLine()
		default:
			part, _, ok := ps.Token()
			if !ok {
				ps.Error(errShouldBeValue)
				ps.Next()
				continue
			}
			parts = append(parts, part)
		}
	}
}

func parseProtocol(ps *parse.Parser, name string, ctx diag.LoadContext, globals map[string]string) *Protocol {
	ps.Next() // consume '{'
	p := &Protocol{
		Name:      name,
		Variables: make(map[string]string, len(globals)),
		Handlers:  make(map[string]*Handler),
		Context:   ctx,
	}
	for k, v := range globals {
		p.Variables[k] = v
	}
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return p
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return p
		case ';':
			ps.Next()
			continue
		case '@':
			if h := parseHandler(ps); h != nil {
				p.Handlers[h.Name] = h
			}
			continue
		}
		begin := ps.Pos
		word, _ := ps.Bareword()
		if word == "" {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		ps.SkipInlineSpaces()
		if ps.Peek() == '=' {
			ps.Next()
			value, ok := parseValue(ps)
			if ok {
				p.Variables[word] = value
			}
			continue
		}
		if cmd := parseCommand(ps, word, ps.LoadContext(begin)); cmd != nil {
			p.Commands = append(p.Commands, cmd)
		}
	}
}

// parseCommand parses the arguments of a command like out "..." or wait 100.
func parseCommand(ps *parse.Parser, name string, ctx diag.LoadContext) *Command {
	cmd := &Command{Name: name, Context: ctx}
	for {
		ps.SkipInlineSpaces()
		switch ps.Peek() {
		case ';':
			ps.Next()
			return cmd
		case '\n', '}', parse.EOF:
			return cmd
		case ',':
			ps.Next()
		default:
			arg, _, ok := ps.Token()
			if !ok {
				ps.Errorf("unexpected rune %q", ps.Peek())
				ps.Next()
				continue
			}
			cmd.Args = append(cmd.Args, arg)
		}
	}
}

// parseHandler parses @name { commands... }.
func parseHandler(ps *parse.Parser) *Handler {
	begin := ps.Pos
	ps.Next() // consume '@'
	name, _ := ps.Bareword()
	if name == "" {
		ps.Errorf("should be a handler name")
		ps.RestOfLine()
		return nil
	}
	h := &Handler{Name: name, Context: ps.LoadContext(begin)}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		ps.Errorf("should be '{'")
		return h
	}
	ps.Next()
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return h
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return h
		case ';':
			ps.Next()
			continue
		}
		cbegin := ps.Pos
		word, _ := ps.Bareword()
		if word == "" {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		if cmd := parseCommand(ps, word, ps.LoadContext(cbegin)); cmd != nil {
			h.Commands = append(h.Commands, cmd)
		}
	}
}
