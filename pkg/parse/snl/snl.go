// Package snl implements the header-level grammar for sequencer (SNL)
// programs: the program name, option lines, and the assign/monitor
// declarations binding state-machine variables to PVs. State machine bodies
// are not modeled.
package snl

import (
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Assignment binds an SNL variable to a PV name.
type Assignment struct {
	Variable string
	PV       string
	Context  diag.LoadContext
}

// Program is the parsed header of an SNL program.
type Program struct {
	Source parse.Source
	Name   string
	// Params is the optional quoted parameter string of the program line.
	Params string
	// Options holds option lines, e.g. "+r".
	Options []string
	// Assignments in document order.
	Assignments []*Assignment
	// Monitored lists the variables with monitor declarations.
	Monitored []string
}

// Parse parses the header of SNL program text. Parsing stops looking for
// declarations once a state set begins.
func Parse(src parse.Source) (*Program, error) {
	ps := parse.NewParser(src)
	p := &Program{Source: src}
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			break
		}
		begin := ps.Pos
		word, _ := ps.Bareword()
		switch word {
		case "program":
			ps.SkipInlineSpaces()
			name, _, ok := ps.Token()
			if !ok {
				ps.Errorf("should be a program name")
				ps.RestOfLine()
				continue
			}
			p.Name = name
			ps.SkipInlineSpaces()
			if ps.Peek() == '(' {
				ps.Next()
				ps.SkipInlineSpaces()
				if param, _, ok := ps.Quoted(); ok {
					p.Params = param
				}
				ps.SkipInlineSpaces()
				if ps.Peek() == ')' {
					ps.Next()
				}
			}
		case "option":
			p.Options = append(p.Options, ps.RestOfLine())
		case "assign", "assign:":
			a := parseAssign(ps, ps.LoadContext(begin))
			if a != nil {
				p.Assignments = append(p.Assignments, a)
			}
		case "monitor":
			ps.SkipInlineSpaces()
			variable := strings.TrimSuffix(ps.RestOfLine(), ";")
			p.Monitored = append(p.Monitored, strings.TrimSpace(variable))
		case "ss":
			// First state set: the header is over.
			return p, ps.AssembleError()
		case "":
			ps.Next()
		default:
			// Declarations, preprocessor lines and C escapes are skipped.
			ps.RestOfLine()
		}
	}
	return p, ps.AssembleError()
}

// parseAssign parses `assign var to "pv";`.
func parseAssign(ps *parse.Parser, ctx diag.LoadContext) *Assignment {
	ps.SkipInlineSpaces()
	variable, _ := ps.Bareword()
	if variable == "" {
		ps.Errorf("should be a variable name")
		ps.RestOfLine()
		return nil
	}
	ps.SkipInlineSpaces()
	if word, _ := ps.Bareword(); word != "to" {
		ps.Errorf("should be 'to'")
		ps.RestOfLine()
		return nil
	}
	ps.SkipInlineSpaces()
	pv, _, ok := ps.Token()
	if !ok {
		ps.Errorf("should be a PV name")
		ps.RestOfLine()
		return nil
	}
	if r := ps.Peek(); r == ';' {
		ps.Next()
	}
	return &Assignment{Variable: variable, PV: pv, Context: ctx}
}
