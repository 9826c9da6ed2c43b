// Package acf implements the grammar for EPICS access security
// configuration files: UAG and HAG group definitions and ASG groups with
// INP links and RULE bodies.
package acf

import (
	"errors"
	"strconv"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// AccessConfig is the parsed form of an access security file.
type AccessConfig struct {
	Source parse.Source
	// UserGroups maps UAG name to user names.
	UserGroups map[string][]string
	// HostGroups maps HAG name to host names.
	HostGroups map[string][]string
	// Groups maps ASG name to its definition.
	Groups map[string]*AccessGroup
}

// AccessGroup is one ASG definition.
type AccessGroup struct {
	Name string
	// Inputs maps the input identifier (INPA..INPL) to the PV name.
	Inputs  map[string]string
	Rules   []*AccessRule
	Context diag.LoadContext
}

// AccessRule is one RULE entry of an ASG.
type AccessRule struct {
	Level int
	// Access is the access mode, NONE, READ or WRITE.
	Access string
	// Trap is the trailing TRAPWRITE/NOTRAPWRITE option, if present.
	Trap       string
	UserGroups []string
	HostGroups []string
	Calc       string
	Context    diag.LoadContext
}

var (
	errShouldBeLParen = errors.New("should be '('")
	errShouldBeRParen = errors.New("should be ')'")
	errShouldBeLBrace = errors.New("should be '{'")
	errShouldBeRBrace = errors.New("should be '}'")
)

// Parse parses access security file text.
func Parse(src parse.Source) (*AccessConfig, error) {
	ps := parse.NewParser(src)
	cfg := &AccessConfig{
		Source:     src,
		UserGroups: make(map[string][]string),
		HostGroups: make(map[string][]string),
		Groups:     make(map[string]*AccessGroup),
	}
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			return cfg, ps.AssembleError()
		}
		keyword, r := ps.Bareword()
		switch keyword {
		case "UAG":
			name, members, ok := parseGroupList(ps)
			if ok {
				cfg.UserGroups[name] = members
			}
		case "HAG":
			name, members, ok := parseGroupList(ps)
			if ok {
				cfg.HostGroups[name] = members
			}
		case "ASG":
			if g := parseASG(ps, r); g != nil {
				cfg.Groups[g.Name] = g
			}
		case "":
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.RestOfLine()
		default:
			ps.Errorp(r, errors.New("unknown declaration "+keyword))
			ps.RestOfLine()
		}
	}
}

// parseGroupList parses (NAME) {member, member, ...}.
func parseGroupList(ps *parse.Parser) (string, []string, bool) {
	name, ok := parseParenName(ps)
	if !ok {
		return "", nil, false
	}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		ps.Error(errShouldBeLBrace)
		return name, nil, true
	}
	ps.Next()
	var members []string
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return name, members, true
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return name, members, true
		case ',':
			ps.Next()
			continue
		}
		m, _, ok := ps.Token()
		if !ok {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		members = append(members, m)
	}
}

func parseASG(ps *parse.Parser, r diag.Ranging) *AccessGroup {
	name, ok := parseParenName(ps)
	if !ok {
		return nil
	}
	g := &AccessGroup{
		Name:    name,
		Inputs:  make(map[string]string),
		Context: ps.LoadContext(r.From),
	}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		// A bodyless ASG is legal; it denies nothing.
		return g
	}
	ps.Next()
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return g
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return g
		}
		keyword, kr := ps.Bareword()
		switch {
		case len(keyword) == 4 && keyword[:3] == "INP":
			name, ok := parseParenName(ps)
			if ok {
				g.Inputs[keyword] = name
			}
		case keyword == "RULE":
			if rule := parseRule(ps, kr); rule != nil {
				g.Rules = append(g.Rules, rule)
			}
		default:
			ps.Errorp(kr, errors.New("unknown ASG body item "+keyword))
			ps.RestOfLine()
		}
	}
}

// parseRule parses RULE(level, ACCESS[, TRAPWRITE]) with an optional
// {UAG(...) HAG(...) CALC("...")} body.
func parseRule(ps *parse.Parser, r diag.Ranging) *AccessRule {
	ps.SkipInlineSpaces()
	if ps.Peek() != '(' {
		ps.Error(errShouldBeLParen)
		return nil
	}
	ps.Next()
	rule := &AccessRule{Context: ps.LoadContext(r.From)}
	args := parseCommaList(ps)
	if len(args) > 0 {
		level, err := strconv.Atoi(args[0])
		if err != nil {
			ps.Errorf("rule level %q is not a number", args[0])
		}
		rule.Level = level
	}
	if len(args) > 1 {
		rule.Access = args[1]
	}
	if len(args) > 2 {
		rule.Trap = args[2]
	}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		return rule
	}
	ps.Next()
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			return rule
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return rule
		}
		keyword, kr := ps.Bareword()
		switch keyword {
		case "UAG":
			if ps.SkipInlineSpaces(); ps.Peek() == '(' {
				ps.Next()
				rule.UserGroups = append(rule.UserGroups, parseCommaList(ps)...)
			}
		case "HAG":
			if ps.SkipInlineSpaces(); ps.Peek() == '(' {
				ps.Next()
				rule.HostGroups = append(rule.HostGroups, parseCommaList(ps)...)
			}
		case "CALC":
			calc, ok := parseParenName(ps)
			if ok {
				rule.Calc = calc
			}
		default:
			ps.Errorp(kr, errors.New("unknown RULE body item "+keyword))
			ps.RestOfLine()
		}
	}
}

// parseParenName parses (NAME) and returns the name.
func parseParenName(ps *parse.Parser) (string, bool) {
	ps.SkipInlineSpaces()
	if ps.Peek() != '(' {
		ps.Error(errShouldBeLParen)
		return "", false
	}
	ps.Next()
	ps.SkipSpaces()
	name, _, ok := ps.Token()
	if !ok {
		ps.Errorf("should be a name")
		return "", false
	}
	ps.SkipSpaces()
	if ps.Peek() != ')' {
		ps.Error(errShouldBeRParen)
		return name, true
	}
	ps.Next()
	return name, true
}

// parseCommaList parses the remainder of a parenthesized comma-separated
// list, consuming the closing parenthesis.
func parseCommaList(ps *parse.Parser) []string {
	var items []string
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case ')':
			ps.Next()
			return items
		case parse.EOF:
			ps.Error(errShouldBeRParen)
			return items
		case ',':
			ps.Next()
			continue
		}
		item, _, ok := ps.Token()
		if !ok {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		items = append(items, item)
	}
}
