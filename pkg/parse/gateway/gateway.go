// Package gateway implements the grammar for channel access gateway PV list
// files: one rule per line, matching a PV name pattern to ALLOW, DENY,
// DENY FROM or ALIAS commands, plus the EVALUATION ORDER directive.
package gateway

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Rule is one line of a PV list file.
type Rule struct {
	// Pattern is the PV name pattern as written.
	Pattern string
	// Regex is the compiled pattern; nil if the pattern did not compile (a
	// parse error is recorded in that case).
	Regex *regexp.Regexp
	// Command is ALLOW, DENY or ALIAS.
	Command string
	// Alias is the replacement name for ALIAS rules.
	Alias string
	// Hosts restricts DENY rules to specific hosts (DENY FROM host ...).
	Hosts []string
	// AccessGroup and AccessLevel are the optional trailing ASG/ASL of
	// ALLOW and ALIAS rules.
	AccessGroup string
	AccessLevel string
	Context     diag.LoadContext
}

// PVList is the parsed form of a gateway PV list file.
type PVList struct {
	Source parse.Source
	// EvaluationOrder is "ALLOW, DENY" or "DENY, ALLOW"; empty when the
	// file does not state one.
	EvaluationOrder string
	Rules           []*Rule
}

// Parse parses PV list file text.
func Parse(src parse.Source) (*PVList, error) {
	ps := parse.NewParser(src)
	f := &PVList{Source: src}
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			return f, ps.AssembleError()
		}
		begin := ps.Pos
		line := ps.RestOfLine()
		if line == "" {
			continue
		}
		if order, ok := strings.CutPrefix(line, "EVALUATION ORDER"); ok {
			f.EvaluationOrder = strings.TrimSpace(order)
			continue
		}
		rule := parseRule(line, ps.LoadContext(begin))
		if rule == nil {
			ps.Errorp(diag.Ranging{From: begin, To: ps.Pos}, errBadRule)
			continue
		}
		if re, err := regexp.Compile("^" + rule.Pattern + "$"); err == nil {
			rule.Regex = re
		} else {
			ps.Errorp(diag.Ranging{From: begin, To: ps.Pos}, err)
		}
		f.Rules = append(f.Rules, rule)
	}
}

var errBadRule = errors.New("malformed PV list rule")

func parseRule(line string, ctx diag.LoadContext) *Rule {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	rule := &Rule{Pattern: fields[0], Context: ctx}
	switch strings.ToUpper(fields[1]) {
	case "ALLOW":
		rule.Command = "ALLOW"
		rule.AccessGroup, rule.AccessLevel = trailingAccess(fields[2:])
	case "DENY":
		rule.Command = "DENY"
		rest := fields[2:]
		if len(rest) > 0 && strings.EqualFold(rest[0], "FROM") {
			rule.Hosts = rest[1:]
		}
	case "ALIAS":
		if len(fields) < 3 {
			return nil
		}
		rule.Command = "ALIAS"
		rule.Alias = fields[2]
		rule.AccessGroup, rule.AccessLevel = trailingAccess(fields[3:])
	default:
		return nil
	}
	return rule
}

// trailingAccess extracts the optional "ASG [ASL]" suffix of ALLOW and
// ALIAS rules.
func trailingAccess(rest []string) (string, string) {
	switch len(rest) {
	case 0:
		return "", ""
	case 1:
		return rest[0], ""
	default:
		return rest[0], rest[1]
	}
}
