package iocsh

import "strings"

// splitLine splits one IOC shell line into a command name and arguments.
// Both invocation styles are accepted: C-call syntax with parentheses and
// comma-separated arguments, and plain whitespace-separated tokens. Double
// and single quotes group; an unquoted '#' starts a comment.
func splitLine(line string) (name string, args []string) {
	line = stripComment(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}

	i := strings.IndexAny(line, " \t(")
	if i < 0 {
		return line, nil
	}
	name = line[:i]
	rest := strings.TrimSpace(line[i:])

	if strings.HasPrefix(rest, "(") {
		rest = strings.TrimPrefix(rest, "(")
		rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ")"))
		if rest == "" {
			return name, nil
		}
		for _, arg := range splitArgs(rest, ',') {
			args = append(args, unquote(strings.TrimSpace(arg)))
		}
		return name, args
	}

	for _, arg := range splitArgs(rest, ' ') {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, unquote(arg))
		}
	}
	return name, args
}

// stripComment removes an unquoted trailing comment.
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

// splitArgs splits on sep at the top level, honoring quotes. A space
// separator folds runs of whitespace.
func splitArgs(s string, sep rune) []string {
	var (
		parts   []string
		current strings.Builder
		quote   rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		case r == sep || (sep == ' ' && (r == ' ' || r == '\t')):
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	return parts
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
