package db

import (
	"errors"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/parse"
)

// Errors.
var (
	errShouldBeLParen    = errors.New("should be '('")
	errShouldBeRParen    = errors.New("should be ')'")
	errShouldBeLBrace    = errors.New("should be '{'")
	errShouldBeRBrace    = errors.New("should be '}'")
	errShouldBeName      = errors.New("should be a name")
	errShouldBeComma     = errors.New("should be ','")
	errShouldBeValue     = errors.New("should be a value")
	errShouldBeFileName  = errors.New("should be a file name")
	errJSONValueInV3     = errors.New("JSON values need the 7.0 grammar")
	errStandaloneAliasV3 = errors.New("standalone alias needs the 7.0 grammar")
)

// Parse parses database or database definition text. Parse errors are
// accumulated and returned combined; the returned File holds everything
// that could be parsed.
func Parse(src parse.Source, opts Options) (*File, error) {
	ps := parse.NewParser(src)
	f := &File{Source: src}
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			break
		}
		if decl := parseDecl(ps, opts); decl != nil {
			f.Decls = append(f.Decls, decl)
		}
	}
	return f, ps.AssembleError()
}

// ParseFragment parses a file that is a fragment of a recordtype body, such
// as the common-fields include used by record type definitions.
func ParseFragment(src parse.Source, opts Options) ([]RecordTypeItem, error) {
	ps := parse.NewParser(src)
	var items []RecordTypeItem
	for {
		ps.SkipSpaces()
		if ps.Peek() == parse.EOF {
			break
		}
		if item := parseRecordTypeItem(ps, opts); item != nil {
			items = append(items, item)
		}
	}
	return items, ps.AssembleError()
}

func parseDecl(ps *parse.Parser, opts Options) Decl {
	doc := ps.TakeComments()
	keyword, r := ps.Bareword()
	node := declNode{Ranging: r, Doc: doc}

	switch keyword {
	case "record", "grecord":
		return parseRecord(ps, opts, node)
	case "recordtype":
		return parseRecordType(ps, opts, node)
	case "menu":
		return parseMenu(ps, node)
	case "device":
		args, ok := parseArgs(ps, 4)
		if !ok {
			return nil
		}
		return &DeviceDecl{declNode: node, RecordType: args[0],
			LinkType: args[1], DsetName: args[2], ChoiceString: args[3]}
	case "driver", "registrar", "function":
		args, ok := parseArgs(ps, 1)
		if !ok {
			return nil
		}
		return &NamedDecl{declNode: node, Keyword: keyword, Name: args[0]}
	case "link":
		args, ok := parseArgs(ps, 2)
		if !ok {
			return nil
		}
		return &NamedDecl{declNode: node, Keyword: keyword, Name: args[0], Extra: args[1]}
	case "variable":
		args, ok := parseVariableArgs(ps)
		if !ok {
			return nil
		}
		return &VariableDecl{declNode: node, Name: args[0], Type: args[1]}
	case "breaktable":
		return parseBreaktable(ps, node)
	case "alias":
		if opts.V3 {
			ps.Errorp(r, errStandaloneAliasV3)
		}
		args, ok := parseArgs(ps, 2)
		if !ok {
			return nil
		}
		return &AliasDecl{declNode: node, Record: args[0], Alias: args[1]}
	case "include":
		ps.SkipInlineSpaces()
		name, _, ok := ps.Token()
		if !ok {
			ps.Error(errShouldBeFileName)
			return nil
		}
		return &IncludeDecl{declNode: node, Name: name}
	case "path", "addpath":
		ps.SkipInlineSpaces()
		path, _, ok := ps.Token()
		if !ok {
			ps.Error(errShouldBeFileName)
			return nil
		}
		return &PathDecl{declNode: node, Add: keyword == "addpath", Path: path}
	case "":
		ps.Errorf("unexpected rune %q", ps.Peek())
		ps.RestOfLine()
		return nil
	default:
		ps.Errorp(r, errors.New("unknown declaration "+keyword))
		ps.RestOfLine()
		return nil
	}
}

func parseRecord(ps *parse.Parser, opts Options, node declNode) Decl {
	args, ok := parseArgs(ps, 2)
	if !ok {
		return nil
	}
	decl := &RecordDecl{declNode: node, Type: args[0], Name: args[1]}
	if !openBrace(ps) {
		// A bodyless record declaration is legal.
		decl.To = ps.Pos
		return decl
	}
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			decl.To = ps.Pos
			return decl
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return decl
		}
		keyword, r := ps.Bareword()
		switch keyword {
		case "field":
			name, value, ok := parseNameValue(ps, opts)
			if ok {
				decl.Body = append(decl.Body, &FieldItem{
					bodyNode: bodyNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
					Name:     name, Value: value})
			}
		case "info":
			name, value, ok := parseNameValue(ps, opts)
			if ok {
				decl.Body = append(decl.Body, &InfoItem{
					bodyNode: bodyNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
					Key:      name, Value: value})
			}
		case "alias":
			args, ok := parseArgs(ps, 1)
			if ok {
				decl.Body = append(decl.Body, &AliasItem{
					bodyNode: bodyNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
					Name:     args[0]})
			}
		default:
			ps.Errorp(r, errors.New("unknown record body item "+keyword))
			ps.RestOfLine()
		}
	}
}

// parseNameValue parses ("NAME", VALUE) where VALUE may be a quoted string,
// a bareword, or (in the 7.0 grammar) a JSON object or array kept as raw
// text.
func parseNameValue(ps *parse.Parser, opts Options) (string, string, bool) {
	ps.SkipInlineSpaces()
	if ps.Peek() != '(' {
		ps.Error(errShouldBeLParen)
		return "", "", false
	}
	ps.Next()
	ps.SkipSpaces()
	name, _, ok := ps.Token()
	if !ok {
		ps.Error(errShouldBeName)
		return "", "", false
	}
	ps.SkipSpaces()
	switch ps.Peek() {
	case ',':
		ps.Next()
	case ')':
		// Value omitted.
	default:
		ps.Error(errShouldBeComma)
	}
	ps.SkipSpaces()
	var value string
	switch ps.Peek() {
	case '{', '[':
		open := ps.Peek()
		closer := map[rune]rune{'{': '}', '[': ']'}[open]
		raw, r, _ := ps.BalancedBlock(open, closer)
		if opts.V3 {
			ps.Errorp(r, errJSONValueInV3)
		}
		value = raw
	case ')':
		value = ""
	default:
		value, _, ok = ps.Token()
		if !ok {
			ps.Error(errShouldBeValue)
			return "", "", false
		}
	}
	ps.SkipSpaces()
	if ps.Peek() != ')' {
		ps.Error(errShouldBeRParen)
		return name, value, true
	}
	ps.Next()
	return name, value, true
}

func parseRecordType(ps *parse.Parser, opts Options, node declNode) Decl {
	args, ok := parseArgs(ps, 1)
	if !ok {
		return nil
	}
	decl := &RecordTypeDecl{declNode: node, Name: args[0]}
	if !openBrace(ps) {
		return decl
	}
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			decl.To = ps.Pos
			return decl
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return decl
		}
		if item := parseRecordTypeItem(ps, opts); item != nil {
			decl.Body = append(decl.Body, item)
		}
	}
}

func parseRecordTypeItem(ps *parse.Parser, opts Options) RecordTypeItem {
	doc := ps.TakeComments()
	if ps.Peek() == '%' {
		begin := ps.Pos
		ps.Next()
		code := ps.RestOfLine()
		return &CDefItem{recordTypeNode{diag.Ranging{From: begin, To: ps.Pos}}, code}
	}
	keyword, r := ps.Bareword()
	switch keyword {
	case "field":
		return parseFieldDef(ps, r, doc)
	case "info":
		name, value, ok := parseNameValue(ps, opts)
		if !ok {
			return nil
		}
		return &RTInfoItem{
			recordTypeNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
			name, value}
	case "include":
		ps.SkipInlineSpaces()
		name, _, ok := ps.Token()
		if !ok {
			ps.Error(errShouldBeFileName)
			return nil
		}
		return &RTIncludeItem{
			recordTypeNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
			name}
	case "":
		ps.Errorf("unexpected rune %q", ps.Peek())
		ps.RestOfLine()
		return nil
	default:
		ps.Errorp(r, errors.New("unknown recordtype body item "+keyword))
		ps.RestOfLine()
		return nil
	}
}

func parseFieldDef(ps *parse.Parser, r diag.Ranging, doc string) RecordTypeItem {
	args, ok := parseArgs(ps, 2)
	if !ok {
		return nil
	}
	item := &FieldDefItem{
		recordTypeNode: recordTypeNode{diag.MixedRanging(r, diag.PointRanging(ps.Pos))},
		Name:           args[0],
		Type:           args[1],
		Doc:            doc,
	}
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		return item
	}
	ps.Next()
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			item.To = ps.Pos
			return item
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return item
		}
		attr, _ := ps.Bareword()
		if attr == "" {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.RestOfLine()
			continue
		}
		args, ok := parseArgs(ps, 1)
		if !ok {
			continue
		}
		item.Attrs = append(item.Attrs, [2]string{attr, args[0]})
	}
}

func parseMenu(ps *parse.Parser, node declNode) Decl {
	args, ok := parseArgs(ps, 1)
	if !ok {
		return nil
	}
	decl := &MenuDecl{declNode: node, Name: args[0]}
	if !openBrace(ps) {
		return decl
	}
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			decl.To = ps.Pos
			return decl
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return decl
		}
		keyword, r := ps.Bareword()
		if keyword != "choice" {
			ps.Errorp(r, errors.New("unknown menu body item "+keyword))
			ps.RestOfLine()
			continue
		}
		args, ok := parseArgs(ps, 2)
		if !ok {
			continue
		}
		decl.Choices = append(decl.Choices, [2]string{args[0], args[1]})
	}
}

func parseBreaktable(ps *parse.Parser, node declNode) Decl {
	args, ok := parseArgs(ps, 1)
	if !ok {
		return nil
	}
	decl := &BreaktableDecl{declNode: node, Name: args[0]}
	if !openBrace(ps) {
		return decl
	}
	for {
		ps.SkipSpaces()
		switch ps.Peek() {
		case '}':
			ps.Next()
			decl.To = ps.Pos
			return decl
		case parse.EOF:
			ps.Error(errShouldBeRBrace)
			return decl
		case ',':
			ps.Next()
			continue
		}
		value, _, ok := ps.Token()
		if !ok {
			ps.Errorf("unexpected rune %q", ps.Peek())
			ps.Next()
			continue
		}
		decl.Values = append(decl.Values, value)
	}
}

// parseArgs parses a parenthesized, comma-separated argument list with
// exactly n arguments. Missing trailing arguments come back empty.
func parseArgs(ps *parse.Parser, n int) ([]string, bool) {
	ps.SkipInlineSpaces()
	if ps.Peek() != '(' {
		ps.Error(errShouldBeLParen)
		return nil, false
	}
	ps.Next()
	args := make([]string, n)
	for i := 0; i < n; i++ {
		ps.SkipSpaces()
		if ps.Peek() == ')' {
			break
		}
		value, _, ok := ps.Token()
		if !ok {
			ps.Error(errShouldBeValue)
			return nil, false
		}
		args[i] = value
		if i == n-1 {
			break
		}
		ps.SkipSpaces()
		switch ps.Peek() {
		case ',':
			ps.Next()
		case ')':
			// Fewer arguments than expected; the rest stay empty.
		default:
			ps.Error(errShouldBeComma)
			for ps.Peek() != ')' && ps.Peek() != '\n' && ps.Peek() != parse.EOF {
				ps.Next()
			}
			if ps.Peek() == ')' {
				ps.Next()
			}
			return args, true
		}
	}
	ps.SkipSpaces()
	if ps.Peek() != ')' {
		ps.Error(errShouldBeRParen)
		return args, true
	}
	ps.Next()
	return args, true
}

// parseVariableArgs parses variable(name) or variable(name, type).
func parseVariableArgs(ps *parse.Parser) ([2]string, bool) {
	args, ok := parseArgs(ps, 2)
	if !ok {
		return [2]string{}, false
	}
	if args[1] == "" {
		args[1] = "int"
	}
	return [2]string{args[0], args[1]}, true
}

func openBrace(ps *parse.Parser) bool {
	ps.SkipSpaces()
	if ps.Peek() != '{' {
		return false
	}
	ps.Next()
	return true
}
