package codeact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Statement is one parsed call of an action script.
type Statement struct {
	Name string
	Args Args
	Line int
}

// Args holds the parsed arguments of a call.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// String returns the i-th positional argument as a string.
func (a Args) String(i int) (string, error) {
	if i >= len(a.Positional) {
		return "", fmt.Errorf("missing argument %d", i+1)
	}
	s, ok := a.Positional[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i+1)
	}
	return s, nil
}

// Int returns the i-th positional argument as an int. Float literals with an
// integral value are accepted.
func (a Args) Int(i int) (int, error) {
	if i >= len(a.Positional) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	switch v := a.Positional[i].(type) {
	case int:
		return v, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("argument %d must be an integer", i+1)
}

// IntOr returns the i-th positional argument as int, or def when absent.
func (a Args) IntOr(i, def int) (int, error) {
	if i >= len(a.Positional) {
		return def, nil
	}
	return a.Int(i)
}

// Bool returns the i-th positional argument as a bool, consulting the named
// keyword when the positional is absent.
func (a Args) Bool(i int, keyword string) (bool, error) {
	var raw any
	if i < len(a.Positional) {
		raw = a.Positional[i]
	} else if v, ok := a.Keyword[keyword]; ok {
		raw = v
	} else {
		return false, fmt.Errorf("missing argument %q", keyword)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", keyword)
	}
	return b, nil
}

// StringOr returns the i-th positional argument as a string, consulting the
// named keyword, with a default when neither is present.
func (a Args) StringOr(i int, keyword, def string) (string, error) {
	var raw any
	if i < len(a.Positional) {
		raw = a.Positional[i]
	} else if v, ok := a.Keyword[keyword]; ok {
		raw = v
	} else {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", keyword)
	}
	return s, nil
}

// ParseScript splits an action script into call statements. Blank lines and
// # comments are skipped. Anything that is not a `name(args)` call is a parse
// error tagged with its line number.
func ParseScript(script string) ([]Statement, error) {
	var statements []Statement

	runes := []rune(script)
	pos := 0
	line := 1

	for pos < len(runes) {
		switch runes[pos] {
		case '\n':
			line++
			pos++
			continue
		case ' ', '\t', '\r':
			pos++
			continue
		case '#':
			for pos < len(runes) && runes[pos] != '\n' {
				pos++
			}
			continue
		}

		start := pos
		startLine := line
		for pos < len(runes) && (isIdentRune(runes[pos])) {
			pos++
		}
		name := string(runes[start:pos])
		if name == "" {
			return statements, fmt.Errorf("line %d: expected a function call", startLine)
		}

		for pos < len(runes) && (runes[pos] == ' ' || runes[pos] == '\t') {
			pos++
		}
		if pos >= len(runes) || runes[pos] != '(' {
			return statements, fmt.Errorf("line %d: expected '(' after %q", startLine, name)
		}
		pos++ // consume '('

		// Consume to the matching ')' respecting quotes and nesting.
		depth := 1
		argStart := pos
		var quote rune
		for pos < len(runes) && depth > 0 {
			r := runes[pos]
			switch {
			case quote != 0:
				if r == '\\' {
					pos++
				} else if r == quote {
					quote = 0
				}
			case r == '"' || r == '\'':
				quote = r
			case r == '(' || r == '[' || r == '{':
				depth++
			case r == ')' || r == ']' || r == '}':
				depth--
			case r == '\n':
				line++
			}
			pos++
		}
		if depth > 0 {
			return statements, fmt.Errorf("line %d: unterminated call to %q", startLine, name)
		}
		rawArgs := string(runes[argStart : pos-1])

		args, err := parseArgs(rawArgs)
		if err != nil {
			return statements, fmt.Errorf("line %d: %s: %v", startLine, name, err)
		}
		statements = append(statements, Statement{Name: name, Args: args, Line: startLine})
	}

	return statements, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// parseArgs splits an argument list on top-level commas and parses each item
// as a literal or a key=value pair.
func parseArgs(raw string) (Args, error) {
	args := Args{Keyword: make(map[string]any)}
	for _, item := range splitTopLevel(raw) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if key, value, ok := splitKeyword(item); ok {
			parsed, err := parseLiteral(value)
			if err != nil {
				return args, fmt.Errorf("argument %s: %v", key, err)
			}
			args.Keyword[key] = parsed
			continue
		}
		parsed, err := parseLiteral(item)
		if err != nil {
			return args, err
		}
		args.Positional = append(args.Positional, parsed)
	}
	return args, nil
}

// splitTopLevel splits on commas not nested in quotes or brackets.
func splitTopLevel(raw string) []string {
	var parts []string
	depth := 0
	var quote rune
	start := 0
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, string(runes[start:i]))
			start = i + 1
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// splitKeyword detects a key=value pair. An identifier followed by a single
// '=' (not '==') at top level qualifies.
func splitKeyword(item string) (string, string, bool) {
	idx := strings.Index(item, "=")
	if idx <= 0 || (idx+1 < len(item) && item[idx+1] == '=') {
		return "", "", false
	}
	key := strings.TrimSpace(item[:idx])
	for _, r := range key {
		if !isIdentRune(r) {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(item[idx+1:]), true
}

// parseLiteral parses one argument literal: quoted string, number, boolean,
// None/null, or a JSON-style list/map (single quotes and Python booleans are
// normalized first).
func parseLiteral(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty argument")
	}

	switch raw {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "None", "null", "nil":
		return nil, nil
	}

	if (raw[0] == '"' || raw[0] == '\'') && len(raw) >= 2 && raw[len(raw)-1] == raw[0] {
		unquoted, err := unquoteString(raw)
		if err != nil {
			return nil, err
		}
		return unquoted, nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}

	if raw[0] == '[' || raw[0] == '{' {
		var out any
		if err := json.Unmarshal([]byte(normalizeJSONish(raw)), &out); err != nil {
			return nil, fmt.Errorf("invalid literal %q", raw)
		}
		return out, nil
	}

	return nil, fmt.Errorf("invalid literal %q", raw)
}

func unquoteString(raw string) (string, error) {
	quote := raw[0]
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	escaped := false
	for _, r := range body {
		if escaped {
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '\\', '"', '\'':
				b.WriteRune(r)
			default:
				b.WriteRune('\\')
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if byte(r) == quote {
			return "", fmt.Errorf("unexpected quote inside %q", raw)
		}
		b.WriteRune(r)
	}
	if escaped {
		return "", fmt.Errorf("dangling escape in %q", raw)
	}
	return b.String(), nil
}

// normalizeJSONish converts Python-style list/dict literals to JSON.
func normalizeJSONish(raw string) string {
	var b strings.Builder
	runes := []rune(raw)
	var quote rune
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			if r == '\\' && i+1 < len(runes) {
				b.WriteRune(r)
				i++
				b.WriteRune(runes[i])
				continue
			}
			if r == quote {
				quote = 0
				b.WriteRune('"')
				continue
			}
			if r == '"' {
				b.WriteString("\\\"")
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
			b.WriteRune('"')
		default:
			if replaced, skip := replaceBareWord(runes, i); skip > 0 {
				b.WriteString(replaced)
				i += skip - 1
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// replaceBareWord maps Python constants outside strings to their JSON form.
func replaceBareWord(runes []rune, i int) (string, int) {
	if i > 0 && isIdentRune(runes[i-1]) {
		return "", 0
	}
	for word, repl := range map[string]string{"True": "true", "False": "false", "None": "null"} {
		wr := []rune(word)
		if i+len(wr) > len(runes) {
			continue
		}
		if string(runes[i:i+len(wr)]) != word {
			continue
		}
		if i+len(wr) < len(runes) && isIdentRune(runes[i+len(wr)]) {
			continue
		}
		return repl, len(wr)
	}
	return "", 0
}
