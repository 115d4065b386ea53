package codeact

import (
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

// ExtractCodeAndThought splits a model response into the fenced action
// script and the surrounding free text. Multiple fences are concatenated in
// order. Either part may be empty.
func ExtractCodeAndThought(response string) (code, thought string) {
	matches := codeFencePattern.FindAllStringSubmatchIndex(response, -1)
	if len(matches) == 0 {
		return "", strings.TrimSpace(response)
	}

	var codeParts []string
	var thoughtParts []string
	prev := 0
	appendThought := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			thoughtParts = append(thoughtParts, part)
		}
	}
	for _, m := range matches {
		appendThought(response[prev:m[0]])
		codeParts = append(codeParts, strings.TrimSpace(response[m[2]:m[3]]))
		prev = m[1]
	}
	appendThought(response[prev:])

	code = strings.TrimSpace(strings.Join(codeParts, "\n"))
	thought = strings.Join(thoughtParts, " ")
	return code, thought
}
