// Package wikitext pulls template parameters out of wiki markup.
package wikitext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smalyshev/TabulistBot/pkg/tabular"
)

const (
	paramSparql  = "sparql"
	paramColumns = "columns"
)

// Declaration is what a data template invocation asks for.
type Declaration struct {
	Sparql  string
	Columns *tabular.ColumnSpec
	// Params holds every named parameter, trimmed.
	Params map[string]string
}

// Extract finds the first invocation of template in text and parses it.
func Extract(text, template string) (*Declaration, error) {
	params, err := Params(text, template)
	if err != nil {
		return nil, err
	}

	sparql := params[paramSparql]
	if sparql == "" {
		return nil, ErrMissingSparql
	}

	spec := tabular.DefaultColumns()
	if decl := params[paramColumns]; decl != "" {
		spec, err = tabular.ParseColumns(decl)
		if err != nil {
			return nil, err
		}
	}

	return &Declaration{Sparql: sparql, Columns: spec, Params: params}, nil
}

// Params returns the named parameters of the first invocation of template.
// Later duplicates of a key replace earlier ones. Positional parameters are skipped.
func Params(text, template string) (map[string]string, error) {
	re, err := headPattern(template)
	if err != nil {
		return nil, err
	}

	for _, loc := range re.FindAllStringIndex(text, -1) {
		body, ok := scanBody(text[loc[1]:])
		if !ok {
			continue
		}
		return parseParams(body), nil
	}
	return nil, ErrTemplateNotFound
}

// headPattern matches "{{Name" up to the character after the name.
// Name matching ignores case, and "_" and spaces are interchangeable.
func headPattern(template string) (*regexp.Regexp, error) {
	name := strings.TrimSpace(strings.ReplaceAll(template, "_", " "))
	if name == "" {
		return nil, fmt.Errorf("empty template name")
	}
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)\{\{\s*(?:template:\s*)?` + strings.Join(words, `[ _]+`) + `\s*`)
}

// scanBody takes the text following a template head and returns the parameter
// block up to the matching "}}". It fails when the head is followed by
// anything but "|" or "}}", as in a longer template name.
func scanBody(rest string) (string, bool) {
	switch {
	case strings.HasPrefix(rest, "}}"):
		return "", true
	case strings.HasPrefix(rest, "|"):
		return scanUntilClose(rest[1:])
	}
	return "", false
}

// scanUntilClose returns s up to the "}}" that closes the template. Single
// braces are counted too, so SPARQL groups closing right before the template,
// as in "{ ... }}}", stay in the value.
func scanUntilClose(s string) (string, bool) {
	var n nesting
	for i := 0; i < len(s); i++ {
		if n.top() && strings.HasPrefix(s[i:], "}}") {
			return s[:i], true
		}
		i += n.step(s[i:])
	}
	return "", false
}

// nesting tracks brace depth and link depth while walking markup.
type nesting struct {
	braces, links int
}

func (n *nesting) top() bool {
	return n.braces == 0 && n.links == 0
}

// step consumes the token at the start of s and returns how many extra bytes
// it spans.
func (n *nesting) step(s string) int {
	switch {
	case strings.HasPrefix(s, "[["):
		n.links++
		return 1
	case strings.HasPrefix(s, "]]"):
		if n.links > 0 {
			n.links--
		}
		return 1
	case s[0] == '{':
		n.braces++
	case s[0] == '}':
		if n.braces > 0 {
			n.braces--
		}
	}
	return 0
}

// parseParams splits body on "|" outside braces and links.
func parseParams(body string) map[string]string {
	params := make(map[string]string)
	for _, part := range splitTopLevel(body) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}

func splitTopLevel(body string) []string {
	var parts []string
	var n nesting
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == '|' && n.top() {
			parts = append(parts, body[start:i])
			start = i + 1
			continue
		}
		i += n.step(body[i:])
	}
	return append(parts, body[start:])
}
