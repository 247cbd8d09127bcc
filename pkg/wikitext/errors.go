package wikitext

import "errors"

var (
	// ErrTemplateNotFound indicates the page does not invoke the template.
	ErrTemplateNotFound = errors.New("did not find template")
	// ErrMissingSparql indicates a template invocation without a sparql parameter.
	ErrMissingSparql = errors.New("template does not have SPARQL")
)
