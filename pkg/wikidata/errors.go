package wikidata

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates a failure to parse the response.
	ErrParse = errors.New("wikidata parse error")
	// ErrNoResults indicates a query response without a results section.
	ErrNoResults = errors.New("query returned no result set")
	// ErrBatchTooLarge indicates a term lookup above the per-request id limit.
	ErrBatchTooLarge = errors.New("too many ids in one request")
	// ErrUnknownTermType indicates a term type other than label, description or alias.
	ErrUnknownTermType = errors.New("unknown term type")
)

// APIError is an error object returned by the Wikibase API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikibase api error %s: %s", e.Code, e.Info)
}
