package mediawiki

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested page does not exist.
	ErrNotFound = errors.New("page not found")
	// ErrPageDisappeared indicates the page was deleted before it could be saved.
	ErrPageDisappeared = errors.New("page disappeared")
	// ErrLoginFailed indicates the wiki rejected the bot credentials.
	ErrLoginFailed = errors.New("login failed")
)

// APIError is an error object returned by the MediaWiki action API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediawiki api error %s: %s", e.Code, e.Info)
}
