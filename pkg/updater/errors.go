package updater

import "errors"

var (
	// ErrPageNotFound means no status record matches the requested page.
	ErrPageNotFound = errors.New("page not found")
	// ErrPageBusy means another run holds the page's lease.
	ErrPageBusy = errors.New("page is being updated")
	// ErrQueryFailed wraps a failed or undecodable SPARQL execution.
	ErrQueryFailed = errors.New("query failed")
	// ErrInvalidDataPage wraps a data page that is missing or not a tabular document.
	ErrInvalidDataPage = errors.New("invalid data page")
	// ErrSaveFailed wraps a rejected edit.
	ErrSaveFailed = errors.New("save failed")
	// ErrNoTemplateData is reported alongside extraction errors.
	ErrNoTemplateData = errors.New("could not find template data")
)
